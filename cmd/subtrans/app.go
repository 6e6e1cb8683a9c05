package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Belphemur/SubTranslate/internal/broadcast"
	"github.com/Belphemur/SubTranslate/internal/cache"
	"github.com/Belphemur/SubTranslate/internal/client"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/services"
)

// app holds the services shared by the commands.
type app struct {
	cfg        *config.Config
	httpClient *http.Client
	cache      *services.TranslationCache
	settings   *config.SettingsStore
	events     *broadcast.Broadcaster
	media      *services.DefaultMediaInfoService
	uploads    *services.DefaultUploadService
	jobs       *services.DefaultJobService
}

// openCache creates the persistent translation cache configured in cfg.
func openCache(cfg *config.Config) (*services.TranslationCache, error) {
	store, err := cache.Open(cfg.Cache.Provider, cache.Options{
		Path:       cfg.Cache.Path,
		MaxEntries: cfg.Cache.Size,
		TTL:        config.ParseDuration("cache.ttl", cfg.Cache.TTL, 0),
		Logger:     services.CacheLogger(),
		Redis: cache.RedisOptions{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
		MetricsLabel: "translations",
	})
	if err != nil {
		return nil, fmt.Errorf("open %s translation cache: %w", cfg.Cache.Provider, err)
	}
	return services.NewTranslationCache(store), nil
}

// newApp wires every service from cfg. uploadDir and outputDir override the
// configured storage directories when non-empty.
func newApp(cfg *config.Config, uploadDir, outputDir string) (*app, error) {
	if uploadDir == "" {
		uploadDir = cfg.Storage.UploadDir
	}
	if outputDir == "" {
		outputDir = cfg.Storage.OutputDir
	}

	translations, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	settings, err := config.NewSettingsStore(cfg.Storage.SettingsFile, cfg.Translation)
	if err != nil {
		translations.Close()
		return nil, err
	}

	httpClient := client.NewHTTPClient(cfg)
	var tmdb services.TMDBSearcher
	if cfg.TMDB.APIKey != "" {
		tmdb = client.NewTMDBClient(httpClient, cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Language)
	}
	media := services.NewMediaInfoService(tmdb, 512, config.ParseDuration("tmdb.cache_ttl", cfg.TMDB.CacheTTL, 6*time.Hour))

	events := broadcast.New(cfg.Broadcast.HistorySize, cfg.Broadcast.QueueSize)
	factory := services.NewTranslatorFactory(httpClient, map[string]string{
		models.ProviderGemini: cfg.Gemini.BaseURL,
		models.ProviderOpenAI: cfg.OpenAI.BaseURL,
	})
	jobs := services.NewJobService(services.JobServiceOptions{
		Factory:       factory,
		Orchestrator:  services.NewOrchestrator(translations),
		MediaInfo:     media,
		Publisher:     events,
		UploadDir:     uploadDir,
		OutputDir:     outputDir,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	})

	return &app{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      translations,
		settings:   settings,
		events:     events,
		media:      media,
		uploads:    services.NewUploadService(uploadDir, outputDir),
		jobs:       jobs,
	}, nil
}

func (a *app) Close() error {
	a.events.Close()
	return a.cache.Close()
}

// modelCatalog lists the selectable models per provider.
func modelCatalog(cfg *config.Config) map[string][]string {
	return map[string][]string{
		models.ProviderGemini: cfg.Gemini.Models,
		models.ProviderOpenAI: cfg.OpenAI.Models,
	}
}
