package config

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the User-Agent sent with outbound HTTP requests.
const DefaultUserAgent = "SubTranslate/2 (+https://github.com/Belphemur/SubTranslate)"

type Config struct {
	ProxyConnectionString string `mapstructure:"proxy_connection_string"`
	ClientTimeout         string `mapstructure:"client_timeout"` // Go duration string like "30s", "2m", etc.
	UserAgent             string `mapstructure:"user_agent"`
	LogLevel              string `mapstructure:"log_level"`
	Server                struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`
	GRPC struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"grpc"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Storage struct {
		UploadDir    string `mapstructure:"upload_dir"`
		OutputDir    string `mapstructure:"output_dir"`
		SettingsFile string `mapstructure:"settings_file"`
	} `mapstructure:"storage"`
	Cache struct {
		Provider string `mapstructure:"provider"` // file, sqlite, redis or memory
		Path     string `mapstructure:"path"`     // file and sqlite providers
		Size     int    `mapstructure:"size"`     // maximum entries of the memory provider
		TTL      string `mapstructure:"ttl"`      // Go duration string; empty or "0" keeps entries forever
		Redis    struct {
			Address  string `mapstructure:"address"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`
	Translation Settings `mapstructure:"translation"`
	Gemini      struct {
		BaseURL string   `mapstructure:"base_url"`
		Models  []string `mapstructure:"models"`
	} `mapstructure:"gemini"`
	OpenAI struct {
		BaseURL string   `mapstructure:"base_url"`
		Models  []string `mapstructure:"models"`
	} `mapstructure:"openai"`
	TMDB struct {
		APIKey   string `mapstructure:"api_key"`
		BaseURL  string `mapstructure:"base_url"`
		Language string `mapstructure:"language"`
		CacheTTL string `mapstructure:"cache_ttl"`
	} `mapstructure:"tmdb"`
	Jobs struct {
		MaxConcurrent int64 `mapstructure:"max_concurrent"`
	} `mapstructure:"jobs"`
	Broadcast struct {
		HistorySize int `mapstructure:"history_size"`
		QueueSize   int `mapstructure:"queue_size"`
	} `mapstructure:"broadcast"`
	Janitor struct {
		Schedule  string `mapstructure:"schedule"`  // cron expression or descriptor like "@every 1h"
		Retention string `mapstructure:"retention"` // Go duration string
	} `mapstructure:"janitor"`
	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
}

var (
	logMu      sync.RWMutex
	logger     zerolog.Logger
	consoleOut io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false}
)

func init() {
	logger = zerolog.New(consoleOut).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	ConfigureLogging(config)
}

// ConfigureLogging applies the configured log level to the global logger.
func ConfigureLogging(cfg *Config) {
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsedLevel
		} else {
			l := GetLogger()
			l.Warn().Str("invalid_level", cfg.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}
	zerolog.SetGlobalLevel(level)

	logMu.Lock()
	logger = logger.Level(level)
	logMu.Unlock()

	l := GetLogger()
	l.Debug().Str("level", level.String()).Msg("Logging configured")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("client_timeout", "2m")
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", 8001)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "translated")
	v.SetDefault("storage.settings_file", "config/settings.json")
	v.SetDefault("cache.provider", "file")
	v.SetDefault("cache.path", ".translation_cache.json")
	v.SetDefault("cache.size", 100000)
	v.SetDefault("cache.ttl", "")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.models", []string{"gemini-2.5-flash", "gemini-2.5-pro"})
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.models", []string{"gpt-4o-mini", "gpt-4o"})
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.cache_ttl", "6h")
	v.SetDefault("jobs.max_concurrent", 2)
	v.SetDefault("broadcast.history_size", 100)
	v.SetDefault("broadcast.queue_size", 200)
	v.SetDefault("janitor.schedule", "@every 1h")
	v.SetDefault("janitor.retention", "24h")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	d := DefaultSettings()
	v.SetDefault("translation.provider", d.Provider)
	v.SetDefault("translation.api_key", d.APIKey)
	v.SetDefault("translation.model", d.Model)
	v.SetDefault("translation.language", d.Language)
	v.SetDefault("translation.language_code", d.LanguageCode)
	v.SetDefault("translation.batch_size", d.BatchSize)
	v.SetDefault("translation.concurrency", d.Concurrency)
	v.SetDefault("translation.temperature", d.Temperature)
	v.SetDefault("translation.top_p", d.TopP)
	v.SetDefault("translation.top_k", d.TopK)
	v.SetDefault("translation.max_output_tokens", d.MaxOutputTokens)
	v.SetDefault("translation.safety_threshold", d.SafetyThreshold)
	v.SetDefault("translation.thinking", d.Thinking)
	v.SetDefault("translation.thinking_budget", d.ThinkingBudget)
	v.SetDefault("translation.max_retries", d.MaxRetries)
	v.SetDefault("translation.base_delay", d.BaseDelay)
	v.SetDefault("translation.max_delay", d.MaxDelay)
	v.SetDefault("translation.jitter", d.Jitter)
	v.SetDefault("translation.min_interval", d.MinInterval)
	v.SetDefault("translation.abort_on_exhaustion", d.AbortOnExhaustion)
	v.SetDefault("translation.description", d.Description)
	v.SetDefault("translation.auto_fetch_tmdb", d.AutoFetchTMDB)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("translation.api_key", "APP_TRANSLATION_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("tmdb.api_key", "APP_TMDB_API_KEY", "TMDB_API_KEY")
	_ = v.BindEnv("sentry.dsn", "APP_SENTRY_DSN", "SENTRY_DSN")

	setDefaults(v)
	return v
}

// LoadConfig reads config.yaml from the working directory (or ./config) and the environment.
// A missing file is not an error.
func LoadConfig() (*Config, error) {
	return load(newViper())
}

// LoadConfigFile reads configuration from an explicit file path.
func LoadConfigFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &config, nil
}

func GetLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// AttachLogSink tees every log line, as raw JSON, into sink in addition to the console.
// Loggers obtained from GetLogger before the call keep writing to the console only.
func AttachLogSink(sink io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	level := logger.GetLevel()
	logger = zerolog.New(zerolog.MultiLevelWriter(consoleOut, sink)).
		Level(level).
		With().Timestamp().Logger()
}

// ParseDuration parses a Go duration string, logging and returning fallback when it is empty or invalid.
func ParseDuration(field, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l := GetLogger()
		l.Warn().Err(err).Str("field", field).Str("value", value).Dur("fallback", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
