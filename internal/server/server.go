package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/broadcast"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/services"
)

// SettingsStore reads and updates the runtime translation settings.
type SettingsStore interface {
	Get() config.Settings
	Update(patch config.SettingsPatch) (config.Settings, error)
}

// CacheClearer empties the translation cache.
type CacheClearer interface {
	Clear() error
}

// Options wires a Server.
type Options struct {
	Uploads  services.UploadService
	Jobs     services.JobService
	Media    services.MediaInfoService
	Settings SettingsStore
	Cache    CacheClearer
	Events   *broadcast.Broadcaster
	// Models lists the selectable model names per provider.
	Models map[string][]string
	// KeepAlive is the interval of SSE comment frames. Defaults to 15s.
	KeepAlive time.Duration
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger zerolog.Logger
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New builds the gin engine and registers every route.
func New(opts Options) *Server {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	s := &Server{
		opts:   opts,
		engine: gin.New(),
		logger: config.GetLogger(),
	}
	s.engine.MaxMultipartMemory = 100 << 20
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)
	r.POST("/upload_files/", s.uploadFiles)
	r.GET("/config/", s.getConfig)
	r.POST("/config/", s.updateConfig)
	r.GET("/models/", s.listModels)
	r.POST("/translate/", s.translate)
	r.GET("/tmdb/info", s.tmdbInfo)
	r.GET("/logs/stream/", s.streamLogs)
	r.GET("/download/:filename", s.download)
	r.POST("/clear_cache", s.clearCache)
}

// requestLogger logs one line per request. The event stream is skipped once
// connected since it lives as long as the client.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/logs/stream/" {
			return
		}
		event := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// statusFor maps an error onto the HTTP status returned to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, &apperrors.ConfigurationError{}):
		return http.StatusBadRequest
	case errors.Is(err, &apperrors.ErrNotFound{}):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
