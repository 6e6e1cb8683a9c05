package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/metrics"
	"github.com/Belphemur/SubTranslate/internal/models"
	"github.com/Belphemur/SubTranslate/internal/parser"
)

// JobServiceOptions wires a DefaultJobService.
type JobServiceOptions struct {
	Factory      TranslatorFactory
	Orchestrator Orchestrator
	// MediaInfo is optional; without it no description is fetched.
	MediaInfo MediaInfoService
	// Publisher is optional; without it progress is only logged.
	Publisher EventPublisher

	UploadDir string
	OutputDir string
	// MaxConcurrent bounds how many requests translate at once. Defaults to 1.
	MaxConcurrent int64
}

// DefaultJobService is the default implementation of JobService.
type DefaultJobService struct {
	factory      TranslatorFactory
	orchestrator Orchestrator
	media        MediaInfoService
	publisher    EventPublisher
	uploadDir    string
	outputDir    string
	sem          *semaphore.Weighted
	newID        func() string
}

// NewJobService creates a JobService.
func NewJobService(opts JobServiceOptions) *DefaultJobService {
	limit := opts.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return &DefaultJobService{
		factory:      opts.Factory,
		orchestrator: opts.Orchestrator,
		media:        opts.MediaInfo,
		publisher:    opts.Publisher,
		uploadDir:    opts.UploadDir,
		outputDir:    opts.OutputDir,
		sem:          semaphore.NewWeighted(limit),
		newID:        uuid.NewString,
	}
}

// OutputName returns the name of the translated file for subtitle, e.g.
// "movie.srt" and "de" give "movie.de.srt". Non-SRT inputs also produce SRT.
func OutputName(subtitle, languageCode string) string {
	base := filepath.Base(subtitle)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + languageCode + ".srt"
}

// TranslateFiles implements JobService.
func (s *DefaultJobService) TranslateFiles(ctx context.Context, req TranslateRequest) TranslateResponse {
	jobID, stream := s.StreamTranslateFiles(ctx, req)
	results, err := models.Collect(stream)
	if err != nil {
		for _, f := range req.Files[len(results):] {
			results = append(results, failedResult(f.Subtitle, err))
		}
	}
	return TranslateResponse{JobID: jobID, Results: results}
}

// StreamTranslateFiles implements JobService.
func (s *DefaultJobService) StreamTranslateFiles(ctx context.Context, req TranslateRequest) (string, <-chan models.StreamResult[models.FileResult]) {
	jobID := s.newID()
	out := make(chan models.StreamResult[models.FileResult], len(req.Files)+1)

	go func() {
		defer close(out)
		logger := config.GetLogger().With().Str("job_id", jobID).Logger()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			out <- models.StreamResult[models.FileResult]{Err: err}
			return
		}
		defer s.sem.Release(1)

		cfg, err := req.Settings.RequestConfig()
		if err != nil {
			logger.Error().Err(err).Msg("Invalid translation settings")
			for _, f := range req.Files {
				out <- models.StreamResult[models.FileResult]{Value: failedResult(f.Subtitle, err)}
			}
			return
		}

		logger.Info().Int("files", len(req.Files)).Str("model", cfg.Model).Str("language", cfg.LanguageCode).Msg("Starting translation job")
		for i, f := range req.Files {
			if err := ctx.Err(); err != nil {
				out <- models.StreamResult[models.FileResult]{Err: err}
				return
			}
			out <- models.StreamResult[models.FileResult]{Value: s.translateFile(ctx, jobID, i, len(req.Files), f, cfg, req.Settings.AutoFetchTMDB)}
		}
		logger.Info().Msg("Translation job finished")
	}()
	return jobID, out
}

func (s *DefaultJobService) translateFile(ctx context.Context, jobID string, ordinal, total int, pair models.FilePair, cfg models.TranslationRequestConfig, autoDescribe bool) models.FileResult {
	name := filepath.Base(pair.Subtitle)
	tracker := newJobTracker(jobID, name)
	start := time.Now()

	s.publish(models.Event{
		Type:        models.EventProgress,
		JobID:       jobID,
		Filename:    name,
		Current:     ordinal + 1,
		Total:       total,
		CurrentFile: ordinal + 1,
		TotalFiles:  total,
	})

	result, err := s.runFile(ctx, tracker, jobID, pair, cfg, autoDescribe)
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		tracker.fail(err)
		metrics.SubtitleTranslationsTotal.WithLabelValues("failed").Inc()
		reportFailure(err, jobID, name)
		failed := failedResult(name, err)
		failed.TotalBlocks = result.TotalBlocks
		return failed
	}
	metrics.SubtitleTranslationsTotal.WithLabelValues("success").Inc()
	return result
}

func (s *DefaultJobService) runFile(ctx context.Context, tracker *jobTracker, jobID string, pair models.FilePair, cfg models.TranslationRequestConfig, autoDescribe bool) (models.FileResult, error) {
	name := filepath.Base(pair.Subtitle)
	result := models.FileResult{OriginalSubtitle: name}

	tracker.advance(models.JobParsing)
	content, err := s.readSubtitle(name)
	if err != nil {
		return result, err
	}
	blocks, problems := parser.ParseSRT(content)
	for _, p := range problems {
		tracker.logger.Warn().Err(p).Msg("Keeping malformed subtitle block verbatim")
	}
	if len(blocks) == 0 {
		return result, fmt.Errorf("no subtitle blocks found in %s", name)
	}
	result.TotalBlocks = len(blocks)
	if lang, ok := parser.DetectLanguage(blocks); ok {
		result.SourceLanguage = lang
	}

	fileCfg := cfg
	if fileCfg.Description == "" && autoDescribe {
		fileCfg.Description = s.describe(ctx, tracker.logger, pair)
	}
	translator, err := s.factory.New(ctx, fileCfg)
	if err != nil {
		return result, err
	}

	tracker.advance(models.JobBatching)
	progress := make(chan models.Event, 16)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for e := range progress {
			s.publish(e)
		}
	}()

	tracker.advance(models.JobTranslating)
	translated, err := s.orchestrator.Translate(ctx, OrchestrateRequest{
		JobID:      jobID,
		Filename:   name,
		Blocks:     blocks,
		Translator: translator,
		Progress:   progress,
	})
	close(progress)
	<-forwarded
	if err != nil {
		return result, err
	}

	tracker.advance(models.JobReassembling)
	outName := OutputName(name, cfg.LanguageCode)
	if err := s.writeOutput(outName, parser.ReassembleSRT(translated.Blocks)); err != nil {
		return result, err
	}

	tracker.advance(models.JobDone)
	tracker.logger.Info().
		Int("blocks", translated.Stats.TotalBlocks).
		Int("cached", translated.Stats.CachedBlocks).
		Int("degraded", translated.Stats.DegradedBlocks).
		Str("output", outName).
		Msg("Subtitle translated")

	result.Status = models.FileStatusSuccess
	result.TranslatedSubtitle = outName
	result.DegradedBlocks = translated.Stats.DegradedBlocks
	return result, nil
}

// readSubtitle loads an uploaded subtitle as UTF-8 SRT text.
func (s *DefaultJobService) readSubtitle(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", apperrors.NewNotFoundError("subtitle", name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	text, _, err := parser.DecodeToUTF8(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return parser.ConvertToSRT(strings.NewReader(text), filepath.Ext(name))
}

func (s *DefaultJobService) writeOutput(name, content string) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.outputDir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// describe fetches media context for the prompt. Lookup failures only cost context.
func (s *DefaultJobService) describe(ctx context.Context, logger zerolog.Logger, pair models.FilePair) string {
	if s.media == nil {
		return ""
	}
	source := pair.Subtitle
	if pair.Video != nil && *pair.Video != "" {
		source = *pair.Video
	}
	info, err := s.media.Lookup(ctx, filepath.Base(source), "")
	if err != nil {
		logger.Warn().Err(err).Str("source", source).Msg("No media info for prompt context")
		return ""
	}
	return info.Description()
}

func (s *DefaultJobService) publish(e models.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

func failedResult(subtitle string, err error) models.FileResult {
	return models.FileResult{
		OriginalSubtitle: filepath.Base(subtitle),
		Status:           models.FileStatusFailed,
		Error:            err.Error(),
	}
}

// reportFailure sends unexpected failures to Sentry. Configuration and
// not-found errors are the caller's problem and are not reported.
func reportFailure(err error, jobID, filename string) {
	if errors.Is(err, &apperrors.ConfigurationError{}) || errors.Is(err, &apperrors.ErrNotFound{}) || errors.Is(err, context.Canceled) {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", jobID)
		scope.SetTag("file", filename)
	})
	hub.CaptureException(err)
}

// jobTracker logs the state transitions of one file.
type jobTracker struct {
	logger zerolog.Logger
	state  models.JobState
}

func newJobTracker(jobID, filename string) *jobTracker {
	return &jobTracker{
		logger: config.GetLogger().With().Str("job_id", jobID).Str("file", filename).Logger(),
	}
}

func (t *jobTracker) advance(next models.JobState) {
	t.logger.Debug().Str("from", string(t.state)).Str("to", string(next)).Msg("Job state changed")
	t.state = next
}

func (t *jobTracker) fail(err error) {
	t.logger.Error().Err(err).Str("from", string(t.state)).Str("to", string(models.JobFailed)).Msg("Subtitle translation failed")
	t.state = models.JobFailed
}
