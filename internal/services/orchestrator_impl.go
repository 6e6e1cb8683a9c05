package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/metrics"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// DefaultOrchestrator translates through a shared TranslationCache.
type DefaultOrchestrator struct {
	cache *TranslationCache
}

// NewOrchestrator creates an orchestrator backed by cache.
func NewOrchestrator(cache *TranslationCache) *DefaultOrchestrator {
	return &DefaultOrchestrator{cache: cache}
}

// batchOutcome is what one batch contributed to the file.
type batchOutcome struct {
	cached   int
	degraded int
	err      error
}

// Translate runs the batches of req with at most Concurrency of them in flight.
//
// A batch whose remote call runs out of retries keeps its original text and
// counts as degraded, unless the config asks to abort. Fatal provider errors
// and cancellation always fail the file.
func (o *DefaultOrchestrator) Translate(ctx context.Context, req OrchestrateRequest) (OrchestrateResult, error) {
	cfg := req.Translator.Config()
	logger := config.GetLogger().With().Str("job_id", req.JobID).Str("file", req.Filename).Logger()

	out := make([]models.SubtitleBlock, len(req.Blocks))
	copy(out, req.Blocks)

	var positions []int
	for i, b := range out {
		if b.Translatable() {
			positions = append(positions, i)
		}
	}
	batches := partition(positions, cfg.BatchSize)
	stats := models.TranslationStats{TotalBlocks: len(positions), Batches: len(batches)}
	logger.Debug().Int("blocks", len(positions)).Int("batches", len(batches)).Int("concurrency", cfg.Concurrency).Msg("Batched subtitle blocks")

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))

	for n, batch := range batches {
		g.Go(func() error {
			res := o.translateBatch(gctx, req.Translator, cfg, out, batch)

			mu.Lock()
			defer mu.Unlock()
			stats.CachedBlocks += res.cached
			if res.err != nil {
				stats.FailedBatches++
				if abortsFile(res.err, cfg) {
					metrics.TranslationBatchesTotal.WithLabelValues("failed").Inc()
					return fmt.Errorf("batch %d of %s: %w", n+1, req.Filename, res.err)
				}
				logger.Warn().Err(res.err).Int("batch", n+1).Msg("Batch failed, keeping original text")
			}
			stats.DegradedBlocks += res.degraded
			metrics.DegradedBlocksTotal.Add(float64(res.degraded))
			if res.err != nil || res.degraded > 0 {
				metrics.TranslationBatchesTotal.WithLabelValues("degraded").Inc()
			} else {
				metrics.TranslationBatchesTotal.WithLabelValues("success").Inc()
			}

			done += len(batch)
			return emit(gctx, req.Progress, models.Event{
				Type:     models.EventTranslationProgress,
				JobID:    req.JobID,
				Filename: req.Filename,
				Current:  done,
				Total:    len(positions),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return OrchestrateResult{Stats: stats}, err
	}
	return OrchestrateResult{Blocks: out, Stats: stats}, nil
}

// translateBatch fills out at positions from the cache and the translator. Only
// the keys this batch claimed are sent to the model; keys claimed elsewhere are
// awaited. Blocks left without a translation keep their text and count as degraded.
func (o *DefaultOrchestrator) translateBatch(ctx context.Context, tr Translator, cfg models.TranslationRequestConfig, out []models.SubtitleBlock, positions []int) batchOutcome {
	var res batchOutcome

	keys := make([]string, len(positions))
	texts := make(map[string]string, len(positions))
	for j, pos := range positions {
		text := out[pos].Text()
		keys[j] = CacheKey(text, cfg.Model, cfg.LanguageCode)
		texts[keys[j]] = text
	}

	lookup := o.cache.Lookup(keys)
	translated := make(map[string]string, len(keys))
	for k, v := range lookup.Hits {
		translated[k] = v
	}

	if len(lookup.Owned) > 0 {
		batchTexts := make([]string, len(lookup.Owned))
		for i, key := range lookup.Owned {
			batchTexts[i] = texts[key]
		}
		result, err := tr.TranslateBatch(ctx, batchTexts)
		for i, key := range lookup.Owned {
			if err != nil || result.Degraded[i] {
				o.cache.Release(key, "", false)
				continue
			}
			o.cache.Release(key, result.Lines[i], true)
			translated[key] = result.Lines[i]
		}
		res.err = err
	}

	for key, pending := range lookup.Pending {
		value, ok, err := pending.Wait(ctx)
		if err != nil {
			res.err = errors.Join(res.err, err)
			break
		}
		if ok {
			translated[key] = value
		}
	}

	for j, pos := range positions {
		value, ok := translated[keys[j]]
		if !ok {
			res.degraded++
			continue
		}
		if _, hit := lookup.Hits[keys[j]]; hit {
			res.cached++
		}
		out[pos] = out[pos].WithText(value)
	}
	return res
}

// abortsFile reports whether a batch failure must fail the whole file.
func abortsFile(err error, cfg models.TranslationRequestConfig) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apperrors.Classify(err) == apperrors.KindFatal {
		return true
	}
	return cfg.AbortOnExhaustion
}

// partition splits positions into contiguous chunks of at most size elements.
func partition(positions []int, size int) [][]int {
	if size < 1 {
		size = 1
	}
	batches := make([][]int, 0, (len(positions)+size-1)/size)
	for start := 0; start < len(positions); start += size {
		end := min(start+size, len(positions))
		batches = append(batches, positions[start:end])
	}
	return batches
}

// emit sends e on ch unless ch is nil or ctx ends first.
func emit(ctx context.Context, ch chan<- models.Event, e models.Event) error {
	if ch == nil {
		return nil
	}
	select {
	case ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
