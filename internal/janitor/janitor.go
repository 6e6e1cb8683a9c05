// Package janitor removes stale uploads and translated files on a schedule.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Belphemur/SubTranslate/internal/config"
)

// Janitor deletes regular files older than the retention period from a set
// of directories.
type Janitor struct {
	dirs      []string
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

// New schedules a sweep of dirs. schedule is a standard five-field cron
// expression or a descriptor such as "@every 1h".
func New(schedule string, retention time.Duration, dirs ...string) (*Janitor, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("janitor retention must be positive, got %s", retention)
	}
	j := &Janitor{
		dirs:      dirs,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running sweep finishes.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// Sweep removes every expired file and returns how many were deleted.
// Directories are never removed and missing directories are skipped.
func (j *Janitor) Sweep() int {
	logger := config.GetLogger()
	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, dir := range j.dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Janitor cannot read directory")
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("Janitor failed to remove file")
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info().Int("removed", removed).Dur("retention", j.retention).Msg("Removed stale files")
	}
	return removed
}
