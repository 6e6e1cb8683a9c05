package services

import (
	"context"

	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// TranslateRequest asks for the translation of uploaded subtitles.
type TranslateRequest struct {
	Files []models.FilePair
	// Settings are the runtime settings with any request overrides applied.
	Settings config.Settings
}

// TranslateResponse holds one result per requested file, in request order.
type TranslateResponse struct {
	JobID   string              `json:"job_id"`
	Results []models.FileResult `json:"results"`
}

// EventPublisher receives progress events. Publish must not block.
type EventPublisher interface {
	Publish(e models.Event)
}

// JobService runs translation requests file by file.
type JobService interface {
	// TranslateFiles translates every file and reports exactly one result per
	// file. A failing file never stops its siblings.
	TranslateFiles(ctx context.Context, req TranslateRequest) TranslateResponse

	// StreamTranslateFiles delivers each file's result as soon as it is done.
	// The stream ends early with an error only when ctx is cancelled.
	StreamTranslateFiles(ctx context.Context, req TranslateRequest) (string, <-chan models.StreamResult[models.FileResult])
}
