package services

import (
	"context"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// OrchestrateRequest is one file's worth of blocks to translate.
type OrchestrateRequest struct {
	JobID      string
	Filename   string
	Blocks     []models.SubtitleBlock
	Translator Translator

	// Progress, when set, receives one translation_progress event per finished batch.
	Progress chan<- models.Event
}

// OrchestrateResult holds the translated blocks in their original order.
type OrchestrateResult struct {
	Blocks []models.SubtitleBlock
	Stats  models.TranslationStats
}

// Orchestrator splits a file into batches, translates them concurrently and
// writes every result back at its block's original position.
type Orchestrator interface {
	Translate(ctx context.Context, req OrchestrateRequest) (OrchestrateResult, error)
}
