package models

import "time"

// Provider names accepted by the translator factory.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// GenerationParams are the sampling parameters sent with every remote call.
type GenerationParams struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	// SafetyThreshold is the provider block threshold, e.g. "BLOCK_NONE".
	SafetyThreshold string
	// ThinkingBudget limits reasoning tokens on models that support it; 0 disables thinking.
	ThinkingBudget int
}

// RetryPolicy bounds how often and how slowly a failed remote call is retried.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on any single delay
	Jitter      time.Duration // random extra delay added to each wait
}

// TranslationRequestConfig is the immutable configuration of one translation request.
// It is built once from runtime settings and request overrides and then only read.
type TranslationRequestConfig struct {
	Provider       string
	APIKey         string
	Model          string
	TargetLanguage string // human-readable name used in prompts, e.g. "German"
	LanguageCode   string // ISO code used in output filenames and cache keys, e.g. "de"
	Description    string // optional context about the media being translated

	Generation  GenerationParams
	Retry       RetryPolicy
	BatchSize   int
	Concurrency int
	// MinInterval is the minimum spacing between the start of two remote calls.
	MinInterval time.Duration

	// AbortOnExhaustion fails the whole file when a batch exhausts its retries
	// instead of keeping that batch's original text.
	AbortOnExhaustion bool
}

// JobState is a stage of a single file translation.
type JobState string

const (
	JobParsing      JobState = "parsing"
	JobBatching     JobState = "batching"
	JobTranslating  JobState = "translating"
	JobReassembling JobState = "reassembling"
	JobDone         JobState = "done"
	JobFailed       JobState = "failed"
)

// FileStatus is the final outcome of one file in a request.
type FileStatus string

const (
	FileStatusSuccess FileStatus = "Success"
	FileStatusFailed  FileStatus = "Failed"
)

// FilePair is one subtitle selected for translation, with its matched video if any.
type FilePair struct {
	Subtitle string  `json:"subtitle"`
	Video    *string `json:"video,omitempty"`
}

// FileResult reports what happened to one input subtitle.
type FileResult struct {
	OriginalSubtitle   string     `json:"original_subtitle"`
	TranslatedSubtitle string     `json:"translated_subtitle,omitempty"`
	Status             FileStatus `json:"status"`
	Error              string     `json:"error,omitempty"`
	TotalBlocks        int        `json:"total_blocks"`
	DegradedBlocks     int        `json:"degraded_blocks"`
	SourceLanguage     string     `json:"source_language,omitempty"`
}

// TranslationStats summarizes an orchestrated run over one file.
type TranslationStats struct {
	TotalBlocks    int
	CachedBlocks   int
	DegradedBlocks int
	Batches        int
	FailedBatches  int
}
