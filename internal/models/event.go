package models

// EventType distinguishes entries of the progress/log stream.
type EventType string

const (
	// EventLog carries a log line.
	EventLog EventType = "log"
	// EventProgress is emitted when a file of a request starts.
	EventProgress EventType = "progress"
	// EventTranslationProgress is emitted once per completed batch.
	EventTranslationProgress EventType = "translation_progress"
)

// Event is one entry of the progress/log stream. It is immutable once published.
// Fields irrelevant to the event type are left zero and omitted from JSON.
type Event struct {
	Type     EventType `json:"type"`
	Level    string    `json:"level,omitempty"`
	Message  string    `json:"message,omitempty"`
	JobID    string    `json:"job_id,omitempty"`
	Filename string    `json:"filename,omitempty"`

	// Current and Total count translated blocks for translation_progress
	// and files for progress.
	Current int `json:"current"`
	Total   int `json:"total"`

	CurrentFile int `json:"current_file,omitempty"`
	TotalFiles  int `json:"total_files,omitempty"`
}

// LogEvent builds a log entry.
func LogEvent(level, message string) Event {
	return Event{Type: EventLog, Level: level, Message: message}
}
