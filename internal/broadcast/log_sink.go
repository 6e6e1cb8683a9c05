package broadcast

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// LogSink is a zerolog.LevelWriter that republishes log lines as log events.
// Attach it with config.AttachLogSink.
type LogSink struct {
	publisher interface{ Publish(models.Event) }
	minLevel  zerolog.Level
}

// NewLogSink publishes every line at minLevel or above to b.
func NewLogSink(b *Broadcaster, minLevel zerolog.Level) *LogSink {
	return &LogSink{publisher: b, minLevel: minLevel}
}

// Write implements io.Writer. Lines without a level are dropped.
func (s *LogSink) Write(p []byte) (int, error) {
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter.
func (s *LogSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == zerolog.NoLevel || level < s.minLevel {
		return len(p), nil
	}
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}
	s.publisher.Publish(models.LogEvent(level.String(), formatEntry(entry)))
	return len(p), nil
}

// formatEntry renders the message followed by its fields in key order.
func formatEntry(entry map[string]any) string {
	msg, _ := entry[zerolog.MessageFieldName].(string)
	keys := make([]string, 0, len(entry))
	for k := range entry {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return msg
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry[k])
	}
	return sb.String()
}
