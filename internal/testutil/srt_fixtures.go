package testutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/Belphemur/SubTranslate/internal/parser"
)

// StringPtr is a helper for creating *string values in tests
func StringPtr(v string) *string {
	return &v
}

// SRT builds an SRT document with one cue per text. Cue i starts at second
// i+1 and lasts 1.5 seconds. A text may span several lines.
func SRT(texts ...string) string {
	var sb strings.Builder
	for i, text := range texts {
		if i > 0 {
			sb.WriteString("\n")
		}
		start := time.Duration(i+1) * time.Second
		end := start + 1500*time.Millisecond
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n", i+1, parser.FormatTimestamp(start), parser.FormatTimestamp(end), text)
	}
	return sb.String()
}
