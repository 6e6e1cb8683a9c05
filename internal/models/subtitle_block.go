package models

import (
	"strings"
	"time"
)

// SubtitleBlock is one timed cue of an SRT file.
type SubtitleBlock struct {
	Index int           // 1-based sequence number as written in the file
	Start time.Duration // cue start offset
	End   time.Duration // cue end offset
	Lines []string      // text lines, in order; may be empty

	// Position is the display hint written after the end timestamp, if any.
	Position string

	// Raw holds the verbatim text of a block that could not be parsed.
	// Such blocks are written back untouched and never translated.
	Raw string
}

// Malformed reports whether the block was kept verbatim instead of parsed.
func (b SubtitleBlock) Malformed() bool {
	return b.Raw != ""
}

// Text returns the block's lines joined with newlines.
func (b SubtitleBlock) Text() string {
	return strings.Join(b.Lines, "\n")
}

// Translatable reports whether the block carries text worth sending to a model.
func (b SubtitleBlock) Translatable() bool {
	return !b.Malformed() && strings.TrimSpace(b.Text()) != ""
}

// WithText returns a copy of the block whose lines are replaced by text split on newlines.
func (b SubtitleBlock) WithText(text string) SubtitleBlock {
	b.Lines = strings.Split(text, "\n")
	return b
}
