package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/models"
)

var (
	// blockSeparator splits cues on one or more blank (or whitespace-only) lines.
	blockSeparator = regexp.MustCompile(`\n[ \t]*\n\s*`)
	// timingLine matches "00:00:01,000 --> 00:00:02,500", also with '.' before the
	// milliseconds. Trailing position hints ("X1:40 X2:600 Y1:20 Y2:50") are captured.
	timingLine = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})(.*)$`)
)

// ParseSRT splits SRT content into ordered blocks.
//
// Parsing never fails: a chunk that lacks a valid index or timing line is kept
// verbatim as a malformed block and reported in the returned slice so callers
// can log it. Malformed blocks inherit the index of the preceding block so that
// ReassembleSRT keeps them in place.
func ParseSRT(content string) ([]models.SubtitleBlock, []*apperrors.ParseError) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.Trim(content, "\n \t")
	if content == "" {
		return nil, nil
	}

	chunks := blockSeparator.Split(content, -1)
	blocks := make([]models.SubtitleBlock, 0, len(chunks))
	var problems []*apperrors.ParseError
	lastIndex := 0

	for ordinal, chunk := range chunks {
		chunk = strings.Trim(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		block, reason := parseBlock(chunk, lastIndex)
		if reason != "" {
			problems = append(problems, &apperrors.ParseError{Block: ordinal + 1, Reason: reason})
			blocks = append(blocks, models.SubtitleBlock{Index: lastIndex, Raw: chunk})
			continue
		}
		lastIndex = block.Index
		blocks = append(blocks, block)
	}
	return blocks, problems
}

func parseBlock(chunk string, previous int) (models.SubtitleBlock, string) {
	lines := strings.Split(chunk, "\n")

	var index int
	switch {
	case timingLine.MatchString(lines[0]):
		// Some encoders omit the sequence number.
		index = previous + 1
		lines = append([]string{""}, lines...)
	default:
		n, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return models.SubtitleBlock{}, fmt.Sprintf("invalid index line %q", lines[0])
		}
		index = n
	}
	if len(lines) < 2 {
		return models.SubtitleBlock{}, "missing timing line"
	}

	start, end, position, ok := parseTiming(lines[1])
	if !ok {
		return models.SubtitleBlock{}, fmt.Sprintf("invalid timing line %q", lines[1])
	}

	text := lines[2:]
	if len(text) == 0 {
		text = nil
	}
	return models.SubtitleBlock{Index: index, Start: start, End: end, Position: position, Lines: text}, ""
}

func parseTiming(line string) (time.Duration, time.Duration, string, bool) {
	m := timingLine.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, "", false
	}
	return timestamp(m[1:5]), timestamp(m[5:9]), strings.TrimSpace(m[9]), true
}

func timestamp(parts []string) time.Duration {
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	// "5" means 500ms, "05" means 50ms.
	msText := (parts[3] + "00")[:3]
	ms, _ := strconv.Atoi(msText)
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ReassembleSRT renders blocks as SRT text, ordered by index.
// Malformed blocks are written back verbatim.
func ReassembleSRT(blocks []models.SubtitleBlock) string {
	ordered := make([]models.SubtitleBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	var sb strings.Builder
	for i, b := range ordered {
		if i > 0 {
			sb.WriteString("\n")
		}
		if b.Malformed() {
			sb.WriteString(b.Raw)
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "%d\n%s --> %s", b.Index, FormatTimestamp(b.Start), FormatTimestamp(b.End))
		if b.Position != "" {
			sb.WriteString(" ")
			sb.WriteString(b.Position)
		}
		sb.WriteString("\n")
		for _, line := range b.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// NormalizeCueText cleans model output so it fits in a single cue:
// line endings are unified and blank lines, which would end the cue, are dropped.
func NormalizeCueText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimRight(l, " \t"))
		}
	}
	return strings.Join(kept, "\n")
}
