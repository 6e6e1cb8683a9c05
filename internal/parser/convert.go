package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/asticode/go-astisub"
)

// ConvertToSRT reads a subtitle file in the format named by ext and renders it
// as SRT text. SRT input is returned unchanged.
func ConvertToSRT(r io.Reader, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if ext == ".srt" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read subtitle: %w", err)
		}
		return string(data), nil
	}

	var (
		subs *astisub.Subtitles
		err  error
	)
	switch ext {
	case ".vtt":
		subs, err = astisub.ReadFromWebVTT(r)
	case ".ass", ".ssa":
		subs, err = astisub.ReadFromSSA(r)
	default:
		return "", fmt.Errorf("unsupported subtitle format %q", ext)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s subtitle: %w", ext, err)
	}

	var buf bytes.Buffer
	if err := subs.WriteToSRT(&buf); err != nil {
		return "", fmt.Errorf("failed to write srt: %w", err)
	}
	return buf.String(), nil
}
