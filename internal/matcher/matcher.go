// Package matcher pairs uploaded subtitle files with video files by filename.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/Belphemur/SubTranslate/internal/models"
)

// PrefixThreshold is the minimum share of the subtitle stem that must be a
// common prefix with a video stem for a fuzzy match.
const PrefixThreshold = 0.7

var (
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".flv": {}, ".wmv": {}, ".webm": {},
	}
	subtitleExtensions = map[string]struct{}{
		".srt": {}, ".ass": {}, ".ssa": {}, ".vtt": {}, ".sub": {},
	}
)

// Classify returns the kind of a file from its extension, case-insensitively.
func Classify(name string) models.FileKind {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := videoExtensions[ext]; ok {
		return models.FileKindVideo
	}
	if _, ok := subtitleExtensions[ext]; ok {
		return models.FileKindText
	}
	return models.FileKindOther
}

// Stem returns the lower-cased filename without directory and final extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// CommonPrefixLen returns the length in bytes of the longest common prefix of a and b.
func CommonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Match pairs subtitles with videos.
//
// Exact stem matches are taken first and consume both sides. Each remaining
// subtitle is then paired with the unconsumed video sharing the longest common
// stem prefix, provided that prefix covers more than PrefixThreshold of the
// subtitle stem; ties go to the earliest video. Videos left over are reported
// as having no subtitles. The result lists subtitles in input order followed by
// the leftover videos in input order.
func Match(subtitles, videos []string) []models.FileMatch {
	subStems := make([]string, len(subtitles))
	for i, s := range subtitles {
		subStems[i] = Stem(s)
	}
	vidStems := make([]string, len(videos))
	for i, v := range videos {
		vidStems[i] = Stem(v)
	}

	usedVideo := make([]bool, len(videos))
	pairedWith := make([]int, len(subtitles))
	for i := range pairedWith {
		pairedWith[i] = -1
	}

	// Exact pass.
	for i, ss := range subStems {
		for j, vs := range vidStems {
			if !usedVideo[j] && ss == vs {
				usedVideo[j] = true
				pairedWith[i] = j
				break
			}
		}
	}

	// Prefix pass over what is left.
	for i, ss := range subStems {
		if pairedWith[i] >= 0 || ss == "" {
			continue
		}
		best, bestLen := -1, 0
		for j, vs := range vidStems {
			if usedVideo[j] {
				continue
			}
			if l := CommonPrefixLen(ss, vs); l > bestLen {
				best, bestLen = j, l
			}
		}
		if best >= 0 && float64(bestLen)/float64(len(ss)) > PrefixThreshold {
			usedVideo[best] = true
			pairedWith[i] = best
		}
	}

	matches := make([]models.FileMatch, 0, len(subtitles)+len(videos))
	for i := range subtitles {
		sub := subtitles[i]
		m := models.FileMatch{Subtitle: &sub, Status: models.MatchStatusNoMatch}
		if j := pairedWith[i]; j >= 0 {
			video := videos[j]
			m.Video = &video
			m.Status = models.MatchStatusMatched
		}
		matches = append(matches, m)
	}
	for j := range videos {
		if usedVideo[j] {
			continue
		}
		video := videos[j]
		matches = append(matches, models.FileMatch{Video: &video, Status: models.MatchStatusNoSubtitles})
	}
	return matches
}

// MatchPaths classifies names and matches the subtitle and video ones.
// Files of any other kind are ignored.
func MatchPaths(names []string) []models.FileMatch {
	var subtitles, videos []string
	for _, n := range names {
		switch Classify(n) {
		case models.FileKindText:
			subtitles = append(subtitles, n)
		case models.FileKindVideo:
			videos = append(videos, n)
		}
	}
	return Match(subtitles, videos)
}
