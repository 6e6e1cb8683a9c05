package matcher

import (
	"testing"

	"github.com/Belphemur/SubTranslate/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want models.FileKind
	}{
		{"movie.MKV", models.FileKindVideo},
		{"clip.webm", models.FileKindVideo},
		{"show.s01e01.srt", models.FileKindText},
		{"subs.ASS", models.FileKindText},
		{"captions.vtt", models.FileKindText},
		{"notes.txt", models.FileKindOther},
		{"noext", models.FileKindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

type expectation struct {
	subtitle string
	video    string
	status   models.MatchStatus
}

func assertMatches(t *testing.T, got []models.FileMatch, want []expectation) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.SubtitleName() != w.subtitle || g.VideoName() != w.video || g.Status != w.status {
			t.Errorf("match[%d] = {%q %q %q}, want {%q %q %q}",
				i, g.SubtitleName(), g.VideoName(), g.Status, w.subtitle, w.video, w.status)
		}
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		subtitles []string
		videos    []string
		want      []expectation
	}{
		{
			name:      "exact stem ignoring case",
			subtitles: []string{"Movie.SRT"},
			videos:    []string{"movie.mkv"},
			want:      []expectation{{"Movie.SRT", "movie.mkv", models.MatchStatusMatched}},
		},
		{
			name:      "prefix above threshold",
			subtitles: []string{"show.s01e01.en.srt"},
			videos:    []string{"show.s01e01.1080p.mkv"},
			want:      []expectation{{"show.s01e01.en.srt", "show.s01e01.1080p.mkv", models.MatchStatusMatched}},
		},
		{
			name:      "prefix below threshold",
			subtitles: []string{"ep_one.srt"},
			videos:    []string{"ep_two.mkv"},
			want: []expectation{
				{"ep_one.srt", "", models.MatchStatusNoMatch},
				{"", "ep_two.mkv", models.MatchStatusNoSubtitles},
			},
		},
		{
			name:      "exact match wins over an earlier prefix candidate",
			subtitles: []string{"show.e01.x.srt", "show.e01.srt"},
			videos:    []string{"show.e01.mkv"},
			want: []expectation{
				{"show.e01.x.srt", "", models.MatchStatusNoMatch},
				{"show.e01.srt", "show.e01.mkv", models.MatchStatusMatched},
			},
		},
		{
			name:      "tie resolves to first video",
			subtitles: []string{"abcdefghij.srt"},
			videos:    []string{"abcdefghiX.mkv", "abcdefghiY.mkv"},
			want: []expectation{
				{"abcdefghij.srt", "abcdefghiX.mkv", models.MatchStatusMatched},
				{"", "abcdefghiY.mkv", models.MatchStatusNoSubtitles},
			},
		},
		{
			name:      "videos only",
			subtitles: nil,
			videos:    []string{"a.mp4", "b.mp4"},
			want: []expectation{
				{"", "a.mp4", models.MatchStatusNoSubtitles},
				{"", "b.mp4", models.MatchStatusNoSubtitles},
			},
		},
		{
			name:      "subtitles only",
			subtitles: []string{"a.srt"},
			videos:    nil,
			want:      []expectation{{"a.srt", "", models.MatchStatusNoMatch}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assertMatches(t, Match(tt.subtitles, tt.videos), tt.want)
		})
	}
}

// Every input appears exactly once and no video is matched twice.
func TestMatch_Coverage(t *testing.T) {
	t.Parallel()
	subtitles := []string{"a.s01e01.srt", "a.s01e02.srt", "a.s01e03.srt", "b.srt", "zzz.srt"}
	videos := []string{"a.s01e02.mkv", "a.s01e01.mkv", "a.s01e03.720p.mkv", "c.mkv"}

	got := Match(subtitles, videos)

	seenSub := map[string]int{}
	seenVid := map[string]int{}
	for _, m := range got {
		if m.Subtitle != nil {
			seenSub[*m.Subtitle]++
		}
		if m.Video != nil {
			seenVid[*m.Video]++
		}
	}
	for _, s := range subtitles {
		if seenSub[s] != 1 {
			t.Errorf("subtitle %q appears %d times", s, seenSub[s])
		}
	}
	for _, v := range videos {
		if seenVid[v] != 1 {
			t.Errorf("video %q appears %d times", v, seenVid[v])
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	t.Parallel()
	subtitles := []string{"x1.srt", "x2.srt"}
	videos := []string{"x1a.mkv", "x2a.mkv", "x3.mkv"}
	first := Match(subtitles, videos)
	for i := 0; i < 10; i++ {
		again := Match(subtitles, videos)
		for j := range first {
			if first[j].SubtitleName() != again[j].SubtitleName() || first[j].VideoName() != again[j].VideoName() {
				t.Fatalf("run %d differs at %d", i, j)
			}
		}
	}
}

func TestMatchPaths_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	got := MatchPaths([]string{"readme.txt", "film.srt", "film.mp4"})
	assertMatches(t, got, []expectation{{"film.srt", "film.mp4", models.MatchStatusMatched}})
}

func TestCommonPrefixLen(t *testing.T) {
	t.Parallel()
	if got := CommonPrefixLen("abcdef", "abcxyz"); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := CommonPrefixLen("abc", "abcdef"); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := CommonPrefixLen("", "abc"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
