package models

// FileKind is the category of an uploaded file, derived from its extension.
type FileKind string

const (
	FileKindVideo FileKind = "video"
	FileKindText  FileKind = "text"
	FileKindOther FileKind = "other"
)

// MatchStatus describes the outcome of pairing a subtitle with a video.
type MatchStatus string

const (
	MatchStatusMatched     MatchStatus = "Matched"
	MatchStatusNoMatch     MatchStatus = "No match"
	MatchStatusNoSubtitles MatchStatus = "No subtitles"
)

// FileMatch pairs a subtitle with a video. Either side may be absent:
// a subtitle without a video is "No match", a video without a subtitle is "No subtitles".
type FileMatch struct {
	Subtitle *string     `json:"subtitle"`
	Video    *string     `json:"video"`
	Status   MatchStatus `json:"status"`
}

// SubtitleName returns the subtitle filename or "".
func (m FileMatch) SubtitleName() string {
	if m.Subtitle == nil {
		return ""
	}
	return *m.Subtitle
}

// VideoName returns the video filename or "".
func (m FileMatch) VideoName() string {
	if m.Video == nil {
		return ""
	}
	return *m.Video
}
