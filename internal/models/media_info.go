package models

// MediaInfo is the movie or episode metadata resolved from a filename.
type MediaInfo struct {
	Title           string `json:"title"`
	Year            string `json:"year,omitempty"`
	Overview        string `json:"overview,omitempty"`
	PosterPath      string `json:"poster_path,omitempty"`
	EpisodeTitle    string `json:"episode_title,omitempty"`
	EpisodeOverview string `json:"episode_overview,omitempty"`
}

// Description renders the metadata as prompt context for the translator.
func (m MediaInfo) Description() string {
	desc := m.Title
	if m.Year != "" {
		desc += " (" + m.Year + ")"
	}
	if m.Overview != "" {
		desc += ": " + m.Overview
	}
	if m.EpisodeTitle != "" {
		desc += "\nEpisode: " + m.EpisodeTitle
		if m.EpisodeOverview != "" {
			desc += ": " + m.EpisodeOverview
		}
	}
	return desc
}

// FilenameInfo is what can be recovered from a release filename alone.
type FilenameInfo struct {
	Title   string
	Year    int // 0 when unknown
	Season  int // 0 for movies
	Episode int // 0 for movies
}

// IsEpisode reports whether a season/episode marker was found.
func (f FilenameInfo) IsEpisode() bool {
	return f.Season > 0 && f.Episode > 0
}
