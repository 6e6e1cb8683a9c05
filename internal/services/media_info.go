package services

import (
	"context"

	"github.com/Belphemur/SubTranslate/internal/client"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// MediaInfoService resolves movie or episode metadata from a release filename.
type MediaInfoService interface {
	// Lookup searches TMDB for the media a filename refers to. seriesTitle, when
	// set, replaces the title guessed from the filename and forces a TV lookup.
	Lookup(ctx context.Context, filename, seriesTitle string) (models.MediaInfo, error)

	// ParseFilename extracts title, year, season and episode from a release name.
	ParseFilename(filename string) models.FilenameInfo
}

// TMDBSearcher is the subset of the TMDB API used for lookups.
type TMDBSearcher interface {
	SearchMovie(ctx context.Context, query string, year int) ([]client.TMDBMovie, error)
	SearchTV(ctx context.Context, query string, year int) ([]client.TMDBShow, error)
	GetEpisode(ctx context.Context, showID, season, episode int) (*client.TMDBEpisode, error)
}
