package services

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	ptn "github.com/razsteinmetz/go-ptn"
	"golang.org/x/sync/singleflight"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/models"
)

var (
	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)s(\d{1,2})e(\d{1,2})`),
		regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,2})\b`),
		regexp.MustCompile(`(?i)season[._\s]?(\d{1,2})[._\s]?episode[._\s]?(\d{1,2})`),
	}
	releaseTagPattern = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4k|uhd|web ?dl|webrip|bluray|brrip|dvdrip|hdrip|hdtv|x264|x265|h264|h265|hevc|aac|ac3|dts|remux|repack|proper|internal|limited|extended|uncut)\b`)
	bracketYearPattern = regexp.MustCompile(`[(\[]((?:19|20)\d{2})[)\]]`)
	yearPattern        = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	separatorPattern   = regexp.MustCompile(`[._\-]+`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

// DefaultMediaInfoService looks media up on TMDB and memoizes the answers.
type DefaultMediaInfoService struct {
	tmdb  TMDBSearcher
	cache *expirable.LRU[string, models.MediaInfo]
	group singleflight.Group
}

// NewMediaInfoService creates a MediaInfoService. tmdb may be nil, in which
// case only ParseFilename works.
func NewMediaInfoService(tmdb TMDBSearcher, cacheSize int, ttl time.Duration) *DefaultMediaInfoService {
	if cacheSize < 1 {
		cacheSize = 256
	}
	return &DefaultMediaInfoService{
		tmdb:  tmdb,
		cache: expirable.NewLRU[string, models.MediaInfo](cacheSize, nil, ttl),
	}
}

// Lookup implements MediaInfoService. Concurrent identical lookups share one
// set of TMDB requests.
func (s *DefaultMediaInfoService) Lookup(ctx context.Context, filename, seriesTitle string) (models.MediaInfo, error) {
	if s.tmdb == nil {
		return models.MediaInfo{}, apperrors.NewConfigurationError("tmdb.api_key", "TMDB is not configured")
	}
	key := strings.ToLower(filepath.Base(filename)) + "\x00" + strings.ToLower(strings.TrimSpace(seriesTitle))
	if info, ok := s.cache.Get(key); ok {
		return info, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		info, err := s.lookup(ctx, filename, strings.TrimSpace(seriesTitle))
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, info)
		return info, nil
	})
	if err != nil {
		return models.MediaInfo{}, err
	}
	return v.(models.MediaInfo), nil
}

func (s *DefaultMediaInfoService) lookup(ctx context.Context, filename, seriesTitle string) (models.MediaInfo, error) {
	parsed := s.ParseFilename(filename)
	logger := config.GetLogger()

	if seriesTitle == "" && !parsed.IsEpisode() {
		logger.Debug().Str("title", parsed.Title).Int("year", parsed.Year).Msg("Searching TMDB for movie")
		movies, err := s.tmdb.SearchMovie(ctx, parsed.Title, parsed.Year)
		if err != nil {
			return models.MediaInfo{}, err
		}
		if len(movies) == 0 && parsed.Year > 0 {
			logger.Debug().Str("title", parsed.Title).Msg("No movie for that year, searching without it")
			if movies, err = s.tmdb.SearchMovie(ctx, parsed.Title, 0); err != nil {
				return models.MediaInfo{}, err
			}
		}
		if len(movies) == 0 {
			return models.MediaInfo{}, apperrors.NewNotFoundError("movie", parsed.Title)
		}
		best := movies[0]
		return models.MediaInfo{
			Title:      best.Title,
			Year:       yearOf(best.ReleaseDate),
			Overview:   best.Overview,
			PosterPath: best.PosterPath,
		}, nil
	}

	if !parsed.IsEpisode() {
		return models.MediaInfo{}, apperrors.NewNotFoundError("season and episode in filename", filepath.Base(filename))
	}
	title := parsed.Title
	if seriesTitle != "" {
		title = seriesTitle
	}
	logger.Debug().Str("title", title).Int("season", parsed.Season).Int("episode", parsed.Episode).Msg("Searching TMDB for episode")
	shows, err := s.tmdb.SearchTV(ctx, title, 0)
	if err != nil {
		return models.MediaInfo{}, err
	}
	if len(shows) == 0 {
		return models.MediaInfo{}, apperrors.NewNotFoundError("tv series", title)
	}
	best := shows[0]
	episode, err := s.tmdb.GetEpisode(ctx, best.ID, parsed.Season, parsed.Episode)
	if err != nil {
		return models.MediaInfo{}, err
	}
	poster := episode.StillPath
	if poster == "" {
		poster = best.PosterPath
	}
	return models.MediaInfo{
		Title:           best.Name,
		Year:            yearOf(best.FirstAirDate),
		Overview:        best.Overview,
		PosterPath:      poster,
		EpisodeTitle:    episode.Name,
		EpisodeOverview: episode.Overview,
	}, nil
}

// ParseFilename implements MediaInfoService. The release-name parser is tried
// first; regexes fill in whatever it missed.
func (s *DefaultMediaInfoService) ParseFilename(filename string) models.FilenameInfo {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var info models.FilenameInfo
	if parsed, err := ptn.Parse(base); err == nil && parsed != nil {
		info.Title = strings.TrimSpace(parsed.Title)
		info.Year = parsed.Year
		info.Season = parsed.Season
		info.Episode = parsed.Episode
	}

	markerAt := -1
	for _, re := range episodePatterns {
		m := re.FindStringSubmatchIndex(stem)
		if m == nil {
			continue
		}
		markerAt = m[0]
		if !info.IsEpisode() {
			info.Season, _ = strconv.Atoi(stem[m[2]:m[3]])
			info.Episode, _ = strconv.Atoi(stem[m[4]:m[5]])
		}
		break
	}
	if info.Year == 0 {
		if m := yearPattern.FindStringSubmatch(stem); m != nil {
			info.Year, _ = strconv.Atoi(m[1])
		}
	}
	if info.Title == "" {
		head := stem
		if markerAt > 0 {
			head = stem[:markerAt]
		}
		info.Title = CleanTitle(head)
	}
	return info
}

// CleanTitle turns a release-name fragment into a search query: separators
// become spaces and release tags, years and episode markers are dropped.
func CleanTitle(name string) string {
	cleaned := separatorPattern.ReplaceAllString(name, " ")
	cleaned = releaseTagPattern.ReplaceAllString(cleaned, " ")
	cleaned = bracketYearPattern.ReplaceAllString(cleaned, " ")
	for _, re := range episodePatterns {
		cleaned = re.ReplaceAllString(cleaned, " ")
	}
	if withoutYear := strings.TrimSpace(yearPattern.ReplaceAllString(cleaned, " ")); withoutYear != "" {
		cleaned = withoutYear
	}
	return strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
