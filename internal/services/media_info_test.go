package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/client"
)

// fakeTMDB is a hand-written TMDBSearcher.
type fakeTMDB struct {
	searchMovie func(query string, year int) ([]client.TMDBMovie, error)
	searchTV    func(query string, year int) ([]client.TMDBShow, error)
	getEpisode  func(showID, season, episode int) (*client.TMDBEpisode, error)

	movieCalls atomic.Int32
	tvCalls    atomic.Int32
}

func (f *fakeTMDB) SearchMovie(ctx context.Context, query string, year int) ([]client.TMDBMovie, error) {
	f.movieCalls.Add(1)
	return f.searchMovie(query, year)
}

func (f *fakeTMDB) SearchTV(ctx context.Context, query string, year int) ([]client.TMDBShow, error) {
	f.tvCalls.Add(1)
	return f.searchTV(query, year)
}

func (f *fakeTMDB) GetEpisode(ctx context.Context, showID, season, episode int) (*client.TMDBEpisode, error) {
	return f.getEpisode(showID, season, episode)
}

func TestParseFilename(t *testing.T) {
	t.Parallel()
	svc := NewMediaInfoService(nil, 0, 0)
	tests := []struct {
		filename      string
		titleContains string
		year          int
		season        int
		episode       int
	}{
		{"The.Office.S02E03.720p.WEB-DL.mkv", "office", 0, 2, 3},
		{"Inception.2010.1080p.BluRay.x264.mkv", "inception", 2010, 0, 0},
		{"/uploads/Breaking Bad - 3x07 - One Minute.srt", "breaking bad", 0, 3, 7},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()
			info := svc.ParseFilename(tt.filename)
			if !strings.Contains(strings.ToLower(info.Title), tt.titleContains) {
				t.Errorf("title = %q, want it to contain %q", info.Title, tt.titleContains)
			}
			if strings.Contains(info.Title, "1080p") || strings.Contains(info.Title, "720p") {
				t.Errorf("title kept release tags: %q", info.Title)
			}
			if info.Season != tt.season || info.Episode != tt.episode {
				t.Errorf("season/episode = %d/%d, want %d/%d", info.Season, info.Episode, tt.season, tt.episode)
			}
			if tt.year != 0 && info.Year != tt.year {
				t.Errorf("year = %d, want %d", info.Year, tt.year)
			}
		})
	}
}

func TestCleanTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"The.Matrix.(1999).1080p.BluRay.x264", "The Matrix"},
		{"Some_Show_-_", "Some Show"},
		{"Dark.S01E01.WEB-DL", "Dark"},
		{"2012", "2012"},
		{"Season 2 Episode 4 Show", "Show"},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.in); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup_MovieRetriesWithoutYear(t *testing.T) {
	t.Parallel()
	var years []int
	var mu sync.Mutex
	tmdb := &fakeTMDB{searchMovie: func(query string, year int) ([]client.TMDBMovie, error) {
		mu.Lock()
		years = append(years, year)
		mu.Unlock()
		if year != 0 {
			return nil, nil
		}
		return []client.TMDBMovie{{ID: 1, Title: "Inception", ReleaseDate: "2010-07-16", Overview: "Dreams", PosterPath: "/p.jpg"}}, nil
	}}
	svc := NewMediaInfoService(tmdb, 10, time.Minute)

	info, err := svc.Lookup(context.Background(), "Inception.2010.1080p.mkv", "")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.Title != "Inception" || info.Year != "2010" || info.PosterPath != "/p.jpg" {
		t.Errorf("info = %+v", info)
	}
	if len(years) != 2 || years[0] != 2010 || years[1] != 0 {
		t.Errorf("searched years %v, want [2010 0]", years)
	}

	// Memoized.
	if _, err := svc.Lookup(context.Background(), "Inception.2010.1080p.mkv", ""); err != nil {
		t.Fatal(err)
	}
	if tmdb.movieCalls.Load() != 2 {
		t.Errorf("movie searches = %d, want cached second lookup", tmdb.movieCalls.Load())
	}
}

func TestLookup_Episode(t *testing.T) {
	t.Parallel()
	tmdb := &fakeTMDB{
		searchTV: func(query string, year int) ([]client.TMDBShow, error) {
			if query != "Custom Title" {
				t.Errorf("query = %q, want the manual series title", query)
			}
			return []client.TMDBShow{{ID: 42, Name: "The Office", FirstAirDate: "2005-03-24", PosterPath: "/show.jpg"}}, nil
		},
		getEpisode: func(showID, season, episode int) (*client.TMDBEpisode, error) {
			if showID != 42 || season != 2 || episode != 3 {
				t.Errorf("GetEpisode(%d, %d, %d)", showID, season, episode)
			}
			return &client.TMDBEpisode{Name: "Office Olympics", Overview: "Games"}, nil
		},
	}
	svc := NewMediaInfoService(tmdb, 10, time.Minute)

	info, err := svc.Lookup(context.Background(), "the.office.s02e03.mkv", "Custom Title")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.Title != "The Office" || info.Year != "2005" || info.EpisodeTitle != "Office Olympics" || info.PosterPath != "/show.jpg" {
		t.Errorf("info = %+v", info)
	}
}

func TestLookup_Errors(t *testing.T) {
	t.Parallel()
	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		_, err := NewMediaInfoService(nil, 0, 0).Lookup(context.Background(), "x.mkv", "")
		if !errors.Is(err, &apperrors.ConfigurationError{}) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	})
	t.Run("series without episode marker", func(t *testing.T) {
		t.Parallel()
		svc := NewMediaInfoService(&fakeTMDB{}, 0, 0)
		_, err := svc.Lookup(context.Background(), "Show.Name.mkv", "Show Name")
		if !errors.Is(err, &apperrors.ErrNotFound{}) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
	t.Run("no movie", func(t *testing.T) {
		t.Parallel()
		svc := NewMediaInfoService(&fakeTMDB{searchMovie: func(string, int) ([]client.TMDBMovie, error) { return nil, nil }}, 0, 0)
		_, err := svc.Lookup(context.Background(), "Unknown.Film.mkv", "")
		if !errors.Is(err, &apperrors.ErrNotFound{}) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLookup_CoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	tmdb := &fakeTMDB{searchMovie: func(string, int) ([]client.TMDBMovie, error) {
		<-release
		return []client.TMDBMovie{{Title: "Heat"}}, nil
	}}
	svc := NewMediaInfoService(tmdb, 10, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if info, err := svc.Lookup(context.Background(), "Heat.mkv", ""); err != nil || info.Title != "Heat" {
				t.Errorf("Lookup() = %+v, %v", info, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := tmdb.movieCalls.Load(); n != 1 {
		t.Errorf("movie searches = %d, want 1", n)
	}
}
