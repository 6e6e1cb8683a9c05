package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

func newTMDBTestServer(t *testing.T, handler http.HandlerFunc) *TMDBClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTMDBClient(server.Client(), server.URL+"/3/", "tmdb-key", "de-DE")
}

func TestTMDBClient_SearchMovie(t *testing.T) {
	t.Parallel()
	c := newTMDBTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/search/movie" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "tmdb-key" || q.Get("language") != "de-DE" || q.Get("query") != "Blade Runner" || q.Get("year") != "1982" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":78,"title":"Blade Runner","release_date":"1982-06-25","overview":"Replicants.","poster_path":"/br.jpg"}]}`))
	})

	movies, err := c.SearchMovie(context.Background(), "Blade Runner", 1982)
	if err != nil {
		t.Fatalf("SearchMovie failed: %v", err)
	}
	if len(movies) != 1 || movies[0].ID != 78 || movies[0].ReleaseDate != "1982-06-25" {
		t.Errorf("movies = %+v", movies)
	}
}

func TestTMDBClient_SearchTVWithoutYear(t *testing.T) {
	t.Parallel()
	c := newTMDBTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/search/tv" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Has("first_air_date_year") {
			t.Error("year must not be sent when zero")
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17"}]}`))
	})

	shows, err := c.SearchTV(context.Background(), "Game of Thrones", 0)
	if err != nil {
		t.Fatalf("SearchTV failed: %v", err)
	}
	if len(shows) != 1 || shows[0].Name != "Game of Thrones" {
		t.Errorf("shows = %+v", shows)
	}
}

func TestTMDBClient_GetEpisode(t *testing.T) {
	t.Parallel()
	c := newTMDBTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/tv/1399/season/1/episode/2":
			_, _ = w.Write([]byte(`{"name":"The Kingsroad","overview":"Travel.","still_path":"/still.jpg","season_number":1,"episode_number":2}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_message":"not found"}`))
		}
	})

	ep, err := c.GetEpisode(context.Background(), 1399, 1, 2)
	if err != nil {
		t.Fatalf("GetEpisode failed: %v", err)
	}
	if ep.Name != "The Kingsroad" || ep.StillPath != "/still.jpg" {
		t.Errorf("episode = %+v", ep)
	}

	_, err = c.GetEpisode(context.Background(), 1399, 9, 9)
	if !errors.Is(err, &apperrors.ErrNotFound{}) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTMDBClient_Errors(t *testing.T) {
	t.Parallel()

	noKey := NewTMDBClient(nil, "http://unused.invalid", "", "en-US")
	if _, err := noKey.SearchMovie(context.Background(), "x", 0); !errors.Is(err, &apperrors.ConfigurationError{}) {
		t.Errorf("missing key: err = %v", err)
	}

	rejected := newTMDBTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := rejected.SearchTV(context.Background(), "x", 0); !errors.Is(err, &apperrors.ConfigurationError{}) {
		t.Errorf("401: err = %v", err)
	}

	broken := newTMDBTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if _, err := broken.SearchMovie(context.Background(), "x", 0); err == nil {
		t.Error("503: expected error")
	}
}
