package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

// TMDBMovie is a movie search hit.
type TMDBMovie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
}

// TMDBShow is a TV series search hit.
type TMDBShow struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	FirstAirDate string `json:"first_air_date"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
}

// TMDBEpisode holds the details of one episode.
type TMDBEpisode struct {
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	StillPath     string `json:"still_path"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
}

// TMDBClient queries The Movie Database v3 API with an API key.
type TMDBClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
}

// NewTMDBClient creates a TMDB client. language is a TMDB locale such as "en-US".
func NewTMDBClient(httpClient *http.Client, baseURL, apiKey, language string) *TMDBClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TMDBClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   language,
	}
}

// SearchMovie searches movies by title, optionally narrowed to a release year (0 for any).
func (c *TMDBClient) SearchMovie(ctx context.Context, query string, year int) ([]TMDBMovie, error) {
	params := url.Values{"query": {query}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	var page struct {
		Results []TMDBMovie `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", params, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// SearchTV searches TV series by title, optionally narrowed to a first-air year (0 for any).
func (c *TMDBClient) SearchTV(ctx context.Context, query string, year int) ([]TMDBShow, error) {
	params := url.Values{"query": {query}}
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}
	var page struct {
		Results []TMDBShow `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", params, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// GetEpisode fetches one episode of a series. A missing episode is an *apperrors.ErrNotFound.
func (c *TMDBClient) GetEpisode(ctx context.Context, showID, season, episode int) (*TMDBEpisode, error) {
	path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", showID, season, episode)
	var ep TMDBEpisode
	if err := c.get(ctx, path, url.Values{}, &ep); err != nil {
		if errors.Is(err, &apperrors.ErrNotFound{}) {
			return nil, apperrors.NewNotFoundError("episode", fmt.Sprintf("S%02dE%02d of show %d", season, episode, showID))
		}
		return nil, err
	}
	return &ep, nil
}

func (c *TMDBClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return apperrors.NewConfigurationError("tmdb.api_key", "TMDB API key not configured")
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError("tmdb resource", path)
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.NewConfigurationError("tmdb.api_key", "rejected by TMDB")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tmdb %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb %s response: %w", path, err)
	}
	return nil
}
