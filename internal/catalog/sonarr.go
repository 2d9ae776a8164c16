package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Sonarr resolves titles against a Sonarr v3 instance. Series and
// episode listings are cached so a batch run hits the API once per
// series rather than once per file.
type Sonarr struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	cache   *cache.Cache
	limiter *rateLimiter
}

type sonarrSeries struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type sonarrEpisode struct {
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
}

func NewSonarr(baseURL, apiKey string) *Sonarr {
	return &Sonarr{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		cache:   cache.New(10*time.Minute, time.Minute),
		limiter: newRateLimiter(30, 10*time.Second),
	}
}

func (s *Sonarr) Resolve(ctx context.Context, show string, season, episode int) (*Result, error) {
	series, err := s.listSeries(ctx)
	if err != nil {
		return nil, err
	}

	// First series whose title contains the query, case-insensitively.
	query := strings.ToLower(show)
	var match *sonarrSeries
	for i := range series {
		if strings.Contains(strings.ToLower(series[i].Title), query) {
			match = &series[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("series %q: %w", show, ErrNotFound)
	}

	episodes, err := s.listEpisodes(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	for _, ep := range episodes {
		if ep.SeasonNumber == season && ep.EpisodeNumber == episode {
			return &Result{SeriesTitle: match.Title, EpisodeTitle: ep.Title}, nil
		}
	}
	return nil, fmt.Errorf("%s S%02dE%02d: %w", match.Title, season, episode, ErrNotFound)
}

func (s *Sonarr) listSeries(ctx context.Context) ([]sonarrSeries, error) {
	const key = "series"
	if cached, found := s.cache.Get(key); found {
		return cached.([]sonarrSeries), nil
	}
	var series []sonarrSeries
	if err := s.getJSON(ctx, "/api/v3/series", &series); err != nil {
		return nil, err
	}
	s.cache.Set(key, series, cache.DefaultExpiration)
	return series, nil
}

func (s *Sonarr) listEpisodes(ctx context.Context, seriesID int) ([]sonarrEpisode, error) {
	key := "episodes:" + strconv.Itoa(seriesID)
	if cached, found := s.cache.Get(key); found {
		return cached.([]sonarrEpisode), nil
	}
	var episodes []sonarrEpisode
	if err := s.getJSON(ctx, "/api/v3/episode?seriesId="+strconv.Itoa(seriesID), &episodes); err != nil {
		return nil, err
	}
	s.cache.Set(key, episodes, cache.DefaultExpiration)
	return episodes, nil
}

func (s *Sonarr) getJSON(ctx context.Context, path string, out any) error {
	s.limiter.wait()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sonarr %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sonarr %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sonarr %s: decode: %w", path, err)
	}
	return nil
}
