package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/ryanbradynd05/go-tmdb"
)

// TMDBClient is the subset of *tmdb.TMDb the resolver calls, split out
// so tests can substitute a fake.
type TMDBClient interface {
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetTvEpisodeInfo(showID, seasonNum, episodeNum int, options map[string]string) (*tmdb.TvEpisode, error)
}

// TMDB resolves titles against The Movie Database. It is the fallback
// backend for libraries not managed by Sonarr.
type TMDB struct {
	client   TMDBClient
	language string
	cache    *cache.Cache
	limiter  *rateLimiter
}

func NewTMDB(apiKey, language string) *TMDB {
	if language == "" {
		language = "en-US"
	}
	return &TMDB{
		client:   tmdb.Init(tmdb.Config{APIKey: apiKey}),
		language: language,
		cache:    cache.New(24*time.Hour, 10*time.Minute),
		limiter:  newRateLimiter(38, 10*time.Second),
	}
}

func (t *TMDB) Resolve(ctx context.Context, show string, season, episode int) (*Result, error) {
	key := fmt.Sprintf("%s:%d:%d:%s", strings.ToLower(show), season, episode, t.language)
	if cached, found := t.cache.Get(key); found {
		return cached.(*Result), nil
	}

	options := map[string]string{"language": t.language}

	t.limiter.wait()
	results, err := t.client.SearchTv(show, options)
	if err != nil {
		return nil, fmt.Errorf("tmdb search %q: %w", show, err)
	}
	if results == nil || len(results.Results) == 0 {
		return nil, fmt.Errorf("series %q: %w", show, ErrNotFound)
	}
	first := results.Results[0]

	t.limiter.wait()
	ep, err := t.client.GetTvEpisodeInfo(first.ID, season, episode, options)
	if err != nil {
		return nil, fmt.Errorf("tmdb episode %s S%02dE%02d: %w", first.Name, season, episode, err)
	}
	if ep == nil {
		return nil, fmt.Errorf("%s S%02dE%02d: %w", first.Name, season, episode, ErrNotFound)
	}

	res := &Result{SeriesTitle: first.Name, EpisodeTitle: ep.Name}
	t.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}
