// Package catalog resolves parsed episode identities to canonical
// series and episode titles via external catalog APIs. Resolution is
// best-effort throughout: the pipeline treats any failure as a lookup
// miss and falls back to the parsed identity.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

// Result is the catalog's canonical naming for one episode.
type Result struct {
	SeriesTitle  string
	EpisodeTitle string
}

// ErrNotFound means the catalog had no series or episode matching the
// query.
var ErrNotFound = errors.New("no catalog match")

// Resolver looks up canonical titles for a (show, season, episode)
// triple.
type Resolver interface {
	Resolve(ctx context.Context, show string, season, episode int) (*Result, error)
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, show string, season, episode int) (*Result, error) {
	err := error(ErrNotFound)
	for _, r := range c {
		res, rerr := r.Resolve(ctx, show, season, episode)
		if rerr == nil {
			return res, nil
		}
		err = rerr
	}
	return nil, err
}

type memoEntry struct {
	res *Result
	err error
}

// Memoized wraps a Resolver with a per-run concurrent memo so the
// worker pool resolves each distinct identity once. Failures are
// memoized too; a run never retries a missed lookup.
type Memoized struct {
	inner Resolver
	memo  *csmap.CsMap[string, memoEntry]
}

func NewMemoized(inner Resolver) *Memoized {
	return &Memoized{
		inner: inner,
		memo:  csmap.Create[string, memoEntry](),
	}
}

func (m *Memoized) Resolve(ctx context.Context, show string, season, episode int) (*Result, error) {
	key := fmt.Sprintf("%s:%d:%d", strings.ToLower(show), season, episode)
	if e, ok := m.memo.Load(key); ok {
		return e.res, e.err
	}
	res, err := m.inner.Resolve(ctx, show, season, episode)
	m.memo.Store(key, memoEntry{res: res, err: err})
	return res, err
}
