package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Dub/sub counterpart matching. A dub file and its sub counterpart are
// correlated solely through the SxxExx episode code embedded in both
// names; no verification is done that the two files belong to the same
// series.

var (
	// ErrNoEpisodeCode means the dub file name carries no SxxExx token.
	ErrNoEpisodeCode = errors.New("no episode code in filename")

	// ErrNoMatch means no directory entry contained the episode code.
	ErrNoMatch = errors.New("no matching sub file")
)

// MatchSub finds the sub-directory entry matching dubPath's episode
// code. Entries are sorted before scanning so the "first match wins"
// policy is deterministic regardless of filesystem listing order.
func MatchSub(dubPath string, subEntries []string) (string, error) {
	code := EpisodeCode(filepath.Base(dubPath))
	if code == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(dubPath), ErrNoEpisodeCode)
	}

	sorted := make([]string, len(subEntries))
	copy(sorted, subEntries)
	sort.Strings(sorted)

	for _, entry := range sorted {
		if strings.Contains(strings.ToUpper(entry), code) {
			return entry, nil
		}
	}
	return "", fmt.Errorf("episode %s: %w", code, ErrNoMatch)
}
