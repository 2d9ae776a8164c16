package pipeline

import (
	"errors"
	"fmt"

	"dualmux/internal/catalog"
	"dualmux/internal/media"
	"dualmux/internal/mkv"
)

// Kind classifies a stage failure so the orchestrator and the UI can
// apply the right policy. A parse that fell through to the default
// strategy is a defined outcome and never produces an error at all.
type Kind int

const (
	KindUnknown Kind = iota
	// KindMatch means a dub file could not be paired with a sub file.
	KindMatch
	// KindLookup means the catalog had no entry for an identity.
	KindLookup
	// KindTool means an external media tool invocation failed.
	KindTool
	// KindIO means a filesystem operation failed.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindLookup:
		return "lookup"
	case KindTool:
		return "tool"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// IOError reports a failed filesystem operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var toolErr *mkv.ToolError
	var ioErr *IOError
	switch {
	case errors.Is(err, media.ErrNoEpisodeCode), errors.Is(err, media.ErrNoMatch):
		return KindMatch
	case errors.Is(err, catalog.ErrNotFound):
		return KindLookup
	case errors.As(err, &toolErr):
		return KindTool
	case errors.As(err, &ioErr):
		return KindIO
	}
	return KindUnknown
}
