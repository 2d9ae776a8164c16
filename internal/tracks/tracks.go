// Package tracks computes and applies the canonical track-metadata
// scheme for merged episode files.
package tracks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dualmux/internal/mkv"
)

// Edit is one track's pending property change. TrackID is the 0-based
// ID reported by the container tooling; Apply converts to the 1-based
// addressing property edits use.
type Edit struct {
	TrackID int
	Props   mkv.TrackProps
}

// Result is the outcome of one applied edit.
type Result struct {
	TrackID int
	Err     error
}

// target is the rule table's output for one track. An empty language
// leaves the current value alone; a nil forced means the attribute is
// not governed for this track type.
type target struct {
	name     string
	language string
	forced   *bool
}

// signsNameMarkers flag a subtitle track as Signs & Songs from its
// current name. The literal "2 -" entry matches the merge stage's own
// "Track 2 - Signs & Songs" output.
var signsNameMarkers = []string{"sign", "song", "subtitle for hearing impaired", "2 -"}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isEnglishTrack(t mkv.Track) bool {
	return strings.ToLower(t.Language) == "eng" || strings.Contains(strings.ToLower(t.Name), "english")
}

func isJapaneseTrack(t mkv.Track) bool {
	return strings.ToLower(t.Language) == "jpn" || strings.Contains(strings.ToLower(t.Name), "japan")
}

func boolPtr(b bool) *bool { return &b }

// ruleFor is the exhaustive naming rule table. Every track type has a
// defined fallback arm.
func ruleFor(t mkv.Track) (target, bool) {
	kind := strings.ToLower(t.Type)
	switch {
	case strings.HasPrefix(kind, "video"):
		return target{name: "Main Video", language: "und"}, true

	case strings.HasPrefix(kind, "audio"):
		switch {
		case isJapaneseTrack(t):
			return target{name: "Japanese Audio", language: "jpn"}, true
		case isEnglishTrack(t):
			return target{name: "English Audio", language: "eng"}, true
		default:
			return target{name: "Audio"}, true
		}

	case strings.HasPrefix(kind, "subtitle"):
		signs := containsAny(t.Name, signsNameMarkers)
		switch {
		case isEnglishTrack(t) && signs:
			return target{name: "Signs & Songs", language: "eng", forced: boolPtr(true)}, true
		case isEnglishTrack(t):
			return target{name: "English", language: "eng", forced: boolPtr(false)}, true
		case isJapaneseTrack(t):
			return target{name: "Japanese", language: "jpn", forced: boolPtr(false)}, true
		default:
			return target{name: "Subtitles", forced: boolPtr(false)}, true
		}
	}
	return target{}, false
}

// PlanEdits diffs the rule table against the tracks' current values.
// Only attributes the table governs are compared, and only differing
// attributes enter the plan, so a normalized file plans nothing.
func PlanEdits(tracks []mkv.Track) []Edit {
	var plan []Edit
	for _, t := range tracks {
		want, ok := ruleFor(t)
		if !ok {
			continue
		}
		var props mkv.TrackProps
		changed := false
		if want.name != t.Name {
			name := want.name
			props.Name = &name
			changed = true
		}
		if want.language != "" && want.language != t.Language {
			lang := want.language
			props.Language = &lang
			changed = true
		}
		if want.forced != nil && *want.forced != t.Forced {
			props.Forced = want.forced
			changed = true
		}
		if changed {
			plan = append(plan, Edit{TrackID: t.ID, Props: props})
		}
	}
	return plan
}

// Apply issues one property edit per planned track, ascending by track
// ID. The container is rewritten in place on every edit, so edits run
// strictly sequentially. A failed edit does not stop later edits; the
// returned error is nil only when every edit succeeded.
func Apply(ctx context.Context, tool mkv.Tool, path string, plan []Edit) ([]Result, error) {
	ordered := make([]Edit, len(plan))
	copy(ordered, plan)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TrackID < ordered[j].TrackID })

	results := make([]Result, 0, len(ordered))
	var failed []error
	for _, edit := range ordered {
		err := tool.EditTrackProperties(ctx, path, edit.TrackID+1, edit.Props)
		results = append(results, Result{TrackID: edit.TrackID, Err: err})
		if err != nil {
			failed = append(failed, fmt.Errorf("track %d: %w", edit.TrackID, err))
		}
	}
	return results, errors.Join(failed...)
}
