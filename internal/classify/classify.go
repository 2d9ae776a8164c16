// Package classify selects the audio and subtitle streams worth
// carrying from a dub file into a merge. All functions are pure over
// probe output.
package classify

import (
	"strings"

	"dualmux/internal/mkv"
)

// Candidate is a stream plus the derived flags the selection rules
// decide on.
type Candidate struct {
	Stream  mkv.StreamDescriptor
	English bool
	Signs   bool
}

// signsMarkers identify a Signs & Songs subtitle by its title or
// handler tag.
var signsMarkers = []string{"sign", "song", "subtitle for hearing impaired"}

func isEnglish(s mkv.StreamDescriptor) bool {
	switch strings.ToLower(s.Language) {
	case "eng", "en":
		return true
	}
	return false
}

func isSigns(s mkv.StreamDescriptor) bool {
	title := strings.ToLower(s.Title)
	handler := strings.ToLower(s.Handler)
	for _, m := range signsMarkers {
		if strings.Contains(title, m) || strings.Contains(handler, m) {
			return true
		}
	}
	return false
}

func newCandidate(s mkv.StreamDescriptor) Candidate {
	return Candidate{Stream: s, English: isEnglish(s), Signs: isSigns(s)}
}

// SelectAudio picks the audio stream to extract. Only eng and und
// streams are considered, eng preferred, lowest index breaking ties.
func SelectAudio(streams []mkv.StreamDescriptor) (Candidate, bool) {
	bestEng := -1
	bestUnd := -1
	for i, s := range streams {
		if s.CodecType != "audio" {
			continue
		}
		switch strings.ToLower(s.Language) {
		case "eng":
			if bestEng == -1 || s.Index < streams[bestEng].Index {
				bestEng = i
			}
		case "und":
			if bestUnd == -1 || s.Index < streams[bestUnd].Index {
				bestUnd = i
			}
		}
	}
	switch {
	case bestEng != -1:
		return newCandidate(streams[bestEng]), true
	case bestUnd != -1:
		return newCandidate(streams[bestUnd]), true
	}
	return Candidate{}, false
}

// SelectSubtitles picks the subtitle streams to extract. In signs-only
// mode the lowest-index English-or-und signs track is returned. In
// full mode signs tracks win over plain English dialogue tracks, with
// a final fallback to the first und subtitle.
func SelectSubtitles(streams []mkv.StreamDescriptor, signsOnly bool) []Candidate {
	var signs, plain, und []Candidate
	for _, s := range streams {
		if s.CodecType != "subtitle" {
			continue
		}
		c := newCandidate(s)
		langUnd := strings.ToLower(s.Language) == "und"
		switch {
		case (c.English || langUnd) && c.Signs:
			signs = append(signs, c)
		case c.English:
			plain = append(plain, c)
		case langUnd:
			und = append(und, c)
		}
	}

	if signsOnly {
		if len(signs) == 0 {
			return nil
		}
		return []Candidate{lowestIndex(signs)}
	}

	switch {
	case len(signs) > 0:
		return []Candidate{lowestIndex(signs)}
	case len(plain) > 0:
		return []Candidate{lowestIndex(plain)}
	case len(und) > 0:
		return []Candidate{lowestIndex(und)}
	}
	return nil
}

func lowestIndex(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Stream.Index < best.Stream.Index {
			best = c
		}
	}
	return best
}
