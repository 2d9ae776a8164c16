package mkv

import (
	"fmt"
	"strings"
)

// StreamDescriptor is the tool-agnostic view of one container stream as
// reported by ffprobe. Index is ffprobe's absolute stream index, usable
// directly in an ffmpeg -map specifier.
type StreamDescriptor struct {
	Index     int
	CodecType string
	CodecName string
	Language  string
	Title     string
	Handler   string
}

// Track is mkvmerge's identify view of a track in an existing
// container. Matroska property edits address tracks as ID+1.
type Track struct {
	ID       int
	Type     string
	Name     string
	Language string
	Forced   bool
}

// ExtraTrack is one standalone stream file appended during a merge,
// with the name and language stamped onto its single track.
type ExtraTrack struct {
	Path     string
	Name     string
	Language string
}

// TrackProps are the track properties a property edit can set. Nil
// fields are left untouched.
type TrackProps struct {
	Name     *string
	Language *string
	Forced   *bool
}

// ToolError reports a failed external tool invocation, carrying the
// tool's stderr for diagnosis.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, s)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// mkaCodecs are the audio codecs extracted into a Matroska audio
// container; everything else goes into m4a.
var mkaCodecs = map[string]bool{
	"aac":    true,
	"ac3":    true,
	"eac3":   true,
	"dts":    true,
	"truehd": true,
}

// AudioExtractExt returns the container extension used when extracting
// an audio stream of the given codec.
func AudioExtractExt(codec string) string {
	if mkaCodecs[strings.ToLower(codec)] {
		return ".mka"
	}
	return ".m4a"
}
