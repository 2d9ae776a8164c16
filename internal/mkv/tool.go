package mkv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"gopkg.in/vansante/go-ffprobe.v2"
)

// Tool abstracts the external media tools (ffprobe, ffmpeg, mkvmerge,
// mkvpropedit) behind one seam so the pipeline and its tests never
// shell out directly.
type Tool interface {
	// Probe reports the container's streams.
	Probe(ctx context.Context, path string) ([]StreamDescriptor, error)
	// ExtractStream copies stream index out of path into dest without
	// re-encoding.
	ExtractStream(ctx context.Context, path string, index int, dest string) error
	// Merge remuxes base plus the extra tracks into dest.
	Merge(ctx context.Context, base string, extras []ExtraTrack, dest string) error
	// EditTrackProperties applies props to one track in place. trackID
	// uses mkvpropedit's 1-based addressing.
	EditTrackProperties(ctx context.Context, path string, trackID int, props TrackProps) error
	// ReadTracks reports the container's tracks via mkvmerge identify.
	ReadTracks(ctx context.Context, path string) ([]Track, error)
}

// probeFunc defines the function signature used to execute ffprobe.
type probeFunc func(ctx context.Context, path string, extraOpts ...string) (*ffprobe.ProbeData, error)

// runner executes one external command and returns its captured
// stdout and stderr.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

func execRunner(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.String(), errBuf.String(), err
}

// CLI is the production Tool backed by the command-line media tools.
type CLI struct {
	probe probeFunc
	run   runner
}

// NewCLI creates a Tool that invokes the real external binaries.
func NewCLI() *CLI {
	return &CLI{
		probe: ffprobe.ProbeURL,
		run:   execRunner,
	}
}

func (c *CLI) Probe(ctx context.Context, path string) ([]StreamDescriptor, error) {
	data, err := c.probe(ctx, path)
	if err != nil {
		return nil, &ToolError{Tool: "ffprobe", Err: err}
	}
	streams := make([]StreamDescriptor, 0, len(data.Streams))
	for _, s := range data.Streams {
		if s == nil {
			continue
		}
		streams = append(streams, StreamDescriptor{
			Index:     s.Index,
			CodecType: s.CodecType,
			CodecName: s.CodecName,
			Language:  langOrUnd(tagString(s.TagList, "language")),
			Title:     tagString(s.TagList, "title"),
			Handler:   tagString(s.TagList, "handler_name"),
		})
	}
	return streams, nil
}

func tagString(tags ffprobe.Tags, key string) string {
	if v, ok := tags[key].(string); ok {
		return v
	}
	return ""
}

// langOrUnd maps a missing language tag to the container convention
// "und". Untagged streams are common in mp4 sources and must stay
// selectable.
func langOrUnd(lang string) string {
	if lang == "" {
		return "und"
	}
	return lang
}

func (c *CLI) ExtractStream(ctx context.Context, path string, index int, dest string) error {
	args := []string{
		"-y", "-loglevel", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", index),
		"-c", "copy",
		dest,
	}
	if _, stderr, err := c.run(ctx, "ffmpeg", args...); err != nil {
		return &ToolError{Tool: "ffmpeg", Stderr: stderr, Err: err}
	}
	return nil
}

func (c *CLI) Merge(ctx context.Context, base string, extras []ExtraTrack, dest string) error {
	args := []string{"-o", dest, base}
	for _, extra := range extras {
		if extra.Name != "" {
			args = append(args, "--track-name", "0:"+extra.Name)
		}
		if extra.Language != "" {
			args = append(args, "--language", "0:"+extra.Language)
		}
		args = append(args, extra.Path)
	}
	if _, stderr, err := c.run(ctx, "mkvmerge", args...); err != nil {
		return &ToolError{Tool: "mkvmerge", Stderr: stderr, Err: err}
	}
	return nil
}

func (c *CLI) EditTrackProperties(ctx context.Context, path string, trackID int, props TrackProps) error {
	args := []string{path, "--edit", "track:" + strconv.Itoa(trackID)}
	if props.Name != nil {
		args = append(args, "--set", "name="+*props.Name)
	}
	if props.Language != nil {
		args = append(args, "--set", "language="+*props.Language)
	}
	if props.Forced != nil {
		flag := "0"
		if *props.Forced {
			flag = "1"
		}
		args = append(args, "--set", "flag-forced="+flag)
	}
	if _, stderr, err := c.run(ctx, "mkvpropedit", args...); err != nil {
		return &ToolError{Tool: "mkvpropedit", Stderr: stderr, Err: err}
	}
	return nil
}

// identifyOutput mirrors the subset of mkvmerge's JSON identify format
// the track normalizer consumes.
type identifyOutput struct {
	Tracks []struct {
		ID         int    `json:"id"`
		Type       string `json:"type"`
		Properties struct {
			TrackName   string `json:"track_name"`
			Language    string `json:"language"`
			ForcedTrack bool   `json:"forced_track"`
		} `json:"properties"`
	} `json:"tracks"`
}

func (c *CLI) ReadTracks(ctx context.Context, path string) ([]Track, error) {
	stdout, stderr, err := c.run(ctx, "mkvmerge", "-J", path)
	if err != nil {
		return nil, &ToolError{Tool: "mkvmerge", Stderr: stderr, Err: err}
	}
	var ident identifyOutput
	if err := json.Unmarshal([]byte(stdout), &ident); err != nil {
		return nil, &ToolError{Tool: "mkvmerge", Err: fmt.Errorf("parse identify output: %w", err)}
	}
	tracks := make([]Track, 0, len(ident.Tracks))
	for _, t := range ident.Tracks {
		tracks = append(tracks, Track{
			ID:       t.ID,
			Type:     t.Type,
			Name:     t.Properties.TrackName,
			Language: langOrUnd(t.Properties.Language),
			Forced:   t.Properties.ForcedTrack,
		})
	}
	return tracks, nil
}
