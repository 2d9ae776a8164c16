package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dualmux/internal/catalog"
	"dualmux/internal/classify"
	"dualmux/internal/log"
	"dualmux/internal/media"
	"dualmux/internal/mkv"
	"dualmux/internal/namefmt"
	"dualmux/internal/tracks"
)

// Per-file operations. The orchestrator drives these over whole
// directories; the standalone subcommands call them directly for
// single-file runs.

// RenameFile normalizes one video file name to the
// Show_Name_SxxExx_CODEC.ext scheme and returns the resulting path.
// An already normalized name is returned unchanged. The codec token
// comes from probing the file; a failed probe degrades to UNKNOWN
// rather than failing the rename.
func RenameFile(ctx context.Context, tool mkv.Tool, path string, preview bool) (string, error) {
	base := filepath.Base(path)
	if _, _, _, ok := media.ParseNormalized(base); ok {
		return path, nil
	}

	id, _ := media.Parse(base)

	codec := ""
	if streams, err := tool.Probe(ctx, path); err == nil {
		for _, s := range streams {
			if s.CodecType == "video" {
				codec = s.CodecName
				break
			}
		}
	}

	name := namefmt.NormalizedName(id.Show, id.Season, id.Episode, namefmt.ReadableCodec(codec), filepath.Ext(base))
	target := filepath.Join(filepath.Dir(path), name)
	if preview {
		return target, nil
	}

	target = namefmt.ResolveConflict(target, path)
	if target == path {
		return path, nil
	}
	renameErr := os.Rename(path, target)
	log.LogRename(path, target, renameErr == nil, renameErr)
	if renameErr != nil {
		return "", &IOError{Op: "rename", Path: path, Err: renameErr}
	}
	return target, nil
}

// MergePair extracts the selected audio and Signs & Songs subtitle
// streams from dubPath into a per-item subdirectory of extractDir,
// then remuxes them into subPath as <sub stem>_Dual.mkv under
// outputDir. In preview mode the destination is computed and nothing
// is extracted or written.
func MergePair(ctx context.Context, tool mkv.Tool, dubPath, subPath, extractDir, outputDir string, preview bool) (string, error) {
	streams, err := tool.Probe(ctx, dubPath)
	if err != nil {
		return "", err
	}

	audio, audioOK := classify.SelectAudio(streams)
	subs := classify.SelectSubtitles(streams, true)
	if !audioOK && len(subs) == 0 {
		return "", fmt.Errorf("%s: no extractable streams", filepath.Base(dubPath))
	}

	dubStem := media.TrimVideoExt(filepath.Base(dubPath))
	subStem := media.TrimVideoExt(filepath.Base(subPath))
	dest := filepath.Join(outputDir, subStem+"_Dual.mkv")
	if preview {
		return dest, nil
	}

	itemDir := filepath.Join(extractDir, dubStem)
	if err := os.MkdirAll(itemDir, 0755); err != nil {
		return "", &IOError{Op: "mkdir", Path: itemDir, Err: err}
	}
	log.LogCreateDir(itemDir, true, nil)

	var extras []mkv.ExtraTrack
	if audioOK {
		audioDest := filepath.Join(itemDir, dubStem+"_audio_eng"+mkv.AudioExtractExt(audio.Stream.CodecName))
		err := tool.ExtractStream(ctx, dubPath, audio.Stream.Index, audioDest)
		log.LogExtract(dubPath, audioDest, err == nil, err)
		if err != nil {
			return "", err
		}
		extras = append(extras, mkv.ExtraTrack{Path: audioDest})
	}
	for _, c := range subs {
		subDest := filepath.Join(itemDir, dubStem+"_subs_signs."+c.Stream.CodecName)
		err := tool.ExtractStream(ctx, dubPath, c.Stream.Index, subDest)
		log.LogExtract(dubPath, subDest, err == nil, err)
		if err != nil {
			return "", err
		}
		extras = append(extras, mkv.ExtraTrack{
			Path:     subDest,
			Name:     "Track 2 - Signs & Songs",
			Language: "eng",
		})
	}

	mergeErr := tool.Merge(ctx, subPath, extras, dest)
	log.LogMerge(subPath, dest, mergeErr == nil, mergeErr)
	if mergeErr != nil {
		return "", mergeErr
	}
	return dest, nil
}

// FixFile normalizes the track metadata of one container in place. The
// planned edits are returned for preview display; in preview mode (or
// when the file is already normalized) nothing is applied.
func FixFile(ctx context.Context, tool mkv.Tool, path string, preview bool) ([]tracks.Edit, error) {
	trks, err := tool.ReadTracks(ctx, path)
	if err != nil {
		return nil, err
	}
	plan := tracks.PlanEdits(trks)
	if preview || len(plan) == 0 {
		return plan, nil
	}
	_, applyErr := tracks.Apply(ctx, tool, path, plan)
	log.LogPropedit(path, applyErr == nil, applyErr)
	return plan, applyErr
}

// CatalogRenameFile renames one file to the given naming template,
// enriching the parsed identity with catalog titles when the resolver
// finds the episode. A lookup miss falls back to the parsed identity
// with no episode title; missed reports it so callers can warn per
// item. It returns the resulting path.
func CatalogRenameFile(ctx context.Context, resolver catalog.Resolver, path, template string, preview bool) (target string, missed bool, err error) {
	base := filepath.Base(path)
	id, codec, ext, ok := media.ParseNormalized(base)
	if !ok {
		id, _ = media.Parse(base)
		codec = namefmt.ReadableCodec("")
		ext = filepath.Ext(base)
	}
	// Merged outputs carry a _Dual marker after the codec token.
	codec = strings.TrimSuffix(codec, "_Dual")

	in := namefmt.Input{
		SeriesTitle: id.Show,
		Season:      id.Season,
		Episode:     id.Episode,
		Codec:       codec,
		Ext:         ext,
	}
	if resolver != nil {
		if res, resErr := resolver.Resolve(ctx, id.Show, id.Season, id.Episode); resErr == nil && res != nil {
			in.SeriesTitle = res.SeriesTitle
			in.EpisodeTitle = res.EpisodeTitle
		} else {
			missed = true
		}
	}

	formatted := namefmt.Format(template, in)
	dir := filepath.Dir(path)
	target, err = namefmt.Place(dir, formatted, preview)
	if err != nil {
		return "", missed, &IOError{Op: "mkdir", Path: formatted, Err: err}
	}
	if preview {
		return target, missed, nil
	}

	target = namefmt.ResolveConflict(target, path)
	if target == path {
		return path, missed, nil
	}
	renameErr := os.Rename(path, target)
	log.LogRename(path, target, renameErr == nil, renameErr)
	if renameErr != nil {
		return "", missed, &IOError{Op: "rename", Path: path, Err: renameErr}
	}
	return target, missed, nil
}
