// Package namefmt renders episode identities into media manager
// friendly filenames.
package namefmt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Builtin naming templates. Dot-style templates ({Series.Title})
// dot-join substituted titles; the folder template places the file in
// a per-season subdirectory.
var builtinTemplates = map[string]string{
	"standard":              "{Series Title} - S{season:02d}E{episode:02d}",
	"standard_episode":      "{Series Title} - S{season:02d}E{episode:02d} - {Episode Title}",
	"scene":                 "{Series.Title}.S{season:02d}E{episode:02d}",
	"scene_episode":         "{Series.Title}.S{season:02d}E{episode:02d}.{Episode.Title}",
	"folder_season_episode": "{Series Title}/Season {season}/S{season:02d}E{episode:02d} - {Episode Title}",
}

// TemplateKeys lists the builtin template names for CLI help output.
func TemplateKeys() []string {
	return []string{"standard", "standard_episode", "scene", "scene_episode", "folder_season_episode"}
}

// Lookup resolves a template selector. "custom" selects the custom
// template; an unrecognized key is treated as a literal template.
func Lookup(key, custom string) (string, error) {
	if key == "custom" {
		if custom == "" {
			return "", fmt.Errorf("custom template selected but none configured")
		}
		return custom, nil
	}
	if tmpl, ok := builtinTemplates[key]; ok {
		return tmpl, nil
	}
	if key == "" {
		return builtinTemplates["standard"], nil
	}
	return key, nil
}

// Input carries everything a template can substitute.
type Input struct {
	SeriesTitle  string
	EpisodeTitle string
	Season       int
	Episode      int
	Codec        string
	Ext          string
}

var episodeTitleParts = []string{
	" - {Episode Title}",
	".{Episode.Title}",
	"{Episode Title}",
	"{Episode.Title}",
}

// invalidNameChars are stripped from every rendered path segment.
const invalidNameChars = `<>:"/\|?*`

func stripInvalid(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if strings.ContainsRune(invalidNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func pad2(n int) string {
	return fmt.Sprintf("%02d", n)
}

// Format renders in through the template. The result is a
// slash-separated relative path whose segments have invalid filename
// characters stripped, with the extension appended. When the episode
// title is unknown, the title clause drops out of the template rather
// than rendering a placeholder.
func Format(template string, in Input) string {
	tmpl := template
	if in.EpisodeTitle == "" {
		for _, part := range episodeTitleParts {
			tmpl = strings.ReplaceAll(tmpl, part, "")
		}
	}

	// Values are sanitized before substitution so a slash inside a
	// title cannot turn into a path separator; only slashes written in
	// the template itself split segments.
	series := stripInvalid(in.SeriesTitle)
	episodeTitle := stripInvalid(in.EpisodeTitle)
	if strings.Contains(tmpl, "{Series.Title}") || strings.Contains(tmpl, "{Episode.Title}") {
		series = strings.ReplaceAll(series, " ", ".")
		episodeTitle = strings.ReplaceAll(episodeTitle, " ", ".")
	}

	out := strings.NewReplacer(
		"{Series Title}", series,
		"{Series.Title}", series,
		"{Episode Title}", episodeTitle,
		"{Episode.Title}", episodeTitle,
		"{season:02d}", pad2(in.Season),
		"{episode:02d}", pad2(in.Episode),
		"{season}", strconv.Itoa(in.Season),
		"{episode}", strconv.Itoa(in.Episode),
		"{codec}", in.Codec,
	).Replace(tmpl)

	segments := strings.Split(out, "/")
	kept := segments[:0]
	for _, s := range segments {
		if cleaned := stripInvalid(s); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	out = strings.Join(kept, "/")

	if in.Ext != "" && !strings.HasSuffix(out, in.Ext) {
		out += in.Ext
	}
	return out
}

// Place joins a formatted name onto dir and creates any template
// subdirectories (such as "Season N"). In preview mode the path is
// computed but nothing is created.
func Place(dir, formatted string, preview bool) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(formatted))
	if preview {
		return target, nil
	}
	if parent := filepath.Dir(target); parent != filepath.Clean(dir) {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return "", err
		}
	}
	return target, nil
}

// ResolveConflict returns target when it is free (or is the source
// itself), otherwise the first " (n)"-suffixed variant that is.
func ResolveConflict(target, source string) string {
	if !pathExists(target) || samePath(target, source) {
		return target
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !pathExists(candidate) || samePath(candidate, source) {
			return candidate
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// readableCodecs maps probe codec names to the display form embedded
// in normalized filenames.
var readableCodecs = map[string]string{
	"h264":  "H264",
	"hevc":  "HEVC",
	"av1":   "AV1",
	"mpeg4": "MPEG4",
	"vp9":   "VP9",
	"vp8":   "VP8",
}

// ReadableCodec maps an ffprobe codec name to its display form; codecs
// outside the table are uppercased.
func ReadableCodec(codec string) string {
	if codec == "" {
		return "UNKNOWN"
	}
	if v, ok := readableCodecs[strings.ToLower(codec)]; ok {
		return v
	}
	return strings.ToUpper(codec)
}

var nonWordRe = regexp.MustCompile(`[^\w\-.]`)

// NormalizedName renders the intermediate Show_Name_SxxExx_CODEC.ext
// scheme used between the rename and catalog-rename stages.
func NormalizedName(show string, season, episode int, codec, ext string) string {
	name := fmt.Sprintf("%s_S%sE%s_%s%s", show, pad2(season), pad2(episode), codec, strings.ToLower(ext))
	name = strings.ReplaceAll(name, " ", "_")
	return nonWordRe.ReplaceAllString(name, "")
}
