package media

import (
	"regexp"
	"strconv"
	"strings"
)

// Filename parsing utilities.
//
// This file consolidates the regular expressions and helpers used to
// recover structured identity (show, season, episode) from community
// naming conventions. Parsing is deliberately tolerant: strategies are
// tried in a fixed priority order and the first success wins, with a
// defined default identity when nothing matches. A parse never fails.
var (
	// explicitRe matches canonical forms: Show.S01E02, Show 1x02, Show season 1 episode 2.
	explicitRe = regexp.MustCompile(`(?i)(.+?)[.\s_-]*(?:s|season)?(\d{1,2})(?:e|x|episode)(\d{1,2})`)

	// compactRe matches 3-digit runs read as season + 2-digit episode:
	// Show 102, Show_102_extra. A trailing non-digit (or end of input)
	// guards against swallowing longer numbers such as years.
	compactRe = regexp.MustCompile(`(?i)(.+?)[.\s_-]*(\d)(\d{2})(?:[^0-9]|$)`)

	// bareNumberRe matches a trailing bare episode number, optionally
	// wrapped as "episode N" or "[N of M]"; season is assumed to be 1.
	bareNumberRe = regexp.MustCompile(`(?i)(.+?)[.\s_-]+(?:\[?(?:episode|ep)[.\s_-]*)?(\d{1,2})(?:[.\s_-]*of[.\s_-]*\d{1,2})?(?:\])?`)

	// episodeCodeRe finds an SxxExx token anywhere in a name. Used both
	// for dub/sub matching and for detecting already-normalized names.
	episodeCodeRe = regexp.MustCompile(`(?i)(S\d+E\d+)`)

	// normalizedNameRe matches the rename stage's own output scheme,
	// Show_Name_SxxExx_CODEC.ext, so later stages can read it back.
	normalizedNameRe = regexp.MustCompile(`^(.+?)_S(\d{2})E(\d{2})_(\w+)(\.\w+)$`)

	// videoRe matches video file extensions used to include media files.
	videoRe = regexp.MustCompile(`(?i)\.(mp4|mkv|avi|mov|wmv|flv|webm|mpeg|mpg|m4v|3gp|vob|ts|mts|m2ts|rmvb|divx)$`)

	// bracketGroupRe strips bracketed/parenthesized/braced release groups.
	bracketGroupRe = regexp.MustCompile(`\[.*?\]|\(.*?\)|\{.*?\}`)

	// separatorRunRe collapses filename separators into single spaces.
	separatorRunRe = regexp.MustCompile(`[._-]+`)

	// whitespaceRunRe collapses repeated whitespace.
	whitespaceRunRe = regexp.MustCompile(`\s+`)

	// releaseTokens is the fixed vocabulary of quality/source/codec tags
	// removed from show names.
	releaseTokens = []string{
		"bdrip", "bluray", "dvdrip", "webdl", "webrip", "hdtv",
		"1080p", "720p", "480p", "2160p", "4k", "x264", "x265", "hevc",
		"aac", "ac3", "mp3", "flac", "subtitled", "subbed", "dubbed",
	}

	releaseTokensRe = compileReleaseTokens(releaseTokens)
)

func compileReleaseTokens(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Identity is the parsed (show, season, episode) triple for one file.
// It is derived once per file and never mutated afterwards.
type Identity struct {
	Show    string
	Season  int
	Episode int
}

// Strategy names which parser strategy produced an Identity.
type Strategy string

const (
	StrategyExplicit   Strategy = "explicit"
	StrategyCompact    Strategy = "compact"
	StrategyBareNumber Strategy = "bare_number"
	// StrategyDefault is the fallback identity (cleaned name, S1E1).
	// It is a defined outcome, not an error.
	StrategyDefault Strategy = "default"
)

// parserStrategy attempts one naming convention; ok is false when the
// convention does not apply to the input.
type parserStrategy struct {
	name  Strategy
	parse func(string) (Identity, bool)
}

// strategies are tried in priority order; the first success wins.
var strategies = []parserStrategy{
	{StrategyExplicit, parseExplicit},
	{StrategyCompact, parseCompact},
	{StrategyBareNumber, parseBareNumber},
}

// Parse extracts an Identity from a filename. It never fails: when no
// strategy matches, the cleaned full name with season 1 episode 1 is
// returned under StrategyDefault.
func Parse(filename string) (Identity, Strategy) {
	stem := TrimVideoExt(filename)

	for _, s := range strategies {
		if id, ok := s.parse(stem); ok {
			return id, s.name
		}
	}

	return Identity{Show: CleanShowName(stem), Season: 1, Episode: 1}, StrategyDefault
}

func parseExplicit(stem string) (Identity, bool) {
	m := explicitRe.FindStringSubmatch(stem)
	if m == nil {
		return Identity{}, false
	}
	season, err1 := strconv.Atoi(m[2])
	episode, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Identity{}, false
	}
	return Identity{Show: CleanShowName(m[1]), Season: season, Episode: episode}, true
}

func parseCompact(stem string) (Identity, bool) {
	m := compactRe.FindStringSubmatch(stem)
	if m == nil {
		return Identity{}, false
	}
	season, err1 := strconv.Atoi(m[2])
	episode, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Identity{}, false
	}
	return Identity{Show: CleanShowName(m[1]), Season: season, Episode: episode}, true
}

func parseBareNumber(stem string) (Identity, bool) {
	m := bareNumberRe.FindStringSubmatch(stem)
	if m == nil {
		return Identity{}, false
	}
	episode, err := strconv.Atoi(m[2])
	if err != nil {
		return Identity{}, false
	}
	return Identity{Show: CleanShowName(m[1]), Season: 1, Episode: episode}, true
}

// CleanShowName strips release tags, bracketed groups, and separator
// noise from an extracted show name.
func CleanShowName(name string) string {
	name = bracketGroupRe.ReplaceAllString(name, "")
	name = separatorRunRe.ReplaceAllString(name, " ")
	name = releaseTokensRe.ReplaceAllString(name, "")
	name = whitespaceRunRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, "-_ ")
	return strings.TrimSpace(name)
}

// IsVideo reports whether filename has a recognized video extension.
func IsVideo(filename string) bool {
	return videoRe.MatchString(filename)
}

// TrimVideoExt removes a recognized video extension; other extensions
// (and extensionless names) are left untouched.
func TrimVideoExt(filename string) string {
	if loc := videoRe.FindStringIndex(filename); loc != nil {
		return filename[:loc[0]]
	}
	return filename
}

// EpisodeCode returns the raw SxxExx token found in name, uppercased,
// or "" when the name carries none.
func EpisodeCode(name string) string {
	m := episodeCodeRe.FindString(name)
	return strings.ToUpper(m)
}

// EpisodeKey renders the canonical zero-padded episode code used by
// the rename stage and the naming formatter.
func EpisodeKey(season, episode int) string {
	return "S" + pad2(season) + "E" + pad2(episode)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// ParseNormalized reads back a name produced by the rename stage
// (Show_Name_SxxExx_CODEC.ext). The codec token and extension are
// returned alongside the identity so the catalog rename stage can
// re-format without another probe.
func ParseNormalized(filename string) (id Identity, codec, ext string, ok bool) {
	m := normalizedNameRe.FindStringSubmatch(filename)
	if m == nil {
		return Identity{}, "", "", false
	}
	season, err1 := strconv.Atoi(m[2])
	episode, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Identity{}, "", "", false
	}
	id = Identity{
		Show:    strings.ReplaceAll(m[1], "_", " "),
		Season:  season,
		Episode: episode,
	}
	return id, m[4], m[5], true
}
