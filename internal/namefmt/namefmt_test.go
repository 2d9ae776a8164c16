package namefmt

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestFormatBuiltins(t *testing.T) {
	t.Parallel()
	in := Input{
		SeriesTitle:  "My Show",
		EpisodeTitle: "Pilot",
		Season:       1,
		Episode:      2,
		Ext:          ".mkv",
	}
	tests := []struct {
		key  string
		want string
	}{
		{"standard", "My Show - S01E02.mkv"},
		{"standard_episode", "My Show - S01E02 - Pilot.mkv"},
		{"scene", "My.Show.S01E02.mkv"},
		{"scene_episode", "My.Show.S01E02.Pilot.mkv"},
		{"folder_season_episode", "My Show/Season 1/S01E02 - Pilot.mkv"},
	}
	for _, tc := range tests {
		tmpl, err := Lookup(tc.key, "")
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", tc.key, err)
		}
		if got := Format(tmpl, in); got != tc.want {
			t.Errorf("Format(%s) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

// Templates referencing the episode title degrade to the plain form
// when the catalog lookup missed.
func TestFormatWithoutEpisodeTitle(t *testing.T) {
	t.Parallel()
	in := Input{SeriesTitle: "My Show", Season: 1, Episode: 2, Ext: ".mkv"}
	tests := []struct {
		key  string
		want string
	}{
		{"standard_episode", "My Show - S01E02.mkv"},
		{"scene_episode", "My.Show.S01E02.mkv"},
		{"folder_season_episode", "My Show/Season 1/S01E02.mkv"},
	}
	for _, tc := range tests {
		tmpl, _ := Lookup(tc.key, "")
		if got := Format(tmpl, in); got != tc.want {
			t.Errorf("Format(%s) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestFormatStripsInvalidCharacters(t *testing.T) {
	t.Parallel()
	in := Input{
		SeriesTitle:  `Who: Is <It>?`,
		EpisodeTitle: `A/B\C|D*E"F`,
		Season:       10,
		Episode:      3,
		Ext:          ".mkv",
	}
	tmpl, _ := Lookup("standard_episode", "")
	want := "Who Is It - S10E03 - ABCDEF.mkv"
	if got := Format(tmpl, in); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	if _, err := Lookup("custom", ""); err == nil {
		t.Error("Lookup(custom, empty) error = nil, want error")
	}
	tmpl, err := Lookup("custom", "{Series Title} S{season:02d}")
	if err != nil || tmpl != "{Series Title} S{season:02d}" {
		t.Errorf("Lookup(custom) = %q, %v", tmpl, err)
	}
	// Unrecognized keys pass through as literal templates.
	tmpl, err = Lookup("{Series Title} {codec}", "")
	if err != nil || tmpl != "{Series Title} {codec}" {
		t.Errorf("Lookup(literal) = %q, %v", tmpl, err)
	}
	tmpl, err = Lookup("", "")
	if err != nil || tmpl != builtinTemplates["standard"] {
		t.Errorf("Lookup(empty) = %q, %v, want standard template", tmpl, err)
	}
}

func TestPlaceCreatesSeasonDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target, err := Place(dir, "My Show/Season 1/S01E02 - Pilot.mkv", false)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	want := filepath.Join(dir, "My Show", "Season 1", "S01E02 - Pilot.mkv")
	if target != want {
		t.Errorf("Place() = %q, want %q", target, want)
	}
	if fi, err := os.Stat(filepath.Dir(target)); err != nil || !fi.IsDir() {
		t.Errorf("season directory not created: %v", err)
	}
}

func TestPlacePreviewTouchesNothing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := Place(dir, "My Show/Season 1/a.mkv", true); err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("preview created %d entries, want 0", len(entries))
	}
}

func TestResolveConflictFreePath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "a.mkv")
	if got := ResolveConflict(target, filepath.Join(dir, "src.mkv")); got != target {
		t.Errorf("ResolveConflict() = %q, want %q", got, target)
	}
}

func TestResolveConflictSourceIsTarget(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(target, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := ResolveConflict(target, target); got != target {
		t.Errorf("ResolveConflict() = %q, want the source path back", got)
	}
}

// The suffix loop must settle on n = colliding paths + 1.
func TestResolveConflictTermination(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(target, nil, 0644); err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 3; n++ {
		p := filepath.Join(dir, fmt.Sprintf("a (%d).mkv", n))
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	want := filepath.Join(dir, "a (4).mkv")
	if got := ResolveConflict(target, filepath.Join(dir, "src.mkv")); got != want {
		t.Errorf("ResolveConflict() = %q, want %q", got, want)
	}
}

func TestReadableCodec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"h264", "H264"},
		{"hevc", "HEVC"},
		{"av1", "AV1"},
		{"prores", "PRORES"},
		{"", "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := ReadableCodec(tc.in); got != tc.want {
			t.Errorf("ReadableCodec(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizedName(t *testing.T) {
	t.Parallel()
	got := NormalizedName("My Show", 1, 2, "HEVC", ".MKV")
	if got != "My_Show_S01E02_HEVC.mkv" {
		t.Errorf("NormalizedName() = %q, want My_Show_S01E02_HEVC.mkv", got)
	}
	got = NormalizedName("Who's Show!", 3, 14, "H264", ".mp4")
	if got != "Whos_Show_S03E14_H264.mp4" {
		t.Errorf("NormalizedName() = %q, want Whos_Show_S03E14_H264.mp4", got)
	}
}
