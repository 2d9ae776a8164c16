package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dualmux/internal/catalog"
	"dualmux/internal/media"
	"dualmux/internal/mkv"
)

type mergeCall struct {
	base   string
	dest   string
	extras []mkv.ExtraTrack
}

// fakeTool records every invocation and simulates merged output files
// so the later stages have something to operate on.
type fakeTool struct {
	mu sync.Mutex

	streams []mkv.StreamDescriptor
	tracks  []mkv.Track

	// probeFailFor fails any probe whose path contains it;
	// mergeFailFor fails any merge whose base path contains it.
	probeFailFor string
	mergeFailFor string

	extracts []string
	merges   []mergeCall
	edits    []int
}

func (f *fakeTool) Probe(ctx context.Context, path string) ([]mkv.StreamDescriptor, error) {
	if f.probeFailFor != "" && strings.Contains(path, f.probeFailFor) {
		return nil, &mkv.ToolError{Tool: "ffprobe", Err: errors.New("exit status 1")}
	}
	return f.streams, nil
}

func (f *fakeTool) ExtractStream(ctx context.Context, path string, index int, dest string) error {
	f.mu.Lock()
	f.extracts = append(f.extracts, dest)
	f.mu.Unlock()
	return os.WriteFile(dest, []byte("stream"), 0644)
}

func (f *fakeTool) Merge(ctx context.Context, base string, extras []mkv.ExtraTrack, dest string) error {
	if f.mergeFailFor != "" && strings.Contains(base, f.mergeFailFor) {
		return &mkv.ToolError{Tool: "mkvmerge", Stderr: "container error", Err: errors.New("exit status 2")}
	}
	f.mu.Lock()
	f.merges = append(f.merges, mergeCall{base: base, dest: dest, extras: extras})
	f.mu.Unlock()
	return os.WriteFile(dest, []byte("merged"), 0644)
}

func (f *fakeTool) EditTrackProperties(ctx context.Context, path string, trackID int, props mkv.TrackProps) error {
	f.mu.Lock()
	f.edits = append(f.edits, trackID)
	f.mu.Unlock()
	return nil
}

func (f *fakeTool) ReadTracks(ctx context.Context, path string) ([]mkv.Track, error) {
	return f.tracks, nil
}

func dubStreams() []mkv.StreamDescriptor {
	return []mkv.StreamDescriptor{
		{Index: 0, CodecType: "video", CodecName: "h264"},
		{Index: 1, CodecType: "audio", CodecName: "aac", Language: "eng"},
		{Index: 2, CodecType: "audio", CodecName: "aac", Language: "jpn"},
		{Index: 3, CodecType: "subtitle", CodecName: "ass", Language: "eng", Title: "Signs & Songs"},
		{Index: 4, CodecType: "subtitle", CodecName: "ass", Language: "eng", Title: "Full Dialogue"},
	}
}

func mergedTracks() []mkv.Track {
	return []mkv.Track{
		{ID: 0, Type: "video"},
		{ID: 1, Type: "audio", Language: "eng"},
		{ID: 2, Type: "subtitles", Name: "Track 2 - Signs & Songs", Language: "eng"},
	}
}

func newFakeTool() *fakeTool {
	return &fakeTool{streams: dubStreams(), tracks: mergedTracks()}
}

type stubResolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, show string, season, episode int) (*catalog.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.Result{
		SeriesTitle:  "My Great Show",
		EpisodeTitle: fmt.Sprintf("Episode %d", episode),
	}, nil
}

func newLibrary(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		VideoDir:   filepath.Join(root, "DUB"),
		SubDir:     filepath.Join(root, "SUB"),
		ExtractDir: filepath.Join(root, "extracted"),
		OutputDir:  filepath.Join(root, "Merged"),
		Template:   "standard_episode",
		Workers:    2,
	}
	for _, dir := range []string{opts.VideoDir, opts.SubDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	dubs := []string{"My Show - S01E01 [Dub].mkv", "My Show - S01E02 [Dub].mkv"}
	subs := []string{"My.Show.S01E01.sub.mkv", "My.Show.S01E02.sub.mkv"}
	for _, name := range dubs {
		if err := os.WriteFile(filepath.Join(opts.VideoDir, name), []byte("dub"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range subs {
		if err := os.WriteFile(filepath.Join(opts.SubDir, name), []byte("sub"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return opts
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to not exist (stat err = %v)", path, err)
	}
}

func TestRunFullPipeline(t *testing.T) {
	opts := newLibrary(t)
	tool := newFakeTool()
	resolver := &stubResolver{}

	result := New(tool, resolver, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	if len(result.Stages) != 5 {
		t.Fatalf("stages = %d, want 5", len(result.Stages))
	}
	if errs := result.Errs(); len(errs) != 0 {
		t.Fatalf("unexpected stage errors: %v", errs)
	}

	// Both input dirs normalized to the intermediate scheme.
	mustExist(t, filepath.Join(opts.VideoDir, "My_Show_S01E01_H264.mkv"))
	mustExist(t, filepath.Join(opts.SubDir, "My_Show_S01E02_H264.mkv"))

	// Extracted streams land in per-item subdirectories.
	mustExist(t, filepath.Join(opts.ExtractDir, "My_Show_S01E01_H264", "My_Show_S01E01_H264_audio_eng.mka"))
	mustExist(t, filepath.Join(opts.ExtractDir, "My_Show_S01E01_H264", "My_Show_S01E01_H264_subs_signs.ass"))

	// Merged outputs were catalog renamed with resolved titles.
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E01 - Episode 1.mkv"))
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E02 - Episode 2.mkv"))

	if len(tool.merges) != 2 {
		t.Errorf("merges = %d, want 2", len(tool.merges))
	}
	// Three planned edits per merged file.
	if len(tool.edits) != 6 {
		t.Errorf("track edits = %d, want 6", len(tool.edits))
	}
	// Memoization resolves each identity exactly once.
	if resolver.calls != 2 {
		t.Errorf("resolver calls = %d, want 2", resolver.calls)
	}
}

func TestMergeFailureSkipsOnlyThatItem(t *testing.T) {
	opts := newLibrary(t)
	tool := newFakeTool()
	tool.mergeFailFor = "S01E02"

	result := New(tool, &stubResolver{}, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	if len(result.Stages) != 5 {
		t.Fatalf("stages = %d, want 5", len(result.Stages))
	}
	mergeStage := result.Stages[2]
	if mergeStage.State != StateMerge || mergeStage.Failed() != 1 {
		t.Fatalf("merge stage = %+v, want one failure", mergeStage)
	}
	if got := Classify(mergeStage.Errs[0]); got != KindTool {
		t.Errorf("Classify(merge error) = %s, want %s", got, KindTool)
	}

	// The failed pair produced no output, so the later stages pass over
	// it; the healthy pair runs to the end.
	mustNotExist(t, filepath.Join(opts.OutputDir, "My_Show_S01E02_H264_Dual.mkv"))
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E01 - Episode 1.mkv"))
	if len(tool.edits) != 3 {
		t.Errorf("track edits = %d, want 3 (merged item only)", len(tool.edits))
	}
}

func TestAllMergesFailingAbortsRun(t *testing.T) {
	opts := newLibrary(t)
	tool := newFakeTool()
	// Every merge base carries the normalized show prefix.
	tool.mergeFailFor = "My_Show"

	result := New(tool, &stubResolver{}, opts).Run(context.Background())

	if !result.Aborted() {
		t.Fatalf("terminal state = %s, want %s", result.State, StateAborted)
	}
	// The run stops after the merge stage.
	if len(result.Stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(result.Stages))
	}
	mergeStage := result.Stages[2]
	if mergeStage.Failed() != 2 || mergeStage.Processed != 2 {
		t.Fatalf("merge stage = %+v, want both items failed", mergeStage)
	}
	if len(tool.edits) != 0 {
		t.Errorf("track edits = %d, want 0 after abort", len(tool.edits))
	}
}

func TestProbeFailureDegradesRename(t *testing.T) {
	opts := newLibrary(t)
	tool := newFakeTool()
	// The dub files fail to probe during rename; the codec token
	// degrades to UNKNOWN and the run still completes.
	tool.probeFailFor = "[Dub]"

	result := New(tool, &stubResolver{}, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	mustExist(t, filepath.Join(opts.VideoDir, "My_Show_S01E01_UNKNOWN.mkv"))
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E01 - Episode 1.mkv"))
}

func TestPreviewMakesNoChanges(t *testing.T) {
	opts := newLibrary(t)
	opts.Preview = true
	tool := newFakeTool()

	result := New(tool, &stubResolver{}, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	if errs := result.Errs(); len(errs) != 0 {
		t.Fatalf("unexpected stage errors: %v", errs)
	}

	// Inputs untouched.
	mustExist(t, filepath.Join(opts.VideoDir, "My Show - S01E01 [Dub].mkv"))
	mustExist(t, filepath.Join(opts.SubDir, "My.Show.S01E02.sub.mkv"))

	// Nothing was created and no mutating tool ran.
	for _, dir := range []string{opts.ExtractDir, opts.OutputDir} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("preview created %s", dir)
		}
	}
	if len(tool.extracts) != 0 || len(tool.merges) != 0 || len(tool.edits) != 0 {
		t.Errorf("preview invoked tools: extracts=%d merges=%d edits=%d",
			len(tool.extracts), len(tool.merges), len(tool.edits))
	}
}

func TestCatalogMissFallsBack(t *testing.T) {
	opts := newLibrary(t)
	tool := newFakeTool()
	resolver := &stubResolver{err: catalog.ErrNotFound}

	orch := New(tool, resolver, opts)
	missWarnings := 0
	for ev := range orch.Start(context.Background()) {
		if ev.Kind == KindLookup && ev.Err == nil {
			missWarnings++
		}
	}
	result := orch.Result()

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	if errs := result.Errs(); len(errs) != 0 {
		t.Fatalf("a lookup miss is not a stage failure, got: %v", errs)
	}
	// One warning event per affected item.
	if missWarnings != 2 {
		t.Errorf("lookup miss warnings = %d, want 2", missWarnings)
	}
	// Episode title clause drops out; series title comes from the
	// parsed identity.
	mustExist(t, filepath.Join(opts.OutputDir, "My Show - S01E01.mkv"))
	mustExist(t, filepath.Join(opts.OutputDir, "My Show - S01E02.mkv"))
}

func TestPrepareDirsMissingInputAborts(t *testing.T) {
	opts := newLibrary(t)
	opts.SubDir = filepath.Join(opts.SubDir, "missing")

	result := New(newFakeTool(), nil, opts).Run(context.Background())

	if !result.Aborted() {
		t.Fatalf("terminal state = %s, want %s", result.State, StateAborted)
	}
	if len(result.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(result.Stages))
	}
	if got := Classify(result.Stages[0].Errs[0]); got != KindIO {
		t.Errorf("Classify(prepare error) = %s, want %s", got, KindIO)
	}
}

func TestMergePairLayout(t *testing.T) {
	root := t.TempDir()
	tool := newFakeTool()
	dub := filepath.Join(root, "Show_S01E05_H264.mkv")
	sub := filepath.Join(root, "Show_S01E05_HEVC.mkv")

	dest, err := MergePair(context.Background(), tool, dub, sub, filepath.Join(root, "tmp"), root, false)
	if err != nil {
		t.Fatalf("MergePair() error = %v", err)
	}
	if want := filepath.Join(root, "Show_S01E05_HEVC_Dual.mkv"); dest != want {
		t.Errorf("dest = %s, want %s", dest, want)
	}

	if len(tool.extracts) != 2 {
		t.Fatalf("extracts = %d, want 2", len(tool.extracts))
	}
	if got := filepath.Base(tool.extracts[0]); got != "Show_S01E05_H264_audio_eng.mka" {
		t.Errorf("audio dest = %s", got)
	}
	if got := filepath.Base(tool.extracts[1]); got != "Show_S01E05_H264_subs_signs.ass" {
		t.Errorf("subtitle dest = %s", got)
	}

	if len(tool.merges) != 1 {
		t.Fatalf("merges = %d, want 1", len(tool.merges))
	}
	extras := tool.merges[0].extras
	if len(extras) != 2 {
		t.Fatalf("extras = %d, want 2", len(extras))
	}
	if extras[0].Name != "" || extras[0].Language != "" {
		t.Errorf("audio extra carries flags: %+v", extras[0])
	}
	if extras[1].Name != "Track 2 - Signs & Songs" || extras[1].Language != "eng" {
		t.Errorf("subtitle extra = %+v", extras[1])
	}
}

func TestMatchFailureSkipsItem(t *testing.T) {
	opts := newLibrary(t)
	// Remove one sub counterpart so its dub cannot be paired.
	if err := os.Remove(filepath.Join(opts.SubDir, "My.Show.S01E02.sub.mkv")); err != nil {
		t.Fatal(err)
	}

	result := New(newFakeTool(), &stubResolver{}, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	mergeStage := result.Stages[2]
	if mergeStage.Failed() != 1 || mergeStage.Processed != 2 {
		t.Fatalf("merge stage = %+v, want one skipped item of two", mergeStage)
	}
	if got := Classify(mergeStage.Errs[0]); got != KindMatch {
		t.Errorf("Classify(match error) = %s, want %s", got, KindMatch)
	}

	// The paired item still runs through every later stage.
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E01 - Episode 1.mkv"))
	mustNotExist(t, filepath.Join(opts.OutputDir, "My_Show_S01E02_H264_Dual.mkv"))
}

func TestRenameFailureDoesNotBlockMerge(t *testing.T) {
	opts := newLibrary(t)
	// A stem this long makes the normalized target exceed the filename
	// length limit, so its rename fails while everything else proceeds.
	long := strings.Repeat("a", 245) + ".mkv"
	if err := os.WriteFile(filepath.Join(opts.SubDir, long), []byte("sub"), 0644); err != nil {
		t.Fatal(err)
	}
	tool := newFakeTool()

	result := New(tool, &stubResolver{}, opts).Run(context.Background())

	if result.State != StateDone {
		t.Fatalf("terminal state = %s, want %s (errors: %v)", result.State, StateDone, result.Errs())
	}
	renameStage := result.Stages[1]
	if renameStage.State != StateRename || renameStage.Failed() != 1 {
		t.Fatalf("rename stage = %+v, want one failure", renameStage)
	}
	if got := Classify(renameStage.Errs[0]); got != KindIO {
		t.Errorf("Classify(rename error) = %s, want %s", got, KindIO)
	}

	// Both pairs still merged and finished the run.
	if len(tool.merges) != 2 {
		t.Errorf("merges = %d, want 2", len(tool.merges))
	}
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E01 - Episode 1.mkv"))
	mustExist(t, filepath.Join(opts.OutputDir, "My Great Show - S01E02 - Episode 2.mkv"))
	// The unrenamable file keeps its original name.
	mustExist(t, filepath.Join(opts.SubDir, long))
}

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"match", fmt.Errorf("episode S01E02: %w", errors.New("x")), KindUnknown},
		{"noMatch", fmt.Errorf("item: %w", media.ErrNoMatch), KindMatch},
		{"noCode", fmt.Errorf("item: %w", media.ErrNoEpisodeCode), KindMatch},
		{"lookup", fmt.Errorf("show: %w", catalog.ErrNotFound), KindLookup},
		{"tool", &mkv.ToolError{Tool: "ffmpeg", Err: errors.New("exit status 1")}, KindTool},
		{"io", &IOError{Op: "rename", Path: "/x", Err: errors.New("permission denied")}, KindIO},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
