// Package pipeline orchestrates a full normalization run over a
// dub/sub library: prepare directories, normalize filenames, extract
// and merge counterpart streams, fix track metadata, and rename the
// results to the configured catalog naming.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dualmux/internal/catalog"
	"dualmux/internal/log"
	"dualmux/internal/media"
	"dualmux/internal/mkv"
	"dualmux/internal/namefmt"
)

// State identifies a pipeline stage or terminal condition.
type State string

const (
	StateInit          State = "init"
	StatePrepareDirs   State = "prepare_dirs"
	StateRename        State = "rename"
	StateExtract       State = "extract"
	StateMerge         State = "merge"
	StateFixNames      State = "fix_names"
	StateCatalogRename State = "catalog_rename"
	StateDone          State = "done"
	StateAborted       State = "aborted"
)

// Options configure one run.
type Options struct {
	// VideoDir holds the dub files, SubDir their sub counterparts.
	VideoDir string
	SubDir   string
	// ExtractDir receives per-item extracted stream files; OutputDir
	// receives the merged results.
	ExtractDir string
	OutputDir  string

	Recursive bool
	// Preview computes and reports every operation without touching
	// the filesystem or invoking mutating tools.
	Preview bool

	SkipRename   bool
	SkipExtract  bool
	SkipFixNames bool
	SkipCatalog  bool

	// Template selects the catalog naming template by key;
	// CustomTemplate supplies the template body when the key is
	// "custom".
	Template       string
	CustomTemplate string

	// Workers bounds the pool for the extract and merge stage.
	Workers int
}

// StageResult is the aggregated outcome of one stage.
type StageResult struct {
	State     State
	Skipped   bool
	Processed int
	Errs      []error
}

// Failed reports the number of item failures in the stage.
func (s StageResult) Failed() int { return len(s.Errs) }

// RunResult aggregates per-stage outcomes plus the terminal state.
type RunResult struct {
	Stages []StageResult
	State  State
}

// Aborted reports whether the run ended on a fatal failure.
func (r *RunResult) Aborted() bool { return r.State == StateAborted }

// Errs flattens every stage failure in stage order.
func (r *RunResult) Errs() []error {
	var all []error
	for _, s := range r.Stages {
		all = append(all, s.Errs...)
	}
	return all
}

// Event is one progress update emitted during a run.
type Event struct {
	State     State
	Item      string
	Message   string
	Err       error
	Kind      Kind
	Processed int
	Total     int
}

// Orchestrator drives the stages over one library.
type Orchestrator struct {
	tool     mkv.Tool
	resolver catalog.Resolver
	opts     Options

	mu     sync.Mutex
	result *RunResult
}

// New builds an Orchestrator. The resolver may be nil, in which case
// the catalog rename stage formats names from parsed identities alone.
// A non-nil resolver is memoized so each identity resolves once per
// run.
func New(tool mkv.Tool, resolver catalog.Resolver, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if resolver != nil {
		resolver = catalog.NewMemoized(resolver)
	}
	return &Orchestrator{tool: tool, resolver: resolver, opts: opts}
}

// Start begins the run and returns its progress event stream. The
// channel is closed when the run finishes; Result is valid after that.
func (o *Orchestrator) Start(ctx context.Context) <-chan Event {
	events := make(chan Event, 128)
	go func() {
		defer close(events)
		result := o.run(ctx, events)
		o.mu.Lock()
		o.result = result
		o.mu.Unlock()
	}()
	return events
}

// Result returns the outcome of the last completed run.
func (o *Orchestrator) Result() *RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Run executes the pipeline synchronously, discarding progress events.
func (o *Orchestrator) Run(ctx context.Context) *RunResult {
	for range o.Start(ctx) {
	}
	return o.Result()
}

func (o *Orchestrator) run(ctx context.Context, events chan<- Event) *RunResult {
	result := &RunResult{State: StateDone}
	emit(ctx, events, Event{State: StateInit})

	prep := o.prepareDirs()
	result.Stages = append(result.Stages, prep)
	emitStage(ctx, events, prep)
	if prep.Failed() > 0 {
		result.State = StateAborted
		emit(ctx, events, Event{State: StateAborted, Err: prep.Errs[0], Kind: Classify(prep.Errs[0])})
		return result
	}

	rename := o.renameStage(ctx, events)
	result.Stages = append(result.Stages, rename)
	if ctx.Err() != nil {
		result.State = StateAborted
		return result
	}

	merge := o.mergeStage(ctx, events)
	result.Stages = append(result.Stages, merge)
	if ctx.Err() != nil {
		result.State = StateAborted
		return result
	}
	if !merge.Skipped && merge.Processed > 0 && merge.Failed() == merge.Processed {
		result.State = StateAborted
		emit(ctx, events, Event{State: StateAborted, Err: merge.Errs[0], Kind: Classify(merge.Errs[0])})
		return result
	}

	fix := o.fixNamesStage(ctx, events)
	result.Stages = append(result.Stages, fix)
	if ctx.Err() != nil {
		result.State = StateAborted
		return result
	}

	cat := o.catalogStage(ctx, events)
	result.Stages = append(result.Stages, cat)
	if ctx.Err() != nil {
		result.State = StateAborted
		return result
	}

	emit(ctx, events, Event{State: StateDone})
	return result
}

// prepareDirs verifies the input directories and creates the extract
// and output directories. Any failure here is fatal.
func (o *Orchestrator) prepareDirs() StageResult {
	stage := StageResult{State: StatePrepareDirs}

	for _, dir := range []string{o.opts.VideoDir, o.opts.SubDir} {
		info, err := os.Stat(dir)
		if err != nil {
			stage.Errs = append(stage.Errs, &IOError{Op: "stat", Path: dir, Err: err})
			return stage
		}
		if !info.IsDir() {
			stage.Errs = append(stage.Errs, &IOError{Op: "stat", Path: dir, Err: fmt.Errorf("not a directory")})
			return stage
		}
	}

	if o.opts.Preview {
		stage.Processed = 2
		return stage
	}
	for _, dir := range []string{o.opts.ExtractDir, o.opts.OutputDir} {
		err := os.MkdirAll(dir, 0755)
		log.LogCreateDir(dir, err == nil, err)
		if err != nil {
			stage.Errs = append(stage.Errs, &IOError{Op: "mkdir", Path: dir, Err: err})
			return stage
		}
		stage.Processed++
	}
	return stage
}

// renameStage normalizes the filenames in both input directories so
// every file carries an episode code the matcher can use. Failures are
// warnings; the affected file simply keeps its name.
func (o *Orchestrator) renameStage(ctx context.Context, events chan<- Event) StageResult {
	stage := StageResult{State: StateRename}
	if o.opts.SkipRename {
		stage.Skipped = true
		return stage
	}

	for _, dir := range []string{o.opts.VideoDir, o.opts.SubDir} {
		names, err := ListVideos(dir, o.opts.Recursive)
		if err != nil {
			stage.Errs = append(stage.Errs, err)
			continue
		}
		for _, name := range names {
			if ctx.Err() != nil {
				return stage
			}
			path := filepath.Join(dir, filepath.FromSlash(name))
			target, err := RenameFile(ctx, o.tool, path, o.opts.Preview)
			stage.Processed++
			if err != nil {
				stage.Errs = append(stage.Errs, err)
				emit(ctx, events, Event{State: StateRename, Item: name, Err: err, Kind: Classify(err)})
				continue
			}
			emit(ctx, events, Event{
				State:     StateRename,
				Item:      name,
				Message:   filepath.Base(target),
				Processed: stage.Processed,
			})
		}
	}
	return stage
}

type mergeItem struct {
	dub string
	err error
}

// mergeStage pairs each dub file with its sub counterpart and runs
// extraction plus merge on a bounded worker pool. All operations on
// one pair run in order on a single worker. A failed pair is skipped
// with a warning; its merged output never exists, so the later stages
// pass over it. The run aborts only when no pair succeeds.
func (o *Orchestrator) mergeStage(ctx context.Context, events chan<- Event) StageResult {
	stage := StageResult{State: StateMerge}
	if o.opts.SkipExtract {
		stage.Skipped = true
		return stage
	}

	dubs, err := ListVideos(o.opts.VideoDir, o.opts.Recursive)
	if err != nil {
		stage.Errs = append(stage.Errs, err)
		return stage
	}
	subEntries, err := ListVideos(o.opts.SubDir, o.opts.Recursive)
	if err != nil {
		stage.Errs = append(stage.Errs, err)
		return stage
	}
	if len(dubs) == 0 {
		return stage
	}

	workers := min(o.opts.Workers, len(dubs))
	workCh := make(chan string)
	resultCh := make(chan mergeItem)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dub := range workCh {
				if ctx.Err() != nil {
					return
				}
				emit(ctx, events, Event{State: StateExtract, Item: dub, Total: len(dubs)})
				err := o.mergeOne(ctx, dub, subEntries)
				select {
				case resultCh <- mergeItem{dub: dub, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, dub := range dubs {
			select {
			case workCh <- dub:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for item := range resultCh {
		stage.Processed++
		if item.err != nil {
			stage.Errs = append(stage.Errs, fmt.Errorf("%s: %w", item.dub, item.err))
		}
		emit(ctx, events, Event{
			State:     StateMerge,
			Item:      item.dub,
			Err:       item.err,
			Kind:      Classify(item.err),
			Processed: stage.Processed,
			Total:     len(dubs),
		})
	}
	return stage
}

func (o *Orchestrator) mergeOne(ctx context.Context, dub string, subEntries []string) error {
	subName, err := media.MatchSub(dub, subEntries)
	if err != nil {
		return err
	}
	dubPath := filepath.Join(o.opts.VideoDir, filepath.FromSlash(dub))
	subPath := filepath.Join(o.opts.SubDir, filepath.FromSlash(subName))
	_, err = MergePair(ctx, o.tool, dubPath, subPath, o.opts.ExtractDir, o.opts.OutputDir, o.opts.Preview)
	return err
}

// fixNamesStage normalizes track metadata on every merged output.
// Failures are warnings.
func (o *Orchestrator) fixNamesStage(ctx context.Context, events chan<- Event) StageResult {
	stage := StageResult{State: StateFixNames}
	if o.opts.SkipFixNames {
		stage.Skipped = true
		return stage
	}

	names, err := ListVideos(o.opts.OutputDir, false)
	if err != nil {
		if isNotExist(err) {
			return stage
		}
		stage.Errs = append(stage.Errs, err)
		return stage
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return stage
		}
		path := filepath.Join(o.opts.OutputDir, name)
		plan, err := FixFile(ctx, o.tool, path, o.opts.Preview)
		stage.Processed++
		if err != nil {
			stage.Errs = append(stage.Errs, err)
		}
		emit(ctx, events, Event{
			State:     StateFixNames,
			Item:      name,
			Message:   fmt.Sprintf("%d track edits", len(plan)),
			Err:       err,
			Kind:      Classify(err),
			Processed: stage.Processed,
			Total:     len(names),
		})
	}
	return stage
}

// catalogStage renames every merged output to the configured naming
// template. Lookup misses fall back to the parsed identity and are not
// failures.
func (o *Orchestrator) catalogStage(ctx context.Context, events chan<- Event) StageResult {
	stage := StageResult{State: StateCatalogRename}
	if o.opts.SkipCatalog {
		stage.Skipped = true
		return stage
	}

	template, err := namefmt.Lookup(o.opts.Template, o.opts.CustomTemplate)
	if err != nil {
		stage.Errs = append(stage.Errs, err)
		return stage
	}

	names, err := ListVideos(o.opts.OutputDir, false)
	if err != nil {
		if isNotExist(err) {
			return stage
		}
		stage.Errs = append(stage.Errs, err)
		return stage
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return stage
		}
		path := filepath.Join(o.opts.OutputDir, name)
		target, missed, err := CatalogRenameFile(ctx, o.resolver, path, template, o.opts.Preview)
		stage.Processed++
		if missed {
			// Warn per item; a miss is not a stage failure.
			emit(ctx, events, Event{
				State:   StateCatalogRename,
				Item:    name,
				Message: "no catalog match; using parsed identity",
				Kind:    KindLookup,
			})
		}
		if err != nil {
			stage.Errs = append(stage.Errs, err)
			emit(ctx, events, Event{State: StateCatalogRename, Item: name, Err: err, Kind: Classify(err)})
			continue
		}
		emit(ctx, events, Event{
			State:     StateCatalogRename,
			Item:      name,
			Message:   filepath.Base(target),
			Processed: stage.Processed,
			Total:     len(names),
		})
	}
	return stage
}

// ListVideos returns the video files under dir as slash paths relative
// to dir, sorted. Without recursion only the top level is scanned.
func ListVideos(dir string, recursive bool) ([]string, error) {
	var out []string
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !media.IsVideo(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, &IOError{Op: "walk", Path: dir, Err: err}
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &IOError{Op: "readdir", Path: dir, Err: err}
		}
		for _, e := range entries {
			if e.IsDir() || !media.IsVideo(e.Name()) {
				continue
			}
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func isNotExist(err error) bool {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return os.IsNotExist(ioErr.Err)
	}
	return os.IsNotExist(err)
}

func emit(ctx context.Context, events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func emitStage(ctx context.Context, events chan<- Event, stage StageResult) {
	ev := Event{State: stage.State, Processed: stage.Processed}
	if len(stage.Errs) > 0 {
		ev.Err = stage.Errs[0]
		ev.Kind = Classify(stage.Errs[0])
	}
	emit(ctx, events, ev)
}
