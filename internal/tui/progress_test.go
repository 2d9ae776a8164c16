package tui

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"dualmux/internal/pipeline"
	"dualmux/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
)

func finalProgressModel(t *testing.T, tm *teatest.TestModel) *ProgressModel {
	t.Helper()
	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second))
	model, ok := final.(*ProgressModel)
	if !ok {
		t.Fatalf("Final model type = %T, want *ProgressModel", final)
	}
	return model
}

func TestProgressTUIConsumesRunEvents(t *testing.T) {
	events := make(chan pipeline.Event, 16)
	events <- pipeline.Event{State: pipeline.StateRename, Item: "a.mkv", Message: "A_S01E01_H264.mkv", Processed: 1}
	events <- pipeline.Event{State: pipeline.StateMerge, Item: "a.mkv", Processed: 1, Total: 2}
	events <- pipeline.Event{
		State:     pipeline.StateMerge,
		Item:      "b.mkv",
		Err:       errors.New("mkvmerge: exit status 2"),
		Processed: 2,
		Total:     2,
	}
	events <- pipeline.Event{State: pipeline.StateDone}
	close(events)

	model := NewProgressModel(events, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 24))
	t.Cleanup(func() { _ = tm.Quit() })

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	final := finalProgressModel(t, tm)

	if !final.done {
		t.Error("done = false, want true after event stream closed")
	}
	if final.aborted {
		t.Error("aborted = true, want false")
	}
	if final.processed != 2 || final.total != 2 {
		t.Errorf("progress = %d/%d, want 2/2", final.processed, final.total)
	}
	if len(final.Errs()) != 1 {
		t.Fatalf("Errs() = %d entries, want 1", len(final.Errs()))
	}

	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(2*time.Second)))
	if err != nil {
		t.Fatalf("FinalOutput read error = %v", err)
	}
	for _, want := range []string{"dualmux", "Warnings: 1", "Items: 2/2"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("final output missing %q", want)
		}
	}
}

func TestProgressTUIAbortedRun(t *testing.T) {
	events := make(chan pipeline.Event, 4)
	events <- pipeline.Event{State: pipeline.StateMerge, Item: "a.mkv", Err: errors.New("mkvmerge: boom"), Processed: 1, Total: 1}
	events <- pipeline.Event{State: pipeline.StateAborted, Err: errors.New("mkvmerge: boom")}
	close(events)

	model := NewProgressModel(events, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(100, 24))
	t.Cleanup(func() { _ = tm.Quit() })

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	final := finalProgressModel(t, tm)

	if !final.Aborted() {
		t.Error("Aborted() = false, want true")
	}
}

func TestProgressTUIQuitKey(t *testing.T) {
	events := make(chan pipeline.Event)
	t.Cleanup(func() { close(events) })

	model := NewProgressModel(events, theme.Default())
	tm := teatest.NewTestModel(t, model, teatest.WithInitialTermSize(80, 20))
	t.Cleanup(func() { _ = tm.Quit() })

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	final := finalProgressModel(t, tm)

	if final.done {
		t.Error("done = true, want false when exiting via keybinding")
	}
}

func TestCollectPlanGroupsEvents(t *testing.T) {
	events := make(chan pipeline.Event, 8)
	events <- pipeline.Event{State: pipeline.StateInit}
	events <- pipeline.Event{State: pipeline.StateRename, Item: "a.mkv", Message: "A_S01E01_H264.mkv"}
	events <- pipeline.Event{State: pipeline.StateMerge, Item: "a.mkv"}
	events <- pipeline.Event{State: pipeline.StateDone}
	close(events)

	plan := CollectPlan(events)
	if len(plan) != 2 {
		t.Fatalf("plan = %d ops, want 2", len(plan))
	}
	if plan[0].Stage != pipeline.StateRename || plan[0].Action != "A_S01E01_H264.mkv" {
		t.Errorf("plan[0] = %+v", plan[0])
	}

	preview := NewPreviewModel(plan, theme.Default())
	if preview.TuiTreeModel == nil {
		t.Fatal("preview tree model not constructed")
	}
}
