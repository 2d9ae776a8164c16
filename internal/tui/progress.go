// Package tui holds the bubbletea views: a live progress screen for
// pipeline runs and a navigable preview tree for dry runs.
package tui

import (
	"fmt"
	"strings"

	"dualmux/internal/pipeline"
	"dualmux/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// stageLabels are the human names shown for pipeline states.
var stageLabels = map[pipeline.State]string{
	pipeline.StateInit:          "Starting",
	pipeline.StatePrepareDirs:   "Preparing directories",
	pipeline.StateRename:        "Normalizing filenames",
	pipeline.StateExtract:       "Extracting streams",
	pipeline.StateMerge:         "Merging",
	pipeline.StateFixNames:      "Fixing track names",
	pipeline.StateCatalogRename: "Catalog renaming",
	pipeline.StateDone:          "Done",
	pipeline.StateAborted:       "Aborted",
}

// stageIcons map pipeline states to theme icon names.
var stageIcons = map[pipeline.State]string{
	pipeline.StatePrepareDirs:   "prepare",
	pipeline.StateRename:        "rename",
	pipeline.StateExtract:       "extract",
	pipeline.StateMerge:         "merge",
	pipeline.StateFixNames:      "tracks",
	pipeline.StateCatalogRename: "catalog",
	pipeline.StateDone:          "success",
	pipeline.StateAborted:       "error",
}

// StageLabel returns the display name for a pipeline state.
func StageLabel(state pipeline.State) string {
	if label, ok := stageLabels[state]; ok {
		return label
	}
	return string(state)
}

// ProgressModel renders a pipeline run's event stream as a full-screen
// progress view. The run itself executes in the orchestrator's own
// goroutine; the model only consumes events.
type ProgressModel struct {
	events <-chan pipeline.Event
	theme  theme.Theme

	width  int
	height int
	bar    progress.Model

	stage     pipeline.State
	lastItem  string
	processed int
	total     int
	errs      []string
	aborted   bool
	done      bool
}

type eventMsg pipeline.Event

// streamClosedMsg signals that the orchestrator finished and closed
// the event channel.
type streamClosedMsg struct{}

// NewProgressModel builds a progress view over a pipeline event
// stream.
func NewProgressModel(events <-chan pipeline.Event, th theme.Theme) *ProgressModel {
	runewidth.DefaultCondition.EastAsianWidth = false
	runewidth.DefaultCondition.StrictEmojiNeutral = true

	from, to := th.ProgressGradient()
	bar := progress.New(progress.WithGradient(from, to))
	bar.Width = 50

	return &ProgressModel{
		events: events,
		theme:  th,
		width:  80,
		height: 16,
		bar:    bar,
		stage:  pipeline.StateInit,
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *ProgressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = msg.Width - 4
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case eventMsg:
		m.apply(pipeline.Event(msg))
		var cmd tea.Cmd
		if m.total > 0 {
			cmd = m.bar.SetPercent(float64(m.processed) / float64(m.total))
		}
		return m, tea.Batch(cmd, m.waitForEvent())
	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) apply(ev pipeline.Event) {
	m.stage = ev.State
	if ev.State == pipeline.StateAborted {
		m.aborted = true
	}
	if ev.Item != "" {
		m.lastItem = ev.Item
	}
	if ev.Processed > 0 {
		m.processed = ev.Processed
	}
	if ev.Total > 0 {
		m.total = ev.Total
	}
	if ev.Err != nil {
		name := ev.Item
		if name == "" {
			name = StageLabel(ev.State)
		}
		m.errs = append(m.errs, fmt.Sprintf("%s: %v", name, ev.Err))
	} else if ev.Kind == pipeline.KindLookup && ev.Item != "" {
		m.errs = append(m.errs, fmt.Sprintf("%s: %s", ev.Item, ev.Message))
	}
}

func (m *ProgressModel) View() string {
	header := m.theme.HeaderStyle().Width(m.width).Render("dualmux")

	icon := m.theme.Icon(stageIcons[m.stage])
	stageLine := strings.TrimSpace(icon + " " + StageLabel(m.stage))

	info := ""
	if m.total > 0 {
		info = fmt.Sprintf("Items: %d/%d", m.processed, m.total)
	}

	statusText := stageLine
	if m.lastItem != "" {
		statusText = stageLine + " · " + m.lastItem
	}
	statusText = runewidth.Truncate(statusText, max(m.width-2, 10), "…")
	status := m.theme.StatusBarStyle().Width(m.width).Render(statusText)

	sections := []string{header, stageLine, m.bar.View()}
	if info != "" {
		sections = append(sections, info)
	}

	if len(m.errs) > 0 {
		lines := make([]string, 0, len(m.errs)+1)
		lines = append(lines, fmt.Sprintf("Warnings: %d", len(m.errs)))
		shown := m.errs
		if maxLines := max(m.height-8, 1); len(shown) > maxLines {
			shown = shown[len(shown)-maxLines:]
		}
		for _, e := range shown {
			lines = append(lines, "• "+runewidth.Truncate(e, max(m.width-4, 10), "…"))
		}
		sections = append(sections, m.theme.ErrorStyle().Render(strings.Join(lines, "\n")))
	}

	sections = append(sections, status)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Aborted reports whether the observed run ended fatally.
func (m *ProgressModel) Aborted() bool { return m.aborted }

// Errs returns the failure lines collected from the event stream.
func (m *ProgressModel) Errs() []string { return m.errs }
