package tui

import (
	"fmt"

	"dualmux/internal/pipeline"
	"dualmux/internal/tui/theme"

	"github.com/Digital-Shane/treeview"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PlannedOp is one operation a dry run would perform.
type PlannedOp struct {
	Stage  pipeline.State
	Item   string
	Action string
}

// CollectPlan drains a preview run's event stream into the planned
// operations, ordered as the pipeline would perform them.
func CollectPlan(events <-chan pipeline.Event) []PlannedOp {
	var plan []PlannedOp
	for ev := range events {
		if ev.Item == "" {
			continue
		}
		op := PlannedOp{Stage: ev.State, Item: ev.Item, Action: ev.Message}
		if ev.Err != nil {
			op.Action = ev.Err.Error()
		}
		plan = append(plan, op)
	}
	return plan
}

// PreviewModel shows a dry run's planned operations as a navigable
// stage → file tree.
type PreviewModel struct {
	*treeview.TuiTreeModel[PlannedOp]
	theme  theme.Theme
	width  int
	height int
}

// stageOrder fixes the display order of preview groups.
var stageOrder = []pipeline.State{
	pipeline.StateRename,
	pipeline.StateExtract,
	pipeline.StateMerge,
	pipeline.StateFixNames,
	pipeline.StateCatalogRename,
}

// NewPreviewModel groups the plan by stage into a treeview.
func NewPreviewModel(plan []PlannedOp, th theme.Theme) *PreviewModel {
	byStage := make(map[pipeline.State][]PlannedOp, len(stageOrder))
	for _, op := range plan {
		byStage[op.Stage] = append(byStage[op.Stage], op)
	}

	var stageNodes []*treeview.Node[PlannedOp]
	for _, stage := range stageOrder {
		ops := byStage[stage]
		if len(ops) == 0 {
			continue
		}
		children := make([]*treeview.Node[PlannedOp], 0, len(ops))
		for i, op := range ops {
			label := op.Item
			if op.Action != "" {
				label = fmt.Sprintf("%s → %s", op.Item, op.Action)
			}
			children = append(children, treeview.NewNode(fmt.Sprintf("%s/%d", stage, i), label, op))
		}
		stageNode := treeview.NewNode(string(stage),
			fmt.Sprintf("%s (%d)", StageLabel(stage), len(ops)),
			PlannedOp{Stage: stage})
		stageNode.SetChildren(children)
		stageNodes = append(stageNodes, stageNode)
	}

	tree := treeview.NewTree(stageNodes, treeview.WithExpandAll[PlannedOp]())

	m := &PreviewModel{theme: th, width: 80, height: 24}
	keyMap := treeview.DefaultKeyMap()
	keyMap.SearchStart = []string{}
	keyMap.Reset = []string{}
	m.TuiTreeModel = treeview.NewTuiTreeModel(tree,
		treeview.WithTuiWidth[PlannedOp](m.width),
		treeview.WithTuiHeight[PlannedOp](m.height-3),
		treeview.WithTuiAllowResize[PlannedOp](true),
		treeview.WithTuiDisableNavBar[PlannedOp](true),
		treeview.WithTuiKeyMap[PlannedOp](keyMap),
	)
	return m
}

func (m *PreviewModel) Init() tea.Cmd {
	return nil
}

func (m *PreviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		resized, cmd := m.TuiTreeModel.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height - 3})
		m.TuiTreeModel = resized.(*treeview.TuiTreeModel[PlannedOp])
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	treeModel, cmd := m.TuiTreeModel.Update(msg)
	m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[PlannedOp])
	return m, cmd
}

func (m *PreviewModel) View() string {
	header := m.theme.HeaderStyle().Width(m.width).Render(m.theme.Icon("preview") + " Planned operations (dry run)")
	status := m.theme.StatusBarStyle().Width(m.width).Render("↑/↓ navigate · enter expand · q quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.TuiTreeModel.View(), status)
}
