package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archgraph/archgraph/pkg/client"
	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/hub"
	"github.com/archgraph/archgraph/pkg/model"
)

const (
	viewportHeight = 24
	fetchTimeout   = 5 * time.Second
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)
)

// Views reachable from the keyboard, in key order 1-5.
var viewKeys = []model.View{
	model.ViewHierarchy,
	model.ViewFunctional,
	model.ViewRequirements,
	model.ViewAllocation,
	model.ViewUseCase,
}

type wsEventMsg hub.Event

type wsClosedMsg struct{}

type snapshotMsg struct {
	graph *model.GraphState
	err   error
}

type viewerModel struct {
	spinner  spinner.Model
	viewport viewport.Model
	api      *client.Client
	sub      *client.Subscription

	systemID string
	version  int64
	nodes    int
	edges    int
	view     model.View
	err      error
	ready    bool
}

func initialModel(api *client.Client, sub *client.Subscription) viewerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return viewerModel{spinner: s, viewport: vp, api: api, sub: sub}
}

func (m viewerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listen(m.sub), fetchSnapshot(m.api))
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "1", "2", "3", "4", "5":
			view := viewKeys[int(key[0]-'1')]
			return m, setView(m.api, view)
		case "g":
			return m, fetchSnapshot(m.api)
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case wsEventMsg:
		cmds = append(cmds, listen(m.sub))
		e := hub.Event(msg)
		switch e.Type {
		case hub.EventSnapshot, hub.EventDelta:
			m.version = e.Version
			if e.SystemID != "" {
				m.systemID = e.SystemID
			}
			// Deltas carry only the diff; re-fetch the full graph.
			cmds = append(cmds, fetchSnapshot(m.api))
		case hub.EventError:
			m.err = fmt.Errorf("%s", e.Text)
		}

	case wsClosedMsg:
		m.err = fmt.Errorf("connection to daemon lost")

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.ready = true
		m.systemID = msg.graph.SystemID
		m.version = msg.graph.Version
		m.nodes = len(msg.graph.Nodes)
		m.edges = len(msg.graph.Edges)
		m.view = msg.graph.CurrentView
		m.viewport.SetContent(renderGraph(msg.graph))

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 5
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m viewerModel) View() string {
	header := headerStyle.Render(fmt.Sprintf("archgraph • %s v%d • %s view", m.systemID, m.version, m.view))

	body := m.viewport.View()
	if !m.ready {
		body = fmt.Sprintf("\n  %s Waiting for the graph...\n", m.spinner.View())
	}

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Live • %d nodes, %d edges", m.nodes, m.edges))
	}
	footer := subtleStyle.Render(fmt.Sprintf("%s • %s views • %s refresh • %s quit",
		status, keyStyle.Render("1-5"), keyStyle.Render("g"), keyStyle.Render("q")))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderGraph lists nodes grouped by type, then edges, in stable order.
func renderGraph(g *model.GraphState) string {
	if g.Empty() {
		return subtleStyle.Render("The graph is empty. Talk to archgraph-chat to populate it.")
	}

	byType := make(map[model.NodeType][]*model.Node)
	for _, n := range g.Nodes {
		byType[n.Type] = append(byType[n.Type], n)
	}

	var b strings.Builder
	for _, t := range []model.NodeType{
		model.NodeSystem, model.NodeFunction, model.NodeRequirement,
		model.NodeData, model.NodeUseCase, model.NodeModule, model.NodeSchema,
	} {
		nodes := byType[t]
		if len(nodes) == 0 {
			continue
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].SemanticID < nodes[j].SemanticID })
		b.WriteString(keyStyle.Render(string(t)) + "\n")
		for _, n := range nodes {
			b.WriteString(fmt.Sprintf("  %-30s %s\n", n.SemanticID, n.Description))
		}
		b.WriteString("\n")
	}

	if len(g.Edges) > 0 {
		edges := make([]*model.Edge, 0, len(g.Edges))
		for _, e := range g.Edges {
			edges = append(edges, e)
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].SemanticID < edges[j].SemanticID })
		b.WriteString(keyStyle.Render("Edges") + "\n")
		for _, e := range edges {
			b.WriteString(fmt.Sprintf("  %s -%s-> %s\n", e.FromID, formate.EdgeCode(e.Type), e.ToID))
		}
	}
	return b.String()
}

// Commands

func listen(sub *client.Subscription) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-sub.Events
		if !ok {
			return wsClosedMsg{}
		}
		return wsEventMsg(e)
	}
}

func fetchSnapshot(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		g, err := api.Graph(ctx)
		return snapshotMsg{graph: g, err: err}
	}
}

func setView(api *client.Client, view model.View) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := api.SetView(ctx, view); err != nil {
			return snapshotMsg{err: err}
		}
		g, err := api.Graph(ctx)
		return snapshotMsg{graph: g, err: err}
	}
}

func main() {
	endpoint := os.Getenv("ARCHGRAPH_URL")
	c := client.NewClient(endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sub, err := c.Subscribe(ctx)
	cancel()
	if err != nil {
		fmt.Printf("Cannot reach archgraph-d: %v\n", err)
		os.Exit(1)
	}
	defer sub.Close()

	p := tea.NewProgram(initialModel(c, sub), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
