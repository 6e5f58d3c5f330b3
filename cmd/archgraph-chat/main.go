package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archgraph/archgraph/pkg/client"
	"github.com/archgraph/archgraph/pkg/hub"
	"github.com/archgraph/archgraph/pkg/model"
)

const viewportHeight = 20

// Styles
var (
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	personaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)
)

type wsEventMsg hub.Event

type wsClosedMsg struct{}

type chatModel struct {
	input    textinput.Model
	viewport viewport.Model
	sub      *client.Subscription
	lines    []string
	version  int64
	err      error
	ready    bool
}

func initialModel(sub *client.Subscription) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Describe a change, or /view /save /stats /reset"
	ti.Focus()
	ti.Width = 96

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return chatModel{input: ti, viewport: vp, sub: sub}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listen(m.sub))
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			if err := m.send(text); err != nil {
				m.err = err
			} else {
				m.appendLine(userStyle.Render("you") + " " + text)
			}
			return m, nil
		}

	case wsEventMsg:
		m.handleEvent(hub.Event(msg))
		cmds = append(cmds, listen(m.sub))

	case wsClosedMsg:
		m.err = fmt.Errorf("connection to daemon lost")

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.input.Width = msg.Width - 4
		m.ready = true
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// send turns slash commands into hub commands; everything else is a
// chat message.
func (m *chatModel) send(text string) error {
	if !strings.HasPrefix(text, "/") {
		return m.sub.Send(hub.Command{Type: hub.CommandChat, Text: text})
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/view":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /view hierarchy|functional|requirements|allocation|usecase")
		}
		if _, ok := model.ParseView(fields[1]); !ok {
			return fmt.Errorf("unknown view %q", fields[1])
		}
		return m.sub.Send(hub.Command{Type: hub.CommandView, View: fields[1]})
	case "/save":
		return m.sub.Send(hub.Command{Type: hub.CommandSave})
	case "/stats":
		return m.sub.Send(hub.Command{Type: hub.CommandStats})
	case "/reset":
		return m.sub.Send(hub.Command{Type: hub.CommandReset})
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
}

func (m *chatModel) handleEvent(e hub.Event) {
	m.err = nil
	switch e.Type {
	case hub.EventSnapshot:
		m.version = e.Version
		m.ready = true
	case hub.EventDelta:
		m.version = e.Version
		m.appendLine(subtleStyle.Render(fmt.Sprintf("graph updated to v%d", e.Version)))
	case hub.EventChat:
		who := e.Persona
		if who == "" {
			who = "daemon"
		}
		m.appendLine(personaStyle.Render(who) + " " + e.Text)
	case hub.EventStats:
		data, err := json.MarshalIndent(e.Stats, "", "  ")
		if err == nil {
			m.appendLine(subtleStyle.Render(string(data)))
		}
	case hub.EventError:
		m.appendLine(errorStyle.Render("error: " + e.Text))
	}
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	header := headerStyle.Render(fmt.Sprintf("archgraph chat • v%d", m.version))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render("Online")
	}
	footer := subtleStyle.Render(fmt.Sprintf("%s • esc to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.input.View(), footer)
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

	p := tea.NewProgram(initialModel(sub), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
