package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// logMsg carries one output line for the scrollback viewport, plus the
// channel to keep draining for multi-line command output.
type logMsg struct {
	line string
	ok   bool
	more chan string
}

// statusTickMsg refreshes the header.
type statusTickMsg time.Time

type model struct {
	ctx     context.Context
	console *Console

	input  textinput.Model
	vp     viewport.Model
	logs   []string
	width  int
	height int
}

func newModel(ctx context.Context, c *Console) *model {
	ti := textinput.New()
	ti.Placeholder = "command (help for list)"
	ti.Prompt = promptStyle.Render("formation> ")
	ti.Focus()
	return &model{
		ctx:     ctx,
		console: c,
		input:   ti,
		vp:      viewport.New(0, 0),
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, statusTick())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 4
		m.refresh()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd == "quit" || cmd == "exit" {
				return m, tea.Quit
			}
			if cmd != "" {
				m.append("> " + cmd)
				return m, m.runCommand(cmd)
			}
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	case logMsg:
		if msg.ok {
			m.append(msg.line)
			return m, waitForLine(msg.more)
		}
	case statusTickMsg:
		return m, statusTick()
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// runCommand executes a console command off the UI goroutine and streams
// its output lines back as messages.
func (m *model) runCommand(cmd string) tea.Cmd {
	lines := make(chan string, 16)
	go func() {
		m.console.dispatch(m.ctx, cmd, func(line string) { lines <- line })
		close(lines)
	}()
	return waitForLine(lines)
}

func waitForLine(ch chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		return logMsg{line: line, ok: ok, more: ch}
	}
}

func (m *model) append(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > 500 {
		m.logs = m.logs[len(m.logs)-500:]
	}
	m.refresh()
}

func (m *model) refresh() {
	content := strings.Join(m.logs, "\n")
	if m.width > 0 {
		content = wordwrap.String(content, m.width)
	}
	m.vp.SetContent(content)
	m.vp.GotoBottom()
}

func (m *model) header() string {
	st := m.console.coord.Status()
	state := idleStyle.Render("idle")
	if st.Active {
		state = activeStyle.Render("active")
	}
	return headerStyle.Render("formationctl") + "  " + state + "  " +
		fmt.Sprintf("pattern=%s center=(%.1f,%.1f,%.1f) spacing=%.1fm connected=%d/%d",
			st.Pattern, st.Center.X, st.Center.Y, st.Center.Z, st.SpacingM, st.Connected, st.Vehicles)
}

func (m *model) View() string {
	return m.header() + "\n\n" + m.vp.View() + "\n" + m.input.View()
}
