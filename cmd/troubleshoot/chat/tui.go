package chatcmder

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/troubleshoot/pkg/client"
	"github.com/papercomputeco/troubleshoot/pkg/llm"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

const helpText = "enter send • pgup/pgdn scroll • esc quit"

type entry struct {
	role string
	text string
}

type replyMsg string

type errMsg struct{ err error }

type model struct {
	ctx     context.Context
	session *client.Session

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	style    string

	transcript []entry
	pending    string
	waiting    bool
	err        error

	width int
	ready bool
}

func runTUI(ctx context.Context, session *client.Session, in io.Reader, out io.Writer) error {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	p := tea.NewProgram(newModel(ctx, session, style),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func newModel(ctx context.Context, session *client.Session, style string) model {
	input := textinput.New()
	input.Placeholder = "Describe what the car is doing..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctx:     ctx,
		session: session,
		input:   input,
		spinner: sp,
		style:   style,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case replyMsg:
		m.waiting = false
		m.pending = ""
		m.transcript = append(m.transcript, entry{role: llm.RoleAssistant, text: string(msg)})
		m.refresh()
		return m, nil

	case errMsg:
		// The session has already dropped the failed turn; hand the text
		// back for editing.
		m.waiting = false
		m.err = msg.err
		if n := len(m.transcript); n > 0 && m.transcript[n-1].role == llm.RoleUser {
			m.transcript = m.transcript[:n-1]
		}
		m.input.SetValue(m.pending)
		m.input.CursorEnd()
		m.pending = ""
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}

	m.input.Reset()
	m.pending = text
	m.waiting = true
	m.err = nil
	m.transcript = append(m.transcript, entry{role: llm.RoleUser, text: text})
	m.refresh()

	return m, tea.Batch(m.send(text), m.spinner.Tick)
}

func (m model) send(text string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		reply, err := session.Send(ctx, text)
		if err != nil {
			return errMsg{err: err}
		}
		return replyMsg(reply)
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  starting..."
	}
	return m.viewport.View() + "\n" + m.status() + "\n" + m.input.View()
}

func (m model) status() string {
	switch {
	case m.waiting:
		return m.spinner.View() + statusStyle.Render(ansi.Truncate(" waiting for a reply", m.width-2, "…"))
	case m.err != nil:
		return errorStyle.Render(ansi.Truncate("error: "+m.err.Error(), m.width, "…"))
	default:
		return statusStyle.Render(ansi.Truncate(helpText, m.width, "…"))
	}
}

// resize lays out the viewport above a one-line status and the input.
func (m *model) resize(width, height int) {
	m.width = width

	vh := height - 2
	if vh < 1 {
		vh = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vh)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vh
	}

	m.input.Width = width - lipgloss.Width(m.input.Prompt) - 1

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, e := range m.transcript {
		if e.role == llm.RoleUser {
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(m.width).Render(e.text))
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(assistantStyle.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(m.render(e.text))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *model) render(text string) string {
	if m.renderer == nil {
		return text + "\n\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n\n"
	}
	return out
}
