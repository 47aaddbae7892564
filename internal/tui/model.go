package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentx/internal/assistant"
	"agentx/internal/domain"
)

// ChatPort is the TUI-facing subset of the assistant.
type ChatPort interface {
	Ask(ctx context.Context, message string) (assistant.Reply, error)
	History() []domain.Turn
	Reset() error
}

// replyMsg carries the outcome of an asynchronous Ask.
type replyMsg struct {
	reply assistant.Reply
	err   error
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	chat     ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []domain.Turn
	header   string
	summary  string
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model. summary is shown under the header.
func New(chat ChatPort, header, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your evidence and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		chat:     chat,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		turns:    chat.History(),
		header:   header,
		summary:  summary,
		status:   "Ready. Ctrl+L clears the conversation, Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(message string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.chat.Ask(context.Background(), message)
		return replyMsg{reply: reply, err: err}
	}
}

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header+summary, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Answered at " + msg.reply.Timestamp.Format("15:04:05")
		}
		m.turns = m.chat.History()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlL:
			if m.waiting {
				return m, nil
			}
			if err := m.chat.Reset(); err != nil {
				m.status = "Could not save conversation: " + err.Error()
			} else {
				m.status = "Conversation cleared."
			}
			m.turns = nil
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.status = "Thinking..."
			m.turns = append(m.turns, domain.Turn{Role: domain.RoleUser, Content: q})
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.header)
	summary := summaryStyle.Render(m.summary)
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.turns, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderTranscript(turns []domain.Turn, width int) string {
	if len(turns) == 0 {
		return "No messages yet."
	}
	body := lipgloss.NewStyle().Width(max(10, width-2))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := userStyle.Render("You")
		content := t.Content
		if t.Role == domain.RoleAssistant {
			label = assistantStyle.Render("Agent")
			if strings.HasPrefix(content, "Error:") {
				content = errorStyle.Render(content)
			}
		}
		fmt.Fprintf(&b, "%s\n%s", label, body.Render(content))
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
