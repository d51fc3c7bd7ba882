package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"contextiq/internal/helper"
	"contextiq/internal/models"
	"contextiq/internal/parser"
	"contextiq/internal/session"
)

// SessionPort is the TUI-facing subset of the session.
type SessionPort interface {
	Process(ctx context.Context, doc parser.Document) (int, error)
	Ask(ctx context.Context, question string, k int) (models.Turn, error)
	Reset()
	ClearHistory()
	History() []models.Turn
	State() session.State
	Document() string
}

type processedMsg struct {
	chunks int
	err    error
}

type answerMsg struct {
	turn models.Turn
	err  error
}

// FileChangedMsg asks the model to re-upload its document.
type FileChangedMsg struct{}

// Options configures the slider range and source display.
type Options struct {
	Path        string
	TopK        int
	MaxTopK     int
	SourceWidth int
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	session  SessionPort
	opts     Options
	input    textinput.Model
	viewport viewport.Model
	k        int
	status   string
	busy     bool
	ready    bool
	reload   bool // file changed while busy
}

func New(ctx context.Context, s SessionPort, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	opts.MaxTopK = max(opts.MaxTopK, 1)
	k := min(max(opts.TopK, 1), opts.MaxTopK)

	return Model{
		ctx:      ctx,
		session:  s,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(0, 0),
		k:        k,
		status:   "Processing document...",
		busy:     opts.Path != "",
	}
}

func (m Model) Init() tea.Cmd {
	if m.opts.Path == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.processCmd())
}

func (m Model) processCmd() tea.Cmd {
	path := m.opts.Path
	return func() tea.Msg {
		doc, err := parser.ReadFile(path)
		if err != nil {
			return processedMsg{err: err}
		}
		n, err := m.session.Process(m.ctx, doc)
		return processedMsg{chunks: n, err: err}
	}
}

func (m Model) askCmd(question string, k int) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.session.Ask(m.ctx, question, k)
		return answerMsg{turn: turn, err: err}
	}
}

// pendingReload starts the re-processing deferred by a file change that
// arrived while busy.
func (m *Model) pendingReload() tea.Cmd {
	if !m.reload {
		return nil
	}
	m.reload = false
	m.busy = true
	m.status = "Document changed, re-processing..."
	return m.processCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, slider, status, input
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-hh)
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case processedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Document processed successfully! Created %d chunks.", msg.chunks)
		}
		m.viewport.SetContent(m.renderHistory())
		cmd := m.pendingReload()
		return m, cmd

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered using %d source(s).", msg.turn.NumSources)
			m.input.SetValue("")
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoTop()
		cmd := m.pendingReload()
		return m, cmd

	case FileChangedMsg:
		if m.opts.Path == "" {
			return m, nil
		}
		if m.busy {
			m.reload = true
			return m, nil
		}
		m.busy = true
		m.status = "Document changed, re-processing..."
		return m, m.processCmd()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := m.input.Value()
			if strings.TrimSpace(q) == "" {
				m.status = session.ErrEmptyQuestion.Error()
				return m, nil
			}
			if m.session.State() != session.StateReady {
				m.status = "Please upload and process a document first."
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Thinking (k=%d)...", m.k)
			return m, m.askCmd(q, m.k)
		case "tab":
			m.k = min(m.k+1, m.opts.MaxTopK)
			return m, nil
		case "shift+tab":
			m.k = max(m.k-1, 1)
			return m, nil
		case "ctrl+l":
			m.session.ClearHistory()
			m.status = "History cleared."
			m.viewport.SetContent(m.renderHistory())
			return m, nil
		case "ctrl+r":
			if m.busy {
				return m, nil
			}
			m.session.Reset()
			m.status = "Session reset. Press ctrl+o to upload the document again."
			m.viewport.SetContent(m.renderHistory())
			return m, nil
		case "ctrl+o":
			if m.busy || m.opts.Path == "" {
				return m, nil
			}
			m.busy = true
			m.status = "Processing document..."
			return m, m.processCmd()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	doc := m.session.Document()
	if doc == "" {
		doc = "no document"
	}
	header := lipgloss.NewStyle().Bold(true).Render("ContextIQ") + "  " +
		mutedStyle.Render(fmt.Sprintf("%s · %s", doc, m.session.State()))
	slider := mutedStyle.Render(fmt.Sprintf("Number of context chunks: %s  (tab/shift+tab)", renderSlider(m.k, m.opts.MaxTopK)))
	history := historyBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + slider + "\n" + history + "\n" + input + "\n" + status
}

func renderSlider(k, maxK int) string {
	return fmt.Sprintf("[%s%s] %d", strings.Repeat("█", k), strings.Repeat("░", maxK-k), k)
}

// renderHistory lists turns newest first.
func (m Model) renderHistory() string {
	turns := m.session.History()
	if len(turns) == 0 {
		return "No questions yet."
	}

	var b strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		b.WriteString(questionStyle.Render("Q: " + t.Question))
		b.WriteString("\n")
		b.WriteString("A: " + t.Answer)
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Sources (%d):", t.NumSources)))
		b.WriteString("\n")
		for j, src := range t.Sources {
			fmt.Fprintf(&b, "  %d. %s\n", j+1, helper.Truncate(src, m.opts.SourceWidth))
		}
		if i > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
