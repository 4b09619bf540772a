// Package tui is the interactive chat front end for library questions.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"librag/internal/service"
)

// Asker is the TUI-facing subset of the query service.
type Asker interface {
	Ask(ctx context.Context, query string) (service.Result, error)
}

type exchange struct {
	result service.Result
	err    error
}

type answerMsg exchange

// Model is the Bubble Tea model for the chat application.
type Model struct {
	asker         Asker
	timeout       time.Duration
	input         textinput.Model
	viewport      viewport.Model
	spinner       spinner.Model
	history       []exchange
	cursor        int
	pending       string
	showReasoning bool
	showContext   bool
	status        string
	ready         bool
}

// New creates a new chat model. timeout bounds each question; zero leaves
// it to the service.
func New(asker Asker, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about books, availability or borrowing activity"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		asker:    asker,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Enter asks, tab toggles reasoning, ctrl+t toggles context.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		res, err := m.asker.Ask(ctx, q)
		if res.Query == "" {
			res.Query = q
		}
		return answerMsg{result: res, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.pending = ""
		m.history = append(m.history, exchange(msg))
		m.cursor = len(m.history) - 1
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered %q", msg.result.Query)
		}
		m.viewport.SetContent(m.renderCurrent())
		m.viewport.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != "" {
				return m, nil
			}
			m.pending = q
			m.input.SetValue("")
			m.status = fmt.Sprintf("Asking %q", q)
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "tab":
			m.showReasoning = !m.showReasoning
			m.viewport.SetContent(m.renderCurrent())
			return m, nil
		case "ctrl+t":
			m.showContext = !m.showContext
			m.viewport.SetContent(m.renderCurrent())
			return m, nil
		case "up":
			if len(m.history) > 0 {
				m.cursor = (m.cursor - 1 + len(m.history)) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "down":
			if len(m.history) > 0 {
				m.cursor = (m.cursor + 1) % len(m.history)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout and the selected exchange.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Library Assistant")
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.pending != "" {
		status = m.spinner.View() + " " + status
	}
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	ex := m.history[m.cursor]
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Q %d/%d: %s", m.cursor+1, len(m.history), ex.result.Query)))
	b.WriteString("\n\n")
	if ex.err != nil {
		b.WriteString(errorStyle.Render(ex.err.Error()))
		return b.String()
	}
	b.WriteString(highlightBestSentence(ex.result.Answer.Answer, ex.result.Query))
	if m.showReasoning {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Reasoning:\n" + ex.result.Answer.Reasoning))
	}
	if m.showContext {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(ex.result.Context))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?\n]+(?:[.!?]+(?:[^\s.!?][^.!?\n]*(?:[.!?]+|$))*|$)`)
)

// highlightBestSentence emphasizes the answer sentence sharing the most
// words with the question. Every other byte of text is kept as is, and
// multi-line answers are left alone.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" || strings.Contains(strings.TrimSpace(text), "\n") {
		return text
	}
	spans := sentenceRe.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	best, bestScore := -1, 0
	for i, sp := range spans {
		if score := tokenOverlapScore(qTokens, text[sp[0]:sp[1]]); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return text
	}
	start, end := spans[best][0], spans[best][1]
	// Leading blanks stay outside the styled span.
	for start < end && (text[start] == ' ' || text[start] == '\t') {
		start++
	}
	return text[:start] + highlightStyle.Render(text[start:end]) + text[end:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
