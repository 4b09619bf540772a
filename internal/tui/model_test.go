package tui

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"librag/internal/domain"
	"librag/internal/service"
)

type askerFunc func(ctx context.Context, q string) (service.Result, error)

func (f askerFunc) Ask(ctx context.Context, q string) (service.Result, error) { return f(ctx, q) }

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func typeAndSubmit(t *testing.T, m Model, q string) (Model, tea.Msg) {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	if m.pending != q {
		t.Fatalf("pending = %q", m.pending)
	}
	return m, m.ask(q)()
}

func TestAskFlow(t *testing.T) {
	asker := askerFunc(func(_ context.Context, q string) (service.Result, error) {
		return service.Result{
			Query:  q,
			Answer: domain.Answer{Reasoning: "copies=2", Answer: "Yes. '1984' has 2 copies available."},
		}, nil
	})
	m := sized(New(asker, 0))
	m, msg := typeAndSubmit(t, m, "Is 1984 available?")

	next, _ := m.Update(msg)
	m = next.(Model)
	if m.pending != "" || len(m.history) != 1 {
		t.Fatalf("pending=%q history=%d", m.pending, len(m.history))
	}
	view := m.renderCurrent()
	if !strings.Contains(view, "2 copies available") {
		t.Errorf("view = %q", view)
	}
	if strings.Contains(view, "copies=2") {
		t.Errorf("reasoning shown before toggle")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if !strings.Contains(m.renderCurrent(), "copies=2") {
		t.Errorf("reasoning hidden after toggle")
	}
}

func TestAskError(t *testing.T) {
	asker := askerFunc(func(context.Context, string) (service.Result, error) {
		return service.Result{}, errors.New("upstream failure: timeout")
	})
	m := sized(New(asker, 0))
	m, msg := typeAndSubmit(t, m, "anything")
	next, _ := m.Update(msg)
	m = next.(Model)
	if !strings.HasPrefix(m.status, "Error:") {
		t.Errorf("status = %q", m.status)
	}
	if !strings.Contains(m.renderCurrent(), "Q 1/1: anything") {
		t.Errorf("view = %q", m.renderCurrent())
	}
}

func TestEnterIgnoredWhileWaiting(t *testing.T) {
	m := sized(New(askerFunc(func(context.Context, string) (service.Result, error) {
		return service.Result{}, nil
	}), 0))
	m, _ = typeAndSubmit(t, m, "first")
	m.input.SetValue("second")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || next.(Model).pending != "first" {
		t.Fatal("second question accepted while waiting")
	}
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Dune is out of stock. Emma has one copy.", "emma copy")
	if !strings.Contains(out, "Dune is out of stock.") {
		t.Errorf("out = %q", out)
	}
	if got := highlightBestSentence("- a\n- b", "a"); got != "- a\n- b" {
		t.Errorf("multi-line answer changed: %q", got)
	}

	tests := []struct {
		name, text, query string
	}{
		{"trailing clause", "1984 is available with 2 copies. Ask at the front desk", "is 1984 available"},
		{"decimal", "The Alchemist is popular. Average rating is 4.5 stars.", "average rating"},
		{"decimal at end", "Dune is out of stock. Rating is 4.5", "dune rating"},
		{"no match", "Nothing relevant here", "emma"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := highlightBestSentence(tt.text, tt.query)
			if got := ansiRe.ReplaceAllString(out, ""); got != tt.text {
				t.Errorf("text changed: %q, want %q", got, tt.text)
			}
			if strings.Contains(tt.text, "4.5") && !strings.Contains(out, "4.5") {
				t.Errorf("decimal split by styling: %q", out)
			}
		})
	}
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)
