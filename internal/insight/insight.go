// Package insight derives analytical statements about the library directly
// from catalog and ledger contents.
package insight

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"librag/internal/domain"
	"librag/internal/logging"
)

// None is returned by Summary when no finding applies.
const None = "No insights available at this time."

// RecentWindow is how far back the recent-activity finding looks.
const RecentWindow = 7 * 24 * time.Hour

// LowStockThreshold is the highest copy count reported as low availability.
const LowStockThreshold = 1

// Generator computes findings. It is a pure function of its inputs apart
// from logging skipped records.
type Generator struct {
	logger *slog.Logger
}

func NewGenerator(logger *slog.Logger) *Generator {
	logger = logging.Default(logger)
	return &Generator{logger: logger.With("component", "insight")}
}

// Findings returns the findings in fixed order: most borrowed, low
// availability, recent activity. A finding whose condition is absent is
// omitted.
func (g *Generator) Findings(books []domain.Book, txs []domain.Transaction, now time.Time) []string {
	catalog := make(map[int64]domain.Book, len(books))
	for _, b := range books {
		catalog[b.ID] = b
	}
	valid := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if _, ok := catalog[t.BookID]; !ok {
			g.logger.Debug("skipping transaction",
				"transaction_id", t.ID, "book_id", t.BookID, "error", domain.ErrInvalidReference)
			continue
		}
		valid = append(valid, t)
	}

	var out []string
	if s, ok := mostBorrowed(catalog, valid); ok {
		out = append(out, s)
	}
	if s, ok := lowAvailability(books); ok {
		out = append(out, s)
	}
	if s, ok := recentActivity(valid, now); ok {
		out = append(out, s)
	}
	return out
}

// Summary joins the findings one per line, or returns None.
func (g *Generator) Summary(books []domain.Book, txs []domain.Transaction, now time.Time) string {
	findings := g.Findings(books, txs, now)
	if len(findings) == 0 {
		return None
	}
	return strings.Join(findings, "\n")
}

func mostBorrowed(catalog map[int64]domain.Book, txs []domain.Transaction) (string, bool) {
	counts := make(map[int64]int)
	for _, t := range txs {
		if t.Action == domain.ActionBorrow {
			counts[t.BookID]++
		}
	}
	var (
		topID    int64
		topCount int
	)
	for id, n := range counts {
		if n > topCount || (n == topCount && id < topID) {
			topID, topCount = id, n
		}
	}
	if topCount == 0 {
		return "", false
	}
	b := catalog[topID]
	return fmt.Sprintf("Most borrowed book: '%s' by %s (Borrowed %d times, currently %s)",
		b.Title, b.Author, topCount, availability(b.Copies)), true
}

func availability(copies int) string {
	if copies <= 0 {
		return "out of stock"
	}
	return fmt.Sprintf("available with %d copies", copies)
}

func lowAvailability(books []domain.Book) (string, bool) {
	var parts []string
	for _, b := range books {
		if b.Copies > LowStockThreshold {
			continue
		}
		status := "out of stock"
		if b.Copies > 0 {
			status = fmt.Sprintf("low stock (only %d %s left)", b.Copies, plural(b.Copies, "copy", "copies"))
		}
		parts = append(parts, fmt.Sprintf("'%s' - %s", b.Title, status))
	}
	if len(parts) == 0 {
		return "", false
	}
	return "Books with low availability: " + strings.Join(parts, "; "), true
}

func recentActivity(txs []domain.Transaction, now time.Time) (string, bool) {
	since := now.Add(-RecentWindow)
	var borrowed, returned int
	for _, t := range txs {
		if t.Timestamp.Before(since) {
			continue
		}
		switch t.Action {
		case domain.ActionBorrow:
			borrowed++
		case domain.ActionReturn:
			returned++
		}
	}
	if borrowed+returned == 0 {
		return "", false
	}
	return fmt.Sprintf("Last 7 days: %d books borrowed, %d books returned", borrowed, returned), true
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
