// Package library applies catalog and ledger mutations and keeps the
// semantic index in step with them.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"librag/internal/domain"
	"librag/internal/logging"
)

// Store is the record store the manager mutates.
type Store interface {
	domain.CatalogStore
	domain.LedgerStore
	// InsertBooks writes a batch of books atomically.
	InsertBooks(ctx context.Context, books []domain.Book) ([]int64, error)
	// Circulate adjusts copies and appends the transaction atomically.
	Circulate(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
	LatestTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// Refresher rebuilds the index after a committed mutation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Manager struct {
	store  Store
	index  Refresher
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager builds a manager. index may be nil when no index is kept in
// this process (for example one-shot CLI mutations).
func NewManager(store Store, index Refresher, opts ...Option) *Manager {
	m := &Manager{store: store, index: index, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	m.logger = logging.Default(m.logger).With("component", "library")
	return m
}

// Books lists the catalog in id order.
func (m *Manager) Books(ctx context.Context) ([]domain.Book, error) {
	return m.store.ListBooks(ctx)
}

// Book returns one book or domain.ErrBookNotFound.
func (m *Manager) Book(ctx context.Context, id int64) (domain.Book, error) {
	b, err := m.store.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if b == nil {
		return domain.Book{}, fmt.Errorf("%w: %d", domain.ErrBookNotFound, id)
	}
	return *b, nil
}

// Transactions returns the newest limit transactions oldest first, or the
// whole ledger when limit <= 0.
func (m *Manager) Transactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return m.store.ListTransactions(ctx)
	}
	return m.store.LatestTransactions(ctx, limit)
}

// Borrow takes one copy of a book out for user. A book with no copies left
// is rejected with domain.ErrNoCopiesAvailable and nothing is written.
func (m *Manager) Borrow(ctx context.Context, bookID int64, user domain.User) (domain.Transaction, error) {
	return m.circulate(ctx, bookID, domain.ActionBorrow, user)
}

// Return puts one copy of a book back. The copy count has no upper bound.
func (m *Manager) Return(ctx context.Context, bookID int64, user domain.User) (domain.Transaction, error) {
	return m.circulate(ctx, bookID, domain.ActionReturn, user)
}

func (m *Manager) circulate(ctx context.Context, bookID int64, action domain.Action, user domain.User) (domain.Transaction, error) {
	t, err := m.store.Circulate(ctx, domain.Transaction{
		BookID:    bookID,
		Action:    action,
		User:      user,
		Timestamp: m.now(),
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	m.logger.Info("circulation recorded",
		"transaction_id", t.ID, "book_id", bookID, "action", action, "user", user.Name)
	m.refresh(ctx, string(action))
	return t, nil
}

// AddBook inserts b and returns it with its assigned id.
func (m *Manager) AddBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return domain.Book{}, fmt.Errorf("%w: title is required", domain.ErrInvalidBook)
	}
	if b.Copies < 0 {
		return domain.Book{}, fmt.Errorf("%w: copies must not be negative", domain.ErrInvalidBook)
	}
	id, err := m.store.InsertBook(ctx, b)
	if err != nil {
		return domain.Book{}, err
	}
	b.ID = id
	m.logger.Info("book added", "book_id", id, "title", b.Title)
	m.refresh(ctx, "add")
	return b, nil
}

// EditBook overwrites the fields set in patch and returns the stored book.
func (m *Manager) EditBook(ctx context.Context, id int64, patch domain.BookPatch) (domain.Book, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Book{}, fmt.Errorf("%w: title is required", domain.ErrInvalidBook)
	}
	if patch.Copies != nil && *patch.Copies < 0 {
		return domain.Book{}, fmt.Errorf("%w: copies must not be negative", domain.ErrInvalidBook)
	}
	if err := m.store.UpdateBook(ctx, id, patch); err != nil {
		return domain.Book{}, err
	}
	b, err := m.Book(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if !patch.Empty() {
		m.logger.Info("book updated", "book_id", id)
		m.refresh(ctx, "edit")
	}
	return b, nil
}

// refresh rebuilds the index after a committed mutation. The mutation
// stands even when the rebuild fails; the previous generation keeps
// serving until the next successful refresh.
func (m *Manager) refresh(ctx context.Context, cause string) {
	if m.index == nil {
		return
	}
	if err := m.index.Refresh(ctx); err != nil {
		m.logger.Warn("index refresh after mutation failed", "cause", cause, "error", err)
	}
}
