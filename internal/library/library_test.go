package library

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"librag/internal/domain"
	"librag/internal/store/sqlite"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return r.err
}

func newManager(t *testing.T) (*Manager, *sqlite.Store, *countingRefresher) {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	r := &countingRefresher{}
	return NewManager(s, r, WithClock(func() time.Time { return fixedNow })), s, r
}

func strp(s string) *string { return &s }

func TestBorrowDecrementsAndRecords(t *testing.T) {
	m, _, r := newManager(t)
	ctx := context.Background()
	b, err := m.AddBook(ctx, domain.Book{Title: "1984", Author: "George Orwell", Copies: 3})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	user := domain.User{Name: "Alice", College: "MIT", IDEmail: "alice@mit.edu", Phone: "555-0100"}
	tx, err := m.Borrow(ctx, b.ID, user)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if tx.ID != 1 || tx.Action != domain.ActionBorrow || tx.User != user || !tx.Timestamp.Equal(fixedNow) {
		t.Errorf("transaction = %+v", tx)
	}
	got, _ := m.Book(ctx, b.ID)
	if got.Copies != 2 {
		t.Errorf("copies = %d, want 2", got.Copies)
	}
	if r.calls != 2 {
		t.Errorf("refreshes = %d, want 2 (add + borrow)", r.calls)
	}
}

func TestBorrowWithNoCopiesChangesNothing(t *testing.T) {
	m, _, r := newManager(t)
	ctx := context.Background()
	b, _ := m.AddBook(ctx, domain.Book{Title: "Dune", Author: "Frank Herbert", Copies: 0})
	r.calls = 0

	_, err := m.Borrow(ctx, b.ID, domain.User{Name: "Bob"})
	if !errors.Is(err, domain.ErrNoCopiesAvailable) {
		t.Fatalf("err = %v, want ErrNoCopiesAvailable", err)
	}
	txs, _ := m.Transactions(ctx, 0)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
	got, _ := m.Book(ctx, b.ID)
	if got.Copies != 0 {
		t.Errorf("copies = %d, want 0", got.Copies)
	}
	if r.calls != 0 {
		t.Errorf("refreshes = %d, want 0", r.calls)
	}
}

func TestBorrowUnknownBook(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Borrow(context.Background(), 42, domain.User{Name: "Bob"})
	if !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestReturnHasNoUpperBound(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	b, _ := m.AddBook(ctx, domain.Book{Title: "Emma", Author: "Jane Austen", Copies: 1})
	for i := 0; i < 3; i++ {
		if _, err := m.Return(ctx, b.ID, domain.User{Name: "Carol"}); err != nil {
			t.Fatalf("return %d: %v", i, err)
		}
	}
	got, _ := m.Book(ctx, b.ID)
	if got.Copies != 4 {
		t.Errorf("copies = %d, want 4", got.Copies)
	}
}

func TestMutationSurvivesRefreshFailure(t *testing.T) {
	m, _, r := newManager(t)
	r.err = errors.New("embedding backend down")
	b, err := m.AddBook(context.Background(), domain.Book{Title: "Ulysses", Author: "James Joyce", Copies: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if b.ID != 1 {
		t.Errorf("id = %d, want 1", b.ID)
	}
}

func TestAddEditRoundTrip(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	orig := domain.Book{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Description: "Jazz age", Tags: "classics", Copies: 2}
	added, err := m.AddBook(ctx, orig)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	edited, err := m.EditBook(ctx, added.ID, domain.BookPatch{Tags: strp("classics, romance")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	want := orig
	want.ID = added.ID
	want.Tags = "classics, romance"
	if edited != want {
		t.Fatalf("edited = %+v, want %+v", edited, want)
	}
	books, _ := m.Books(ctx)
	if len(books) != 1 || books[0] != want {
		t.Fatalf("catalog = %+v", books)
	}
}

func TestEditValidation(t *testing.T) {
	m, _, r := newManager(t)
	ctx := context.Background()
	if _, err := m.EditBook(ctx, 9, domain.BookPatch{Title: strp("x")}); !errors.Is(err, domain.ErrBookNotFound) {
		t.Errorf("missing book err = %v", err)
	}
	b, _ := m.AddBook(ctx, domain.Book{Title: "Emma", Copies: 1})
	if _, err := m.EditBook(ctx, b.ID, domain.BookPatch{Title: strp("  ")}); !errors.Is(err, domain.ErrInvalidBook) {
		t.Errorf("blank title err = %v", err)
	}
	neg := -1
	if _, err := m.EditBook(ctx, b.ID, domain.BookPatch{Copies: &neg}); !errors.Is(err, domain.ErrInvalidBook) {
		t.Errorf("negative copies err = %v", err)
	}
	r.calls = 0
	if _, err := m.EditBook(ctx, b.ID, domain.BookPatch{}); err != nil {
		t.Errorf("empty patch err = %v", err)
	}
	if r.calls != 0 {
		t.Errorf("empty patch refreshed the index")
	}
}

func TestAddBookValidation(t *testing.T) {
	m, _, _ := newManager(t)
	if _, err := m.AddBook(context.Background(), domain.Book{Title: " "}); !errors.Is(err, domain.ErrInvalidBook) {
		t.Errorf("err = %v", err)
	}
	if _, err := m.AddBook(context.Background(), domain.Book{Title: "x", Copies: -2}); !errors.Is(err, domain.ErrInvalidBook) {
		t.Errorf("err = %v", err)
	}
}

func TestExportTransactionsCSV(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	b, _ := m.AddBook(ctx, domain.Book{Title: "1984", Copies: 1})
	m.Borrow(ctx, b.ID, domain.User{Name: "Doe, Jane", College: "UCL"})
	m.Return(ctx, b.ID, domain.User{Name: "Doe, Jane", College: "UCL"})

	var buf bytes.Buffer
	if err := m.ExportTransactionsCSV(ctx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "transaction_id" || rows[1][2] != "borrow" || rows[2][2] != "return" {
		t.Errorf("rows = %q", rows)
	}
	if rows[1][3] != "Doe, Jane" || rows[1][7] != "2025-03-10T12:00:00Z" {
		t.Errorf("row = %q", rows[1])
	}
}

func TestTransactionsLimit(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	b, _ := m.AddBook(ctx, domain.Book{Title: "1984", Copies: 10})
	for i := 0; i < 4; i++ {
		m.Borrow(ctx, b.ID, domain.User{Name: "Alice"})
	}
	txs, err := m.Transactions(ctx, 2)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 || txs[0].ID != 3 || txs[1].ID != 4 {
		t.Fatalf("transactions = %+v", txs)
	}
}

type failingBatchStore struct {
	*sqlite.Store
}

func (failingBatchStore) InsertBooks(context.Context, []domain.Book) ([]int64, error) {
	return nil, errors.New("disk full")
}

func TestSeedFailureLeavesCatalogEmpty(t *testing.T) {
	_, s, r := newManager(t)
	ctx := context.Background()
	broken := NewManager(failingBatchStore{s}, r)
	if _, err := broken.Seed(ctx); err == nil {
		t.Fatal("seed succeeded")
	}
	if r.calls != 0 {
		t.Errorf("refreshes = %d, want 0", r.calls)
	}

	// A retry against a healthy store still seeds.
	m := NewManager(s, r)
	n, err := m.Seed(ctx)
	if err != nil || n != len(SampleBooks) {
		t.Fatalf("retry seed = %d, %v", n, err)
	}
}

func TestSeedOnlyFillsEmptyCatalog(t *testing.T) {
	m, _, r := newManager(t)
	ctx := context.Background()
	n, err := m.Seed(ctx)
	if err != nil || n != len(SampleBooks) {
		t.Fatalf("seed = %d, %v", n, err)
	}
	if r.calls != 1 {
		t.Errorf("refreshes = %d, want 1", r.calls)
	}
	n, err = m.Seed(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second seed = %d, %v", n, err)
	}
	books, _ := m.Books(ctx)
	if len(books) != len(SampleBooks) || books[1].Title != "1984" || books[1].ID != 2 {
		t.Fatalf("books = %+v", books)
	}
}
