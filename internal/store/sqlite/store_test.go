package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"librag/internal/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestInsertAssignsSequentialIDs(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id1, err := s.InsertBook(ctx, domain.Book{Title: "The Alchemist", Author: "Paulo Coelho", Copies: 5})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id2, _ := s.InsertBook(ctx, domain.Book{Title: "1984", Author: "George Orwell", Copies: 3})
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d,%d; want 1,2", id1, id2)
	}
	books, err := s.ListBooks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 2 || books[0].Title != "The Alchemist" || books[1].Copies != 3 {
		t.Fatalf("books = %+v", books)
	}
}

func TestInsertRejectsNegativeCopies(t *testing.T) {
	s := tempStore(t)
	_, err := s.InsertBook(context.Background(), domain.Book{Title: "Bad", Copies: -1})
	if !errors.Is(err, domain.ErrInvalidBook) {
		t.Fatalf("err = %v, want ErrInvalidBook", err)
	}
}

func TestInsertBooksIsAllOrNothing(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	ids, err := s.InsertBooks(ctx, []domain.Book{
		{Title: "The Alchemist", Copies: 5},
		{Title: "1984", Copies: 3},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("ids = %v, want [1 2]", ids)
	}

	_, err = s.InsertBooks(ctx, []domain.Book{{Title: "Emma", Copies: 1}, {Title: "Bad", Copies: -1}})
	if !errors.Is(err, domain.ErrInvalidBook) {
		t.Fatalf("err = %v, want ErrInvalidBook", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.InsertBooks(ctx, []domain.Book{{Title: "Emma", Copies: 1}}); err == nil {
		t.Fatal("insert with cancelled context succeeded")
	}
	// Neither failed batch wrote anything.
	books, err := s.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("books = %+v, want the first batch only", books)
	}
}

func TestUpdateBookPartial(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.InsertBook(ctx, domain.Book{Title: "Dune", Author: "Frank Herbert", Description: "Spice", Tags: "sf", Copies: 2})

	if err := s.UpdateBook(ctx, id, domain.BookPatch{Tags: strp("science fiction, classics")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	b, err := s.GetBook(ctx, id)
	if err != nil || b == nil {
		t.Fatalf("get: %v", err)
	}
	want := domain.Book{ID: id, Title: "Dune", Author: "Frank Herbert", Description: "Spice", Tags: "science fiction, classics", Copies: 2}
	if *b != want {
		t.Errorf("book = %+v, want %+v", *b, want)
	}
}

func TestUpdateBookErrors(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.InsertBook(ctx, domain.Book{Title: "Emma", Copies: 1})

	tests := []struct {
		name  string
		id    int64
		patch domain.BookPatch
		want  error
	}{
		{"missing book", 999, domain.BookPatch{Title: strp("x")}, domain.ErrBookNotFound},
		{"missing book empty patch", 999, domain.BookPatch{}, domain.ErrBookNotFound},
		{"negative copies", id, domain.BookPatch{Copies: intp(-2)}, domain.ErrInvalidBook},
		{"empty patch on existing", id, domain.BookPatch{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateBook(ctx, tt.id, tt.patch)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGetBookMissing(t *testing.T) {
	s := tempStore(t)
	b, err := s.GetBook(context.Background(), 42)
	if err != nil || b != nil {
		t.Fatalf("GetBook = %v, %v; want nil, nil", b, err)
	}
}

func TestCirculateBorrowAndReturn(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.InsertBook(ctx, domain.Book{Title: "1984", Copies: 3})
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	tx, err := s.Circulate(ctx, domain.Transaction{BookID: id, Action: domain.ActionBorrow, User: domain.User{Name: "Asha"}, Timestamp: at})
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if tx.ID != 1 {
		t.Errorf("transaction id = %d, want 1", tx.ID)
	}
	b, _ := s.GetBook(ctx, id)
	if b.Copies != 2 {
		t.Errorf("copies = %d, want 2", b.Copies)
	}

	if _, err := s.Circulate(ctx, domain.Transaction{BookID: id, Action: domain.ActionReturn, Timestamp: at.Add(time.Hour)}); err != nil {
		t.Fatalf("return: %v", err)
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 || txs[0].Action != domain.ActionBorrow || txs[1].Action != domain.ActionReturn {
		t.Fatalf("transactions = %+v", txs)
	}
	if !txs[0].Timestamp.Equal(at) || txs[0].User.Name != "Asha" {
		t.Errorf("first transaction = %+v", txs[0])
	}
	if txs[1].ID <= txs[0].ID {
		t.Errorf("ids not increasing: %d, %d", txs[0].ID, txs[1].ID)
	}
}

func TestCirculateZeroCopiesWritesNothing(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.InsertBook(ctx, domain.Book{Title: "Dune", Copies: 0})

	_, err := s.Circulate(ctx, domain.Transaction{BookID: id, Action: domain.ActionBorrow, Timestamp: time.Now()})
	if !errors.Is(err, domain.ErrNoCopiesAvailable) {
		t.Fatalf("err = %v, want ErrNoCopiesAvailable", err)
	}
	b, _ := s.GetBook(ctx, id)
	if b.Copies != 0 {
		t.Errorf("copies = %d, want 0", b.Copies)
	}
	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
}

func TestCirculateUnknownBook(t *testing.T) {
	s := tempStore(t)
	_, err := s.Circulate(context.Background(), domain.Transaction{BookID: 7, Action: domain.ActionReturn, Timestamp: time.Now()})
	if !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestAdjustCopies(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id, _ := s.InsertBook(ctx, domain.Book{Title: "Emma", Copies: 1})
	if err := s.AdjustCopies(ctx, id, 4); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := s.AdjustCopies(ctx, id, -6); !errors.Is(err, domain.ErrNoCopiesAvailable) {
		t.Fatalf("err = %v, want ErrNoCopiesAvailable", err)
	}
	b, _ := s.GetBook(ctx, id)
	if b.Copies != 5 {
		t.Errorf("copies = %d, want 5", b.Copies)
	}
}

func TestLatestTransactions(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := s.AppendTransaction(ctx, domain.Transaction{BookID: 1, Action: domain.ActionBorrow, Timestamp: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	txs, err := s.LatestTransactions(ctx, 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(txs) != 2 || txs[0].ID != 4 || txs[1].ID != 5 {
		t.Fatalf("latest = %+v", txs)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.InsertBook(context.Background(), domain.Book{Title: "Persist", Copies: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	books, _ := s2.ListBooks(context.Background())
	if len(books) != 1 {
		t.Fatalf("books = %d, want 1", len(books))
	}
}
