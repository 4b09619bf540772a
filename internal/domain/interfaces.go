package domain

import (
	"context"
	"time"
)

// Action is the kind of a ledger entry.
type Action string

const (
	ActionBorrow Action = "borrow"
	ActionReturn Action = "return"
)

// Book is a catalog record. Copies is never negative.
type Book struct {
	ID          int64  `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Copies      int    `json:"copies"`
}

// BookPatch carries a partial book update; nil fields are left untouched.
type BookPatch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	Tags        *string `json:"tags,omitempty"`
	Copies      *int    `json:"copies,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil && p.Tags == nil && p.Copies == nil
}

// User identifies the person behind a transaction. Fields are free text.
type User struct {
	Name    string `json:"name"`
	College string `json:"college"`
	IDEmail string `json:"id_email"`
	Phone   string `json:"phone"`
}

// Transaction is an append-only ledger record.
type Transaction struct {
	ID        int64     `json:"transaction_id"`
	BookID    int64     `json:"book_id"`
	Action    Action    `json:"action"`
	User      User      `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer is a generated response split into its reasoning and answer segments.
type Answer struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
	Raw       string `json:"-"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// CatalogReader lists every book in catalog order.
type CatalogReader interface {
	ListBooks(ctx context.Context) ([]Book, error)
}

// LedgerReader lists every transaction in append order.
type LedgerReader interface {
	ListTransactions(ctx context.Context) ([]Transaction, error)
}

// CatalogStore is the durable book mapping.
type CatalogStore interface {
	CatalogReader
	GetBook(ctx context.Context, id int64) (*Book, error)
	InsertBook(ctx context.Context, b Book) (int64, error)
	UpdateBook(ctx context.Context, id int64, patch BookPatch) error
	AdjustCopies(ctx context.Context, id int64, delta int) error
}

// LedgerStore is the durable append-only transaction sequence.
type LedgerStore interface {
	LedgerReader
	AppendTransaction(ctx context.Context, tx Transaction) (int64, error)
}

// Generator is an opaque text-completion service.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
