package index

import (
	"librag/internal/domain"
	"librag/internal/vectorstore"
)

// Generation is one complete, immutable snapshot of both indexes, the
// records they were built from, and the position/id maps between them.
type Generation struct {
	ID           uint64
	Books        []domain.Book
	Transactions []domain.Transaction
	BookIndex    vectorstore.Index
	TxIndex      vectorstore.Index

	bookIDs []int64
	bookPos map[int64]int
	txIDs   []int64
	txPos   map[int64]int
	corpus  []string
}

func newGeneration(id uint64, books []domain.Book, txs []domain.Transaction) *Generation {
	g := &Generation{
		ID:           id,
		Books:        books,
		Transactions: txs,
		bookIDs:      make([]int64, len(books)),
		bookPos:      make(map[int64]int, len(books)),
		txIDs:        make([]int64, len(txs)),
		txPos:        make(map[int64]int, len(txs)),
		corpus:       make([]string, 0, len(books)+len(txs)),
	}
	for i, b := range books {
		g.bookIDs[i] = b.ID
		g.bookPos[b.ID] = i
		g.corpus = append(g.corpus, DescribeBook(b))
	}
	for i, t := range txs {
		g.txIDs[i] = t.ID
		g.txPos[t.ID] = i
		g.corpus = append(g.corpus, DescribeTransaction(t))
	}
	return g
}

// BookIDAt translates an index position into a stable book id.
func (g *Generation) BookIDAt(pos int) (int64, bool) {
	if pos < 0 || pos >= len(g.bookIDs) {
		return 0, false
	}
	return g.bookIDs[pos], true
}

// BookPosition translates a stable book id into its index position.
func (g *Generation) BookPosition(id int64) (int, bool) {
	pos, ok := g.bookPos[id]
	return pos, ok
}

// Book hydrates a book record by id.
func (g *Generation) Book(id int64) (domain.Book, bool) {
	pos, ok := g.bookPos[id]
	if !ok {
		return domain.Book{}, false
	}
	return g.Books[pos], true
}

// TransactionIDAt translates an index position into a stable transaction id.
func (g *Generation) TransactionIDAt(pos int) (int64, bool) {
	if pos < 0 || pos >= len(g.txIDs) {
		return 0, false
	}
	return g.txIDs[pos], true
}

// Transaction hydrates a transaction record by id.
func (g *Generation) Transaction(id int64) (domain.Transaction, bool) {
	pos, ok := g.txPos[id]
	if !ok {
		return domain.Transaction{}, false
	}
	return g.Transactions[pos], true
}
