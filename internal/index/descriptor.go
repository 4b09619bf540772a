package index

import (
	"fmt"
	"time"

	"librag/internal/domain"
)

// TimestampLayout is how transaction timestamps appear in descriptors and tables.
const TimestampLayout = time.RFC3339

// DescribeBook renders the canonical text embedded for a book. Fields not
// present here are invisible to retrieval.
func DescribeBook(b domain.Book) string {
	return fmt.Sprintf("Book ID: %d, Title: %s, Author: %s, Description: %s, Tags: %s, Copies Available: %d",
		b.ID, b.Title, b.Author, b.Description, b.Tags, b.Copies)
}

// DescribeTransaction renders the canonical text embedded for a transaction.
func DescribeTransaction(t domain.Transaction) string {
	return fmt.Sprintf("Transaction ID: %d, Book ID: %d, Action: %s, User: %s, College: %s, ID/Email: %s, Phone: %s, Timestamp: %s",
		t.ID, t.BookID, t.Action, t.User.Name, t.User.College, t.User.IDEmail, t.User.Phone, t.Timestamp.Format(TimestampLayout))
}
