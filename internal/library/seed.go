package library

import (
	"context"
	"fmt"

	"librag/internal/domain"
)

// SampleBooks is the starter catalog loaded by Seed.
var SampleBooks = []domain.Book{
	{Title: "The Alchemist", Author: "Paulo Coelho", Copies: 5,
		Description: "A philosophical novel about following one's dreams.", Tags: "adventure, philosophy"},
	{Title: "1984", Author: "George Orwell", Copies: 3,
		Description: "A dystopian novel about totalitarianism.", Tags: "dystopia, politics"},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Copies: 4,
		Description: "A novel about racial injustice in the American South.", Tags: "drama, social issues"},
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Copies: 2,
		Description: "A novel about the American Dream in the 1920s.", Tags: "classics, romance"},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Copies: 6,
		Description: "A romantic novel about manners and marriage.", Tags: "romance, classics"},
}

// Seed loads SampleBooks into an empty catalog and reports how many books
// were inserted. A non-empty catalog is left alone.
func (m *Manager) Seed(ctx context.Context) (int, error) {
	existing, err := m.store.ListBooks(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		m.logger.Info("catalog already populated, skipping seed", "books", len(existing))
		return 0, nil
	}
	if _, err := m.store.InsertBooks(ctx, SampleBooks); err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}
	m.logger.Info("catalog seeded", "books", len(SampleBooks))
	m.refresh(ctx, "seed")
	return len(SampleBooks), nil
}
