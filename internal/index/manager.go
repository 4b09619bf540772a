// Package index owns the live index generation: both vector indexes, the
// record snapshot they were built from, and the atomic swap between
// generations on refresh.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"librag/internal/domain"
	"librag/internal/logging"
	"librag/internal/metrics"
	"librag/internal/vectorstore"
)

// Config wires the manager to its stores, embedder and index backend.
type Config struct {
	Catalog  domain.CatalogReader
	Ledger   domain.LedgerReader
	Embedder domain.Embedder
	Factory  vectorstore.Factory
	Logger   *slog.Logger
}

// Manager serializes refreshes against reads. Refresh holds the lock
// exclusively for its whole duration; View holds it shared, so a reader
// always sees one complete generation.
type Manager struct {
	catalog  domain.CatalogReader
	ledger   domain.LedgerReader
	embedder domain.Embedder
	factory  vectorstore.Factory
	logger   *slog.Logger

	mu  sync.RWMutex
	gen *Generation
	seq uint64
}

// New builds the manager and its first generation. A failure here is
// reported as domain.ErrInitialization wrapping the cause.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Catalog == nil || cfg.Ledger == nil || cfg.Embedder == nil || cfg.Factory == nil {
		return nil, fmt.Errorf("%w: missing dependency", domain.ErrInitialization)
	}
	m := &Manager{
		catalog:  cfg.Catalog,
		ledger:   cfg.Ledger,
		embedder: cfg.Embedder,
		factory:  cfg.Factory,
		logger:   logging.Default(cfg.Logger).With("component", "index"),
	}
	if err := m.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	return m, nil
}

// Embedder returns the embedder the live generation was prepared with.
// Queries must be embedded inside View so they see the same vocabulary.
func (m *Manager) Embedder() domain.Embedder { return m.embedder }

// View runs fn against the live generation under the shared lock.
func (m *Manager) View(fn func(g *Generation) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gen == nil {
		return domain.ErrInitialization
	}
	return fn(m.gen)
}

// Generation reports the sequence number of the live generation.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gen == nil {
		return 0
	}
	return m.gen.ID
}

// Refresh rebuilds both indexes from the current store contents and swaps
// them in. On any failure the previous generation stays live, and a store
// read failure is reported as domain.ErrDataUnavailable.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	books, txs, err := m.load(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("data_unavailable").Inc()
		m.logger.Warn("refresh aborted, store unreadable", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}

	next := newGeneration(m.seq+1, books, txs)
	if err := m.build(ctx, next); err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		m.logger.Error("refresh failed", "generation", next.ID, "error", err)
		return err
	}

	m.seq = next.ID
	prev := m.gen
	m.gen = next
	if prev != nil {
		m.closeGeneration(ctx, prev)
	}

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	metrics.IndexGeneration.Set(float64(next.ID))
	metrics.IndexEntries.WithLabelValues("books").Set(float64(len(books)))
	metrics.IndexEntries.WithLabelValues("transactions").Set(float64(len(txs)))
	m.logger.Info("index refreshed",
		"generation", next.ID,
		"books", len(books),
		"transactions", len(txs),
		"embedder", m.embedder.Name(),
		"took", time.Since(start),
	)
	return nil
}

// Close releases the live generation's index resources.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == nil {
		return nil
	}
	err := closeIndexes(ctx, m.gen)
	m.gen = nil
	return err
}

func (m *Manager) load(ctx context.Context) ([]domain.Book, []domain.Transaction, error) {
	var (
		books []domain.Book
		txs   []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = m.catalog.ListBooks(gctx)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = m.ledger.ListTransactions(gctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return books, txs, nil
}

// build prepares the embedder over the combined corpus and fills both
// indexes of next. On failure the embedder is restored to the live
// generation's vocabulary and any partially built index is closed.
func (m *Manager) build(ctx context.Context, next *Generation) (err error) {
	corpus := next.corpus
	if len(corpus) > 0 {
		if err := m.embedder.Prepare(corpus); err != nil {
			return fmt.Errorf("prepare embedder: %w", err)
		}
		defer func() {
			if err != nil {
				m.restoreEmbedder()
			}
		}()
	}

	var vectors [][]float64
	if len(corpus) > 0 {
		vectors, err = m.embedder.EmbedBatch(ctx, corpus)
		if err != nil {
			return fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(corpus) {
			return fmt.Errorf("embed corpus: expected %d vectors, got %d", len(corpus), len(vectors))
		}
	}
	dim := m.embedder.Dimension()
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	nb := len(next.Books)
	next.BookIndex, err = m.newIndex(ctx, fmt.Sprintf("books-%d", next.ID), dim, vectors[:nb])
	if err != nil {
		return err
	}
	next.TxIndex, err = m.newIndex(ctx, fmt.Sprintf("transactions-%d", next.ID), dim, vectors[nb:])
	if err != nil {
		if cerr := next.BookIndex.Close(ctx); cerr != nil {
			m.logger.Warn("close partial index", "error", cerr)
		}
		next.BookIndex = nil
		return err
	}
	return nil
}

func (m *Manager) newIndex(ctx context.Context, name string, dim int, vectors [][]float64) (vectorstore.Index, error) {
	idx, err := m.factory.New(ctx, name, dim)
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}
	if len(vectors) == 0 {
		return idx, nil
	}
	if err := idx.Add(ctx, vectors); err != nil {
		if cerr := idx.Close(ctx); cerr != nil {
			m.logger.Warn("close partial index", "index", name, "error", cerr)
		}
		return nil, fmt.Errorf("fill index %s: %w", name, err)
	}
	return idx, nil
}

func (m *Manager) restoreEmbedder() {
	if m.gen == nil || len(m.gen.corpus) == 0 {
		return
	}
	if err := m.embedder.Prepare(m.gen.corpus); err != nil {
		m.logger.Error("restore embedder vocabulary", "generation", m.gen.ID, "error", err)
	}
}

func (m *Manager) closeGeneration(ctx context.Context, g *Generation) {
	if err := closeIndexes(ctx, g); err != nil {
		m.logger.Warn("close retired generation", "generation", g.ID, "error", err)
	}
}

func closeIndexes(ctx context.Context, g *Generation) error {
	var errs []error
	if g.BookIndex != nil {
		errs = append(errs, g.BookIndex.Close(ctx))
	}
	if g.TxIndex != nil {
		errs = append(errs, g.TxIndex.Close(ctx))
	}
	return errors.Join(errs...)
}
