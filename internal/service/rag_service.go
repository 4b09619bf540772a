// Package service answers free-text questions about the library by
// combining nearest-neighbor retrieval over both indexes with derived
// insights and a generative model.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"librag/internal/domain"
	"librag/internal/index"
	"librag/internal/insight"
	"librag/internal/logging"
	"librag/internal/metrics"
)

// NoTransactions replaces the transactions table when the ledger index is empty.
const NoTransactions = "No transactions available."

// DefaultTopK is used when a caller passes k <= 0.
const DefaultTopK = 5

// Config wires the query service.
type Config struct {
	Index        *index.Manager
	Insights     *insight.Generator
	Generator    domain.Generator
	SystemPrompt string
	TopK         int
	// Timeout bounds each generative call. Zero means no bound beyond ctx.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// Result is a full question round trip.
type Result struct {
	Query   string        `json:"query"`
	Context string        `json:"context"`
	Answer  domain.Answer `json:"answer"`
}

type RAGService struct {
	index        *index.Manager
	insights     *insight.Generator
	generator    domain.Generator
	systemPrompt string
	topK         int
	timeout      time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

func NewRAGService(cfg Config) *RAGService {
	logger := logging.Default(cfg.Logger)
	s := &RAGService{
		index:        cfg.Index,
		insights:     cfg.Insights,
		generator:    cfg.Generator,
		systemPrompt: cfg.SystemPrompt,
		topK:         cfg.TopK,
		timeout:      cfg.Timeout,
		now:          cfg.Now,
		logger:       logger.With("component", "rag"),
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.insights == nil {
		s.insights = insight.NewGenerator(logger)
	}
	return s
}

// Retrieve builds the context bundle for query: the top-k books, the top-k
// transactions and the insights, under fixed section headers. The whole
// call reads one index generation.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) (string, error) {
	if k <= 0 {
		k = s.topK
	}
	var out string
	err := s.index.View(func(g *index.Generation) error {
		var (
			books []domain.Book
			txs   []domain.Transaction
		)
		if g.BookIndex.Len() > 0 || g.TxIndex.Len() > 0 {
			q, err := s.index.Embedder().Embed(ctx, query)
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			if books, err = s.searchBooks(ctx, g, q, k); err != nil {
				return err
			}
			if txs, err = s.searchTransactions(ctx, g, q, k); err != nil {
				return err
			}
		}

		var b strings.Builder
		b.WriteString("Books:\n")
		b.WriteString(renderBooks(books))
		b.WriteString("\n\nTransactions:\n")
		if g.TxIndex.Len() == 0 {
			b.WriteString(NoTransactions)
		} else {
			b.WriteString(renderTransactions(txs))
		}
		b.WriteString("\n\nInsights:\n")
		b.WriteString(s.insights.Summary(g.Books, g.Transactions, s.now()))
		out = b.String()

		s.logger.Debug("retrieved",
			"generation", g.ID, "books", len(books), "transactions", len(txs), "k", k)
		return nil
	})
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("retrieve", "error").Inc()
		return "", err
	}
	metrics.QueriesTotal.WithLabelValues("retrieve", "ok").Inc()
	return out, nil
}

func (s *RAGService) searchBooks(ctx context.Context, g *index.Generation, q []float64, k int) ([]domain.Book, error) {
	hits, err := g.BookIndex.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	out := make([]domain.Book, 0, len(hits))
	for _, h := range hits {
		id, ok := g.BookIDAt(h.Position)
		if !ok {
			continue
		}
		if b, ok := g.Book(id); ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *RAGService) searchTransactions(ctx context.Context, g *index.Generation, q []float64, k int) ([]domain.Transaction, error) {
	if g.TxIndex.Len() == 0 {
		return nil, nil
	}
	hits, err := g.TxIndex.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	out := make([]domain.Transaction, 0, len(hits))
	for _, h := range hits {
		id, ok := g.TransactionIDAt(h.Position)
		if !ok {
			continue
		}
		t, ok := g.Transaction(id)
		if !ok {
			continue
		}
		if _, ok := g.Book(t.BookID); !ok {
			s.logger.Debug("omitting transaction",
				"transaction_id", t.ID, "book_id", t.BookID, "error", domain.ErrInvalidReference)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Generate asks the generative service to answer query from contextText and
// splits the completion into reasoning and answer. Failures and timeouts
// are reported as domain.ErrUpstreamFailure with no partial answer.
func (s *RAGService) Generate(ctx context.Context, query, contextText string) (domain.Answer, error) {
	if s.generator == nil {
		return domain.Answer{}, fmt.Errorf("%w: no generative service configured", domain.ErrUpstreamFailure)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.generator.Complete(ctx, s.systemPrompt, BuildPrompt(query, contextText))
	metrics.GenerateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("generate", "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("generation timed out", "timeout", s.timeout, "error", err)
		} else {
			s.logger.Warn("generation failed", "error", err)
		}
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
	}
	metrics.QueriesTotal.WithLabelValues("generate", "ok").Inc()
	return SplitReasoning(raw), nil
}

// Ask runs Retrieve with the default k followed by Generate.
func (s *RAGService) Ask(ctx context.Context, query string) (Result, error) {
	contextText, err := s.Retrieve(ctx, query, s.topK)
	if err != nil {
		return Result{}, err
	}
	ans, err := s.Generate(ctx, query, contextText)
	if err != nil {
		return Result{}, err
	}
	return Result{Query: query, Context: contextText, Answer: ans}, nil
}
