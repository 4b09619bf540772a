package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"librag/internal/domain"
	"librag/internal/embedding/openai"
	"librag/internal/embedding/tfidf"
	"librag/internal/index"
	"librag/internal/insight"
	"librag/internal/library"
	llmopenai "librag/internal/llm/openai"
	"librag/internal/service"
	"librag/internal/store/sqlite"
	"librag/internal/vectorstore"
	"librag/internal/vectorstore/memory"
	"librag/internal/vectorstore/qdrant"
)

// app is the assembled component graph for one command invocation.
type app struct {
	store   *sqlite.Store
	index   *index.Manager
	library *library.Manager
	rag     *service.RAGService
}

// openStore opens the database alone, for commands that never query.
func openStore() (*sqlite.Store, error) {
	st, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return st, nil
}

// newLibrary builds a library manager without an index.
func newLibrary(st *sqlite.Store) *library.Manager {
	return library.NewManager(st, nil, library.WithLogger(logger))
}

// buildApp assembles store, index, library and query service. withLLM
// controls whether a generative client is required.
func buildApp(ctx context.Context, withLLM bool) (*app, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	emb, err := buildEmbedder()
	if err != nil {
		st.Close()
		return nil, err
	}
	factory, err := buildFactory()
	if err != nil {
		st.Close()
		return nil, err
	}
	idx, err := index.New(ctx, index.Config{
		Catalog:  st,
		Ledger:   st,
		Embedder: emb,
		Factory:  factory,
		Logger:   logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	var (
		gen          domain.Generator
		systemPrompt string
		timeout      time.Duration
	)
	if withLLM {
		if gen, err = buildGenerator(); err != nil {
			idx.Close(ctx)
			st.Close()
			return nil, err
		}
		if o := cfg.LLM.OpenAI; o != nil {
			systemPrompt = o.SystemPrompt
			timeout = time.Duration(o.TimeoutSecs) * time.Second
		}
	}

	return &app{
		store:   st,
		index:   idx,
		library: library.NewManager(st, idx, library.WithLogger(logger)),
		rag: service.NewRAGService(service.Config{
			Index:        idx,
			Insights:     insight.NewGenerator(logger),
			Generator:    gen,
			SystemPrompt: systemPrompt,
			TopK:         cfg.Retrieval.TopK,
			Timeout:      timeout,
			Logger:       logger,
		}),
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.index.Close(ctx); err != nil {
		logger.Warn("close index", "error", err)
	}
	a.store.Close()
}

func buildEmbedder() (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:  o.BatchSize,
			MaxRetries: 5,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildFactory() (vectorstore.Factory, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.Factory{}, nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		f, err := qdrant.NewFactory(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Instance:   uuid.NewString()[:8],
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func buildGenerator() (domain.Generator, error) {
	switch cfg.LLM.Type {
	case "openai", "":
		o := cfg.LLM.OpenAI
		if o == nil {
			return nil, fmt.Errorf("llm config missing")
		}
		c, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
