package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/embedding"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/provider"
	"github.com/aman-cerp/ragcore/internal/vectorstore"
)

// Manager is the retrieval manager (C6): addDocument(s), retrieveRelevant,
// hybridSearch, contextAwareSearch, rerank, timeWeightedRetrieval,
// multiCollectionSearch, retrieveAndRerank, retrieveAndGenerate,
// multiChunkAnswer, deleteDocument(s), clearCache, close.
type Manager struct {
	backend Backend
	llm     provider.LLMProvider
	cache   *retrievalCache
	logger  *slog.Logger

	// collectionScope, when set, scopes document-backend searches to a
	// single collection id (set via withScope for multi-collection
	// search; empty means "search the whole store").
	collectionScope string
}

// config accumulates Option settings before the cache is built, since
// cache size and clock must be known together to construct it once.
type config struct {
	cacheSize     int
	cacheDisabled bool
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Manager.
type Option func(*config)

// WithCacheSize sets the LRU cache's entry cap (default 256).
func WithCacheSize(size int) Option {
	return func(c *config) { c.cacheSize = size }
}

// WithCacheDisabled disables retrieval caching.
func WithCacheDisabled() Option {
	return func(c *config) { c.cacheDisabled = true }
}

// WithLogger overrides the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the cache's clock (tests only).
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New creates a retrieval manager over backend, using llm for
// embeddings, reranking, query expansion, and RAG generation.
func New(backend Backend, llm provider.LLMProvider, opts ...Option) *Manager {
	cfg := &config{cacheSize: defaultCacheSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &Manager{backend: backend, llm: llm, logger: cfg.logger}
	if !cfg.cacheDisabled {
		m.cache = newRetrievalCache(cfg.cacheSize, cfg.now)
	}
	return m
}

// AddDocument embeds in.Content (if in.Embedding is empty) and writes
// it to whichever backend is configured, returning the stored Result.
func (m *Manager) AddDocument(ctx context.Context, in DocumentInput) (Result, error) {
	vec := embedding.Vector(in.Embedding)
	if len(vec) == 0 {
		v, err := m.llm.GetEmbeddings(ctx, in.Content)
		if err != nil {
			return Result{}, rerrors.ProviderError("llm", "failed to generate embedding for document", err)
		}
		vec = v
	}

	switch m.backend.Kind {
	case DocumentBackendKind:
		doc := &document.Document{
			ID: in.ID, Title: in.Title, Content: in.Content,
			Embedding: vec, Metadata: in.Metadata, CollectionID: in.CollectionID,
		}
		stored, err := m.backend.DocumentStore.AddDocument(doc)
		if err != nil {
			return Result{}, err
		}
		return fromScoredDocument(document.ScoredDocument{Document: stored}), nil

	case VectorBackendKind:
		meta := cloneMeta(in.Metadata)
		if in.Title != "" {
			meta["title"] = in.Title
		}
		vd := vectorstore.VectorDocument{ID: in.ID, Embedding: vec, Metadata: meta, Content: in.Content}
		if err := m.backend.VectorStore.UpsertDocument(ctx, vd, m.backend.Namespace); err != nil {
			return Result{}, err
		}
		return fromScoredVectorDocument(vectorstore.ScoredVectorDocument{Document: vd}), nil

	default:
		return Result{}, rerrors.ValidationError("backend", "retrieval manager has no configured backend", nil)
	}
}

// AddDocuments adds each input in order, returning the results it
// managed to store alongside the first error encountered (if any).
func (m *Manager) AddDocuments(ctx context.Context, docs []DocumentInput) ([]Result, error) {
	out := make([]Result, 0, len(docs))
	for _, in := range docs {
		r, err := m.AddDocument(ctx, in)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteDocument removes id from the configured backend.
func (m *Manager) DeleteDocument(ctx context.Context, id string) error {
	switch m.backend.Kind {
	case DocumentBackendKind:
		return m.backend.DocumentStore.DeleteDocument(id)
	case VectorBackendKind:
		return m.backend.VectorStore.Delete(ctx, id, m.backend.Namespace)
	default:
		return rerrors.ValidationError("backend", "retrieval manager has no configured backend", nil)
	}
}

// DeleteDocuments removes every id from the configured backend.
func (m *Manager) DeleteDocuments(ctx context.Context, ids []string) error {
	switch m.backend.Kind {
	case DocumentBackendKind:
		return m.backend.DocumentStore.DeleteDocuments(ids)
	case VectorBackendKind:
		return m.backend.VectorStore.DeleteBatch(ctx, ids, m.backend.Namespace)
	default:
		return rerrors.ValidationError("backend", "retrieval manager has no configured backend", nil)
	}
}

// ClearCache purges every cached retrieval result.
func (m *Manager) ClearCache() {
	m.cache.clear()
}

// Close releases the manager's vector-store backend, if any. Document
// stores and the LLM provider are owned by the caller and left open.
func (m *Manager) Close() error {
	if m.backend.Kind == VectorBackendKind && m.backend.VectorStore != nil {
		return m.backend.VectorStore.Close()
	}
	return nil
}

func cloneMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
