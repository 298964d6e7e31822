// Package vectorstore implements the namespace-scoped vector store
// contract (C5): storeEmbedding/findSimilar/delete/exists over
// arbitrary namespaces, backed by an in-memory implementation that
// uses coder/hnsw for approximate search once a namespace is large
// enough to make that worthwhile, and exact brute-force cosine
// otherwise (and whenever metadata filters require exact
// re-verification of candidates).
package vectorstore

import (
	"context"

	"github.com/aman-cerp/ragcore/internal/embedding"
)

// DefaultNamespace is used whenever a caller omits the namespace.
const DefaultNamespace = "default"

// VectorDocument is a stored embedding plus the metadata and (for
// upsertDocument) textual content it was derived from.
type VectorDocument struct {
	ID        string
	Embedding embedding.Vector
	Metadata  map[string]any
	Content   string
}

// Filters is an equality filter set matched against a
// VectorDocument's Metadata.
type Filters map[string]any

// ScoredVectorDocument pairs a VectorDocument with a similarity score.
type ScoredVectorDocument struct {
	Document VectorDocument
	Score    float64
}

// Store is the C5 contract. All operations are namespace-scoped; a
// nil/empty namespace means DefaultNamespace. A namespace is created
// implicitly on its first write.
type Store interface {
	StoreEmbedding(ctx context.Context, id string, vec embedding.Vector, metadata map[string]any, ns string) error
	StoreEmbeddingBatch(ctx context.Context, docs []VectorDocument, ns string) error

	FindSimilar(ctx context.Context, queryEmb embedding.Vector, limit int, threshold *float64, ns string, filters Filters) ([]ScoredVectorDocument, error)

	Delete(ctx context.Context, id, ns string) error
	DeleteBatch(ctx context.Context, ids []string, ns string) error
	Exists(ctx context.Context, id, ns string) (bool, error)
	GetEmbedding(ctx context.Context, id, ns string) (embedding.Vector, error)

	CreateNamespace(ctx context.Context, ns string) error
	DeleteNamespace(ctx context.Context, ns string) error
	ListNamespaces(ctx context.Context) ([]string, error)

	UpsertDocument(ctx context.Context, doc VectorDocument, ns string) error
	UpsertDocumentBatch(ctx context.Context, docs []VectorDocument, ns string) error
	GetDocument(ctx context.Context, id, ns string) (*VectorDocument, error)
	FindSimilarDocuments(ctx context.Context, queryEmb embedding.Vector, limit int, threshold *float64, ns string, filters Filters) ([]ScoredVectorDocument, error)

	Close() error
}
