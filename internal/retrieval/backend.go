// Package retrieval implements the retrieval manager (C6): a single
// RetrievalManager type over a document-store or vector-store backend,
// providing caching, hybrid search, context-aware query expansion,
// reranking, time-weighted retrieval, multi-collection search, and
// RAG prompt assembly/generation.
package retrieval

import (
	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/vectorstore"
)

// BackendKind names which concrete store a Backend wraps.
type BackendKind int

const (
	// DocumentBackendKind wraps a *document.Store.
	DocumentBackendKind BackendKind = iota
	// VectorBackendKind wraps a vectorstore.Store namespace.
	VectorBackendKind
)

// Backend is the sum type RetrievalManager is built over: exactly one
// of DocumentStore or VectorStore is populated, per Kind. Richer
// retrieval behaviors (cache, hybrid search, rerank, time-weighting)
// apply uniformly regardless of which backend is active.
type Backend struct {
	Kind BackendKind

	DocumentStore *document.Store

	VectorStore vectorstore.Store
	Namespace   string
}

// NewDocumentBackend wraps a document-store-backed retrieval target.
func NewDocumentBackend(store *document.Store) Backend {
	return Backend{Kind: DocumentBackendKind, DocumentStore: store}
}

// NewVectorBackend wraps a vector-store-backed retrieval target scoped
// to namespace (vectorstore.DefaultNamespace if empty).
func NewVectorBackend(store vectorstore.Store, namespace string) Backend {
	if namespace == "" {
		namespace = vectorstore.DefaultNamespace
	}
	return Backend{Kind: VectorBackendKind, VectorStore: store, Namespace: namespace}
}

// hasNativeKeywordSearch reports whether this backend can serve the
// keyword phase of hybrid search natively. The document-store backend
// can (bleve-backed SearchByContent); the vector-store backend cannot,
// per spec: "when the vector backend lacks keyword search, keyword
// phase is skipped."
func (b Backend) hasNativeKeywordSearch() bool {
	return b.Kind == DocumentBackendKind
}
