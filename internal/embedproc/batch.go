// Package embedproc implements the batch embedding processor (C4): it
// fills in missing embeddings for a window of documents by calling an
// LLM provider concurrently, bounded by a semaphore, without ever
// dropping a document from the result even when its embedding request
// fails.
package embedproc

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/provider"
)

// Processor requests embeddings for documents that don't already carry
// one, bounding concurrency within each batch window.
type Processor struct {
	llm         provider.LLMProvider
	logger      *slog.Logger
	parallelism int
}

// Option configures a Processor.
type Option func(*Processor)

// WithParallelism bounds how many embedding requests run concurrently
// within a single batch window. Defaults to 8.
func WithParallelism(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// WithLogger overrides the processor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor backed by llm.
func New(llm provider.LLMProvider, opts ...Option) *Processor {
	p := &Processor{
		llm:         llm,
		logger:      slog.Default(),
		parallelism: 8,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch requests embeddings for every document in docs that
// doesn't already carry one. Per spec invariant 4, the returned slice
// always has exactly len(docs) items, in the same order: documents
// that already had an embedding pass through unchanged, documents
// whose embedding request failed are returned unchanged (not dropped),
// and the rest come back with Embedding populated.
func (p *Processor) ProcessBatch(ctx context.Context, docs []*document.Document) []*document.Document {
	out := make([]*document.Document, len(docs))
	copy(out, docs)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.parallelism)

	for i, d := range docs {
		if d == nil || len(d.Embedding) > 0 {
			continue
		}
		i, d := i, d

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return nil
			}

			vec, err := p.llm.GetEmbeddings(gctx, d.Content)
			if err != nil {
				p.logger.Warn("embedding request failed, keeping document without embedding",
					slog.String("document_id", d.ID), slog.String("error", err.Error()))
				return nil // isolate the failure: never fail the group over one document
			}

			updated := d.Clone()
			updated.Embedding = vec
			out[i] = updated
			return nil
		})
	}

	_ = g.Wait() // every goroutine already swallows its own error; nothing to propagate
	return out
}

// ProcessCollection embeds every document in collectionID that is
// missing an embedding (unless skipExisting is false, in which case
// every document is re-embedded), writing successfully embedded
// documents back to store.
func (p *Processor) ProcessCollection(ctx context.Context, store *document.Store, collectionID string, skipExisting bool) (int, error) {
	docs, err := store.GetDocumentsInCollection(collectionID)
	if err != nil {
		return 0, err
	}

	var pending []*document.Document
	for _, d := range docs {
		if len(d.Embedding) > 0 {
			if skipExisting {
				continue
			}
			d.Embedding = nil // d is a copy; clearing it makes ProcessBatch request a fresh one
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	processed := p.ProcessBatch(ctx, pending)

	written := 0
	for _, d := range processed {
		if len(d.Embedding) == 0 {
			continue
		}
		if _, err := store.UpdateDocument(d); err != nil {
			p.logger.Warn("failed to write back embedded document",
				slog.String("document_id", d.ID), slog.String("error", err.Error()))
			continue
		}
		written++
	}
	return written, nil
}
