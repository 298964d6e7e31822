// Package document provides the Document/Collection entity model (C2) and
// an in-memory store with keyword (bleve-backed) and embedding-similarity
// search scoped by collection.
package document

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/aman-cerp/ragcore/internal/embedding"
)

// Document is an immutable-by-convention record: every mutation through
// Store produces a new Document value (copy-on-write), never mutates one
// in place.
type Document struct {
	ID           string
	Title        string
	Content      string
	Embedding    embedding.Vector
	Metadata     map[string]any
	CollectionID string
	UpdatedAt    time.Time
}

// Clone returns a deep-enough copy of d: metadata map and embedding slice
// are copied so callers can't alias into the store's internal state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Embedding != nil {
		out.Embedding = append(embedding.Vector(nil), d.Embedding...)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ScoredDocument pairs a Document with a similarity or keyword score. Score
// semantics depend on the source (cosine, certainty, BM25-like weight);
// consumers must not compare scores across sources.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// generateID returns an id of the form doc_<epoch-ms>_<rand>.
func generateID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return "doc_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + hex.EncodeToString(buf)
}
