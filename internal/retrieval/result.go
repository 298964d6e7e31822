package retrieval

import (
	"time"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/vectorstore"
)

// Result is the backend-agnostic retrieval result every RetrievalManager
// operation returns, regardless of whether it was sourced from the
// document-store or vector-store backend.
type Result struct {
	ID        string
	Title     string
	Content   string
	Metadata  map[string]any
	Score     float64
	UpdatedAt time.Time
}

func (r Result) clone() Result {
	out := r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func cloneResults(in []Result) []Result {
	out := make([]Result, len(in))
	for i, r := range in {
		out[i] = r.clone()
	}
	return out
}

func fromScoredDocument(sd document.ScoredDocument) Result {
	title, _ := sd.Document.Metadata["title"].(string)
	if sd.Document.Title != "" {
		title = sd.Document.Title
	}
	return Result{
		ID:        sd.Document.ID,
		Title:     title,
		Content:   sd.Document.Content,
		Metadata:  sd.Document.Metadata,
		Score:     sd.Score,
		UpdatedAt: sd.Document.UpdatedAt,
	}
}

func fromScoredVectorDocument(sv vectorstore.ScoredVectorDocument) Result {
	title, _ := sv.Document.Metadata["title"].(string)
	updatedAt := time.Time{}
	if ts, ok := sv.Document.Metadata["updated_at"].(time.Time); ok {
		updatedAt = ts
	}
	return Result{
		ID:        sv.Document.ID,
		Title:     title,
		Content:   sv.Document.Content,
		Metadata:  sv.Document.Metadata,
		Score:     sv.Score,
		UpdatedAt: updatedAt,
	}
}

// DocumentInput is the backend-agnostic argument to AddDocument(s): the
// manager embeds Content (unless Embedding is already populated) and
// routes the write to whichever backend is configured.
type DocumentInput struct {
	ID           string
	Title        string
	Content      string
	Metadata     map[string]any
	CollectionID string
	Embedding    []float32
}
