package retrieval

import (
	"testing"

	"github.com/aman-cerp/ragcore/internal/embedding"
	"github.com/aman-cerp/ragcore/internal/vectorstore"
)

func newTestVectorStore(t *testing.T) *vectorstore.InMemoryStore {
	t.Helper()
	return vectorstore.New()
}

func vdoc(id string, emb embedding.Vector, content string) vectorstore.VectorDocument {
	return vectorstore.VectorDocument{ID: id, Embedding: emb, Content: content}
}
