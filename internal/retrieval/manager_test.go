package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/embedding"
)

func TestVectorBackendAddRetrieveDeleteClose(t *testing.T) {
	store := newTestVectorStore(t)
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m := New(NewVectorBackend(store, "ns"), llm)

	added, err := m.AddDocument(context.Background(), DocumentInput{ID: "a", Title: "t", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "a", added.ID)

	results, err := m.RetrieveRelevant(context.Background(), "hello", 1, nil, nil, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	require.NoError(t, m.DeleteDocument(context.Background(), "a"))
	results, err = m.RetrieveRelevant(context.Background(), "hello", 1, nil, nil, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.NoError(t, m.Close())
}

func TestVectorBackendDefaultsEmptyNamespace(t *testing.T) {
	store := newTestVectorStore(t)
	b := NewVectorBackend(store, "")
	assert.Equal(t, "default", b.Namespace)
}

func TestWithCacheDisabledNeverCaches(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm, WithCacheDisabled())
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.RetrieveRelevant(ctx, "x", 1, nil, nil, true)
	require.NoError(t, err)
	_, err = m.RetrieveRelevant(ctx, "x", 1, nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls(), "caching disabled must re-embed on every call")

	assert.NotPanics(t, func() { m.ClearCache() }, "ClearCache on a nil cache must be a no-op")
}

func TestAddDocumentsStopsAtFirstError(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) {
		if text == "bad" {
			return nil, assertErr
		}
		return embedding.Vector{1, 0, 0}, nil
	}}
	m, _ := newDocBackendManager(t, llm)

	_, err := m.AddDocuments(context.Background(), []DocumentInput{
		{Content: "good"},
		{Content: "bad"},
		{Content: "good"},
	})
	assert.Error(t, err)
}
