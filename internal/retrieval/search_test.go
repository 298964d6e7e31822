package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/embedding"
	"github.com/aman-cerp/ragcore/internal/provider"
)

func TestHybridSearchMergesSemanticAndKeywordScores(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) {
		return embedding.Vector{1, 0, 0}, nil
	}}
	m, store := newDocBackendManager(t, llm)

	// "semantic" matches the query embedding exactly but shares no
	// keyword with the query; "both" matches both; "keyword" only
	// matches by content.
	_, err := store.AddDocument(&document.Document{ID: "semantic", Title: "s", Content: "unrelated text", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	_, err = store.AddDocument(&document.Document{ID: "both", Title: "s", Content: "apple pie recipe", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	_, err = store.AddDocument(&document.Document{ID: "keyword", Title: "s", Content: "apple pie recipe", Embedding: embedding.Vector{0, 1, 0}})
	require.NoError(t, err)

	results, err := m.HybridSearch(context.Background(), "apple", 3, 3, 3, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	// "both" gets semantic + keyword*boost, the highest score.
	assert.Greater(t, byID["both"].Score, byID["semantic"].Score)
	assert.Greater(t, byID["both"].Score, byID["keyword"].Score)
}

func TestHybridSearchKeepsKeywordOnlyHitWithDiscountedScore(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) {
		return embedding.Vector{1, 0, 0}, nil
	}}
	m, store := newDocBackendManager(t, llm)

	_, err := store.AddDocument(&document.Document{ID: "semantic-only", Content: "unrelated", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	_, err = store.AddDocument(&document.Document{ID: "keyword-only", Content: "apple pie recipe", Embedding: embedding.Vector{0, 1, 0}})
	require.NoError(t, err)

	// nSem=1 so the semantic phase returns only the top (most cosine-
	// similar) candidate, excluding "keyword-only" entirely from that
	// phase; it must still surface via the keyword phase.
	results, err := m.HybridSearch(context.Background(), "apple", 1, 5, 5, 0.5)
	require.NoError(t, err)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	_, ok := byID["keyword-only"]
	require.True(t, ok, "a keyword-only hit excluded from the semantic phase must still appear")
}

func TestHybridSearchSkipsKeywordPhaseForVectorBackend(t *testing.T) {
	store := newTestVectorStore(t)
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m := New(NewVectorBackend(store, "ns"), llm)

	require.NoError(t, store.UpsertDocument(context.Background(), vdoc("a", embedding.Vector{1, 0, 0}, "apple pie"), "ns"))

	results, err := m.HybridSearch(context.Background(), "apple", 5, 5, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestContextAwareSearchFallsThroughOnEmptyHistory(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.ContextAwareSearch(context.Background(), "x", nil, 3, 3, 3, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestContextAwareSearchExpandsWithRecentHistory(t *testing.T) {
	llm := &stubLLM{
		embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) {
			assert.Equal(t, 0.3, req.Temperature)
			return &provider.CompletionResponse{Text: "  expanded query  "}, nil
		},
	}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.ContextAwareSearch(context.Background(), "latest", []string{"q1", "q2"}, 3, 3, 3, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestContextAwareSearchFallsBackOnProviderError(t *testing.T) {
	llm := &stubLLM{
		embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) {
			return nil, assertErr
		},
	}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.ContextAwareSearch(context.Background(), "x", []string{"q1"}, 3, 3, 3, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1, "provider error during expansion must fall back to retrieveRelevant with the original query")
}

func TestTimeWeightedRetrievalFavorsRecentDocuments(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm)

	_, err := store.AddDocument(&document.Document{ID: "old", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	_, err = store.AddDocument(&document.Document{ID: "new", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.TimeWeightedRetrieval(context.Background(), "x", 2, 0.9, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Equal similarity puts "old" first in search order (index score 1 vs
	// 0.5, worth 0.05 at w=0.9), but it is at least 100ms older over a 1s
	// window, which costs it at least 0.09 of recency, so "new" ranks first.
	assert.Equal(t, "new", results[0].ID)
}

func TestMultiCollectionSearchFansOutAcrossCollections(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm)

	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", CollectionID: "col1", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	_, err = store.AddDocument(&document.Document{ID: "b", Content: "x", CollectionID: "col2", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.MultiCollectionSearch(context.Background(), "x", []string{"col1", "col2"}, 5, false)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMultiCollectionSearchCanRerank(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm)

	_, err := store.AddDocument(&document.Document{ID: "a", Title: "match", Content: "x", CollectionID: "col1", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)
	_, err = store.AddDocument(&document.Document{ID: "b", Content: "x", CollectionID: "col2", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	results, err := m.MultiCollectionSearch(context.Background(), "match", []string{"col1", "col2"}, 1, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID, "reranking by BM25 title match must favor the doc titled 'match'")
}

func TestRetrieveAndRerankOverFetchesThenTrims(t *testing.T) {
	llm := &stubLLM{embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil }}
	m, store := newDocBackendManager(t, llm)

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.AddDocument(&document.Document{ID: id, Content: "match term", Embedding: embedding.Vector{1, 0, 0}})
		require.NoError(t, err)
	}

	results, err := m.RetrieveAndRerank(context.Background(), "match", 2, true)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

type testErr string

func (e testErr) Error() string { return string(e) }

var assertErr = testErr("boom")
