package embedproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragcore/internal/document"
	"github.com/aman-cerp/ragcore/internal/embedding"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/provider"
)

// stubLLM is a minimal provider.LLMProvider implementation for
// exercising the batch processor without a real backend.
type stubLLM struct {
	fail map[string]bool
}

func (s *stubLLM) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	return &provider.CompletionResponse{Text: "ok"}, nil
}

func (s *stubLLM) StreamComplete(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, 1)
	ch <- provider.StreamChunk{IsDone: true}
	close(ch)
	return ch, nil
}

func (s *stubLLM) GetEmbeddings(ctx context.Context, text string) (embedding.Vector, error) {
	if s.fail[text] {
		return nil, rerrors.ProviderError("stub", "boom", nil)
	}
	return embedding.Vector{1, 2, 3}, nil
}

func (s *stubLLM) Initialize(ctx context.Context, config map[string]any) error { return nil }
func (s *stubLLM) Close() error                                               { return nil }

func TestProcessBatchIsLossless(t *testing.T) {
	llm := &stubLLM{fail: map[string]bool{"bad": true}}
	p := New(llm)

	docs := []*document.Document{
		{ID: "a", Content: "already", Embedding: embedding.Vector{9, 9}},
		{ID: "b", Content: "good"},
		{ID: "c", Content: "bad"},
	}

	out := p.ProcessBatch(context.Background(), docs)
	require.Len(t, out, len(docs), "invariant 4: exactly len(docs) items returned")

	assert.Equal(t, embedding.Vector{9, 9}, out[0].Embedding, "pre-embedded doc passes through unchanged")
	assert.NotEmpty(t, out[1].Embedding, "doc without embedding gets one")
	assert.Empty(t, out[2].Embedding, "failed doc is preserved without an embedding, not dropped")
	assert.Equal(t, "c", out[2].ID)
}

func TestProcessBatchBoundsConcurrency(t *testing.T) {
	llm := &stubLLM{}
	p := New(llm, WithParallelism(2))

	docs := make([]*document.Document, 10)
	for i := range docs {
		docs[i] = &document.Document{ID: "d", Content: "x"}
	}

	out := p.ProcessBatch(context.Background(), docs)
	require.Len(t, out, 10)
	for _, d := range out {
		assert.NotEmpty(t, d.Embedding)
	}
}

func TestProcessCollectionSkipsExisting(t *testing.T) {
	store, err := document.New()
	require.NoError(t, err)

	_, err = store.AddDocument(&document.Document{ID: "", Title: "a", CollectionID: "col", Embedding: embedding.Vector{5, 5}})
	require.NoError(t, err)
	added, err := store.AddDocument(&document.Document{Title: "b", CollectionID: "col"})
	require.NoError(t, err)

	p := New(&stubLLM{})
	written, err := p.ProcessCollection(context.Background(), store, "col", true)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	got, err := store.GetDocument(added.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Embedding)
}
