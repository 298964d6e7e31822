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

func TestBuildContextBlockFormatsPerSpec(t *testing.T) {
	updated := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	results := []Result{
		{Title: "Doc One", Content: "first content", UpdatedAt: updated},
		{Title: "Doc Two", Content: "second content"},
	}

	block := buildContextBlock(results)
	assert.Contains(t, block, "[Document 1]\nTitle: Doc One\nContent: first content\nLast Updated: 2026-03-04T12:00:00Z")
	assert.Contains(t, block, "[Document 2]\nTitle: Doc Two\nContent: second content\nLast Updated: unknown")
	assert.Contains(t, block, "\n\n", "blocks must be joined by a blank line")
}

func TestBuildRAGPromptFallsBackOnZeroDocuments(t *testing.T) {
	prompt := buildRAGPrompt("what is it?", nil)
	assert.Contains(t, prompt, "No supporting context documents were found")
	assert.Contains(t, prompt, "what is it?")
}

func TestBuildRAGPromptEnforcesCitationAndRefusalInstructions(t *testing.T) {
	prompt := buildRAGPrompt("q", []Result{{Title: "t", Content: "c"}})
	assert.Contains(t, prompt, "Cite sources inline as [Document X]")
	assert.Contains(t, prompt, "say so explicitly")
}

func TestRetrieveAndGenerateAssemblesContextAndAnswers(t *testing.T) {
	var seenPrompt string
	llm := &stubLLM{
		embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) {
			seenPrompt = req.Prompt
			return &provider.CompletionResponse{Text: "the answer"}, nil
		},
	}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Title: "t", Content: "relevant content", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	answer, err := m.RetrieveAndGenerate(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Contains(t, seenPrompt, "relevant content")
	assert.Contains(t, seenPrompt, "[Document 1]")
}

func TestRetrieveAndGenerateFallsBackToApologyOnProviderError(t *testing.T) {
	llm := &stubLLM{
		embedFn:    func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) { return nil, assertErr },
	}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "x", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	answer, err := m.RetrieveAndGenerate(context.Background(), "q", 1)
	require.NoError(t, err, "a provider error must not bubble")
	assert.Equal(t, apologyResponse, answer)
}

func TestRetrieveAndGenerateUsesNoContextPromptWhenNothingRetrieved(t *testing.T) {
	var seenPrompt string
	llm := &stubLLM{
		embedFn: func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) {
			seenPrompt = req.Prompt
			return &provider.CompletionResponse{Text: "ok"}, nil
		},
	}
	m, _ := newDocBackendManager(t, llm) // empty store: zero documents retrieved

	_, err := m.RetrieveAndGenerate(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Contains(t, seenPrompt, "No supporting context documents were found")
}

func TestMultiChunkAnswerAssemblesContext(t *testing.T) {
	llm := &stubLLM{
		embedFn:    func(text string) (embedding.Vector, error) { return embedding.Vector{1, 0, 0}, nil },
		completeFn: func(req provider.CompletionRequest) (*provider.CompletionResponse, error) { return &provider.CompletionResponse{Text: "chunked answer"}, nil },
	}
	m, store := newDocBackendManager(t, llm)
	_, err := store.AddDocument(&document.Document{ID: "a", Content: "chunk one", Embedding: embedding.Vector{1, 0, 0}})
	require.NoError(t, err)

	answer, err := m.MultiChunkAnswer(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, "chunked answer", answer)
}
