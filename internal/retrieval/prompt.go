package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-cerp/ragcore/internal/provider"
)

// ragInstructionTemplate wraps the assembled context, enforcing that
// the model answer only from context, cite [Document X], and refuse
// when the context is insufficient.
const ragInstructionTemplate = "Answer the question using only the information in the context below. Cite sources inline as [Document X]. If the context does not contain enough information to answer, say so explicitly rather than guessing.\n\nContext:\n%s\n\nQuestion: %s"

// noContextPrompt is used when retrieval returns zero documents.
const noContextPrompt = "Answer the following question. No supporting context documents were found, so answer only from general knowledge and say so explicitly: %s"

// apologyResponse is returned in place of bubbling a provider error
// during RAG generation.
const apologyResponse = "I'm sorry, I wasn't able to generate an answer right now. Please try again shortly."

// buildContextBlock renders results as "[Document i]\nTitle: ...\n
// Content: ...\nLast Updated: ISO8601" blocks joined by blank lines.
func buildContextBlock(results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		updated := "unknown"
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		blocks[i] = fmt.Sprintf("[Document %d]\nTitle: %s\nContent: %s\nLast Updated: %s", i+1, r.Title, r.Content, updated)
	}
	return strings.Join(blocks, "\n\n")
}

func buildRAGPrompt(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf(noContextPrompt, query)
	}
	return fmt.Sprintf(ragInstructionTemplate, buildContextBlock(results), query)
}

// RetrieveAndGenerate retrieves topK documents for query, assembles the
// RAG prompt, and generates an answer. A provider error during
// generation yields the fixed apology string rather than bubbling.
func (m *Manager) RetrieveAndGenerate(ctx context.Context, query string, topK int) (string, error) {
	results, err := m.RetrieveRelevant(ctx, query, topK, nil, nil, true)
	if err != nil {
		results = nil
	}

	prompt := buildRAGPrompt(query, results)
	resp, err := m.llm.Complete(ctx, provider.CompletionRequest{Prompt: prompt})
	if err != nil {
		return apologyResponse, nil
	}
	return resp.Text, nil
}

// MultiChunkAnswer retrieves topK chunk-level documents for query and
// generates an answer over their combined context, the same as
// RetrieveAndGenerate but intended for callers whose backend stores
// chunked (rather than whole-document) content.
func (m *Manager) MultiChunkAnswer(ctx context.Context, query string, topK int) (string, error) {
	results, err := m.RetrieveRelevant(ctx, query, topK, nil, nil, true)
	if err != nil {
		results = nil
	}

	prompt := buildRAGPrompt(query, results)
	resp, err := m.llm.Complete(ctx, provider.CompletionRequest{Prompt: prompt})
	if err != nil {
		return apologyResponse, nil
	}
	return resp.Text, nil
}
