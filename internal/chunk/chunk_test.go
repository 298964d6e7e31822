package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/ragcore/internal/document"
)

func TestS2ChunkOverlap(t *testing.T) {
	content := strings.Repeat("word ", 200) // 1000 chars
	doc := &document.Document{ID: "doc_1", Title: "t", Content: content}

	chunks, err := ChunkDocument(doc, Options{ChunkSize: 100, Overlap: 20, Language: "en"})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 0; i+1 < len(chunks); i++ {
		tail := lastN(chunks[i].Content, 20)
		assert.True(t, strings.HasPrefix(chunks[i+1].Content, tail),
			"chunk %d overlap %q should prefix chunk %d content %q", i, tail, i+1, chunks[i+1].Content)
	}
}

func lastN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func TestChunkShortCircuitReturnsUnchanged(t *testing.T) {
	doc := &document.Document{ID: "doc_1", Title: "t", Content: "short content"}
	chunks, err := ChunkDocument(doc, Options{ChunkSize: 512, Overlap: 64})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Content, chunks[0].Content)
}

func TestChunkValidatesOverlapLessThanSize(t *testing.T) {
	doc := &document.Document{ID: "doc_1", Content: "x"}
	_, err := ChunkDocument(doc, Options{ChunkSize: 10, Overlap: 10})
	require.Error(t, err)
}

func TestChunkValidatesPositiveSize(t *testing.T) {
	doc := &document.Document{ID: "doc_1", Content: "x"}
	_, err := ChunkDocument(doc, Options{ChunkSize: 0})
	require.Error(t, err)
}

func TestChunkMetadataFields(t *testing.T) {
	content := strings.Repeat("word ", 200)
	doc := &document.Document{ID: "doc_1", Content: content, Metadata: map[string]any{"source": "x"}}

	chunks, err := ChunkDocument(doc, Options{ChunkSize: 100, Overlap: 20, PreserveMetadata: true, Language: "en"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata["chunk_index"])
		assert.Equal(t, len(chunks), c.Metadata["total_chunks"])
		assert.Equal(t, "doc_1", c.Metadata["parent_document_id"])
		assert.Equal(t, "en", c.Metadata["language"])
		assert.Equal(t, "x", c.Metadata["source"], "parent metadata preserved when requested")
	}
}

func TestChunkMetadataNotPreservedByDefault(t *testing.T) {
	content := strings.Repeat("word ", 200)
	doc := &document.Document{ID: "doc_1", Content: content, Metadata: map[string]any{"source": "x"}}

	chunks, err := ChunkDocument(doc, Options{ChunkSize: 100, Overlap: 20, Language: "en"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	_, ok := chunks[0].Metadata["source"]
	assert.False(t, ok)
}

func TestChunkDocumentsIsolatesFailures(t *testing.T) {
	good := &document.Document{ID: "d1", Content: strings.Repeat("word ", 200)}

	out, errs := ChunkDocuments([]*document.Document{good, nil}, Options{ChunkSize: 100, Overlap: 20, Language: "en"})
	require.Contains(t, errs, 1)
	require.NotEmpty(t, out, "the good document is still chunked despite its sibling failing")
	for _, d := range out {
		assert.NotNil(t, d)
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", detectLanguage("hello world"))
	assert.Equal(t, "ko", detectLanguage("안녕하세요"))
	assert.Equal(t, "ja", detectLanguage("こんにちは"))
	assert.Equal(t, "zh", detectLanguage("你好世界"))
	assert.Equal(t, "th", detectLanguage("สวัสดี"))
}
