package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorImplementsStdError(t *testing.T) {
	e := ValidationError("query", "query must not be empty", nil)
	require.EqualError(t, e, "[validation] query must not be empty")
	assert.Equal(t, "query", e.Field)
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	e := ServerError("wrapped", cause)
	assert.Equal(t, cause, stderrors.Unwrap(e))
	assert.True(t, stderrors.Is(e, cause))
}

func TestErrorIsMatchesOnKind(t *testing.T) {
	a := TimeoutError(0, "a", nil)
	b := TimeoutError(0, "b", nil)
	assert.True(t, stderrors.Is(a, b))

	c := ClientError("c", nil)
	assert.False(t, stderrors.Is(a, c))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindProvider, KindOf(ProviderError("openai", "boom", nil)))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
}

func TestWithProvider(t *testing.T) {
	e := NetworkError(503, "down", nil).WithProvider("pinecone")
	assert.Equal(t, "pinecone", e.Provider)
	assert.Contains(t, e.Error(), "pinecone")
}
