package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderMapperUpgradesKnownSubstrings(t *testing.T) {
	m := NewProviderMapper("openai")

	cases := []struct {
		msg  string
		kind Kind
	}{
		{"invalid api key provided", KindAuthentication},
		{"rate limit exceeded, slow down", KindNetwork},
		{"request timeout after 30s", KindTimeout},
		{"model not found", KindResourceNotFound},
		{"forbidden: insufficient permission", KindPermission},
		{"something else entirely", KindProvider},
	}

	for _, tc := range cases {
		got := m.Map(stderrors.New(tc.msg))
		assert.Equalf(t, tc.kind, got.Kind, "message %q", tc.msg)
		assert.Equal(t, "openai", got.Provider)
	}
}

func TestProviderMapperNilError(t *testing.T) {
	m := NewProviderMapper("x")
	assert.Nil(t, m.Map(nil))
}
