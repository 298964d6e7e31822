package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsComponentDefaults(t *testing.T) {
	cfg := New()
	require.NotNil(t, cfg)

	assert.Equal(t, 256, cfg.RetrievalCache.MaxSize)

	assert.Equal(t, 10, cfg.Batch.MaxBatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Batch.BatchTimeout)
	assert.Equal(t, 30*time.Second, cfg.Batch.RequestTimeout)
	assert.True(t, cfg.Batch.PreserveOrder)

	assert.Equal(t, 5*time.Second, cfg.HealthCheck.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.HealthCheck.RetryDelay)
	assert.Equal(t, 0, cfg.HealthCheck.MaxRetries)

	assert.True(t, cfg.Auth.AutoRefresh)

	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.ResetTimeout)
	assert.Equal(t, 10*time.Second, cfg.CircuitBreaker.HalfOpenTimeout)
	assert.Equal(t, 1, cfg.CircuitBreaker.HalfOpenSuccessThreshold)

	assert.Equal(t, 512, cfg.DocumentChunker.DefaultChunkSize)
	assert.Equal(t, 64, cfg.DocumentChunker.DefaultChunkOverlap)

	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestBuildAppliesOptionsOverDefaults(t *testing.T) {
	cfg := Build(
		WithRetrievalCacheSize(64),
		WithAuth(AuthConfig{Scopes: []string{"read", "write"}, AutoRefresh: false}),
		WithDocumentChunker(DocumentChunkerConfig{DefaultChunkSize: 1024, DefaultChunkOverlap: 128}),
	)

	assert.Equal(t, 64, cfg.RetrievalCache.MaxSize)
	assert.Equal(t, []string{"read", "write"}, cfg.Auth.Scopes)
	assert.False(t, cfg.Auth.AutoRefresh)
	assert.Equal(t, 1024, cfg.DocumentChunker.DefaultChunkSize)

	// Untouched sections keep New()'s defaults.
	assert.Equal(t, 10, cfg.Batch.MaxBatchSize)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragcore.yaml")
	yamlContent := "retrieval_cache:\n  max_size: 512\nbatch:\n  max_batch_size: 20\nauth:\n  scopes: [\"admin\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.RetrievalCache.MaxSize)
	assert.Equal(t, 20, cfg.Batch.MaxBatchSize)
	assert.Equal(t, []string{"admin"}, cfg.Auth.Scopes)

	// Non-boolean fields absent from the file keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Batch.RequestTimeout)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, New().RetrievalCache.MaxSize, cfg.RetrievalCache.MaxSize)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteYAMLRoundTrips(t *testing.T) {
	cfg := Build(WithRetrievalCacheSize(99))
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, reloaded.RetrievalCache.MaxSize)
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cfg := New()
	cfg.CircuitBreaker.FailureThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.DocumentChunker.DefaultChunkOverlap = cfg.DocumentChunker.DefaultChunkSize
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.RetrievalCache.MaxSize = -1
	assert.Error(t, cfg.Validate())
}

func TestProjectionsMatchComponentDefaults(t *testing.T) {
	cfg := New()

	rb := cfg.RPCBatchConfig()
	assert.Equal(t, cfg.Batch.MaxBatchSize, rb.MaxBatchSize)
	assert.Equal(t, cfg.Batch.BatchTimeout, rb.BatchTimeout)

	h := cfg.HealthConfig()
	assert.Equal(t, cfg.HealthCheck.Timeout, h.Timeout)

	cfg.HealthCheck.ExcludeComponents = []string{"slow-client"}
	h = cfg.HealthConfig()
	assert.True(t, h.ExcludeComponents["slow-client"])

	a := cfg.MCPAuthConfig()
	assert.Equal(t, cfg.Auth.AutoRefresh, a.AutoRefresh)

	cb := cfg.CircuitSettings()
	assert.Equal(t, cfg.CircuitBreaker.FailureThreshold, cb.FailureThreshold)

	lg := cfg.LogHandlerConfig()
	assert.Equal(t, cfg.Logging.Level, lg.Level)

	ck := cfg.ChunkerOptions()
	assert.Equal(t, cfg.DocumentChunker.DefaultChunkSize, ck.ChunkSize)
}
