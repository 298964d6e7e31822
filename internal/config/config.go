// Package config aggregates ragcore's recognized configuration options
// (C6's retrieval cache, C9's batch manager, C14's health monitor,
// C12's auth adapter, C7's circuit breaker, and C3's chunker) into one
// YAML-loadable Config, following the same defaults-then-override
// layering as every component's own withDefaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aman-cerp/ragcore/internal/chunk"
	"github.com/aman-cerp/ragcore/internal/circuit"
	"github.com/aman-cerp/ragcore/internal/health"
	"github.com/aman-cerp/ragcore/internal/logging"
	"github.com/aman-cerp/ragcore/internal/mcpauth"
	"github.com/aman-cerp/ragcore/internal/rpcbatch"
)

// Config is the complete set of recognized ragcore configuration
// options.
type Config struct {
	RetrievalCache  RetrievalCacheConfig  `yaml:"retrieval_cache" json:"retrieval_cache"`
	Batch           BatchConfig           `yaml:"batch" json:"batch"`
	HealthCheck     HealthCheckConfig     `yaml:"health_check" json:"health_check"`
	Auth            AuthConfig            `yaml:"auth" json:"auth"`
	CircuitBreaker  CircuitBreakerConfig  `yaml:"circuit_breaker" json:"circuit_breaker"`
	DocumentChunker DocumentChunkerConfig `yaml:"document_chunker" json:"document_chunker"`
	Logging         LoggingConfig         `yaml:"logging" json:"logging"`
}

// RetrievalCacheConfig controls the retrieval manager's LRU cache.
type RetrievalCacheConfig struct {
	MaxSize int `yaml:"max_size" json:"max_size"`
}

// BatchConfig controls the JSON-RPC batch manager's flush triggers.
// PreserveOrder is recognized for schema completeness: the batch
// manager always matches responses to requests by id, so result
// ordering is correct regardless of the wire order a transport returns
// responses in, and this flag has no runtime effect.
type BatchConfig struct {
	MaxBatchSize   int           `yaml:"max_batch_size" json:"max_batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	PreserveOrder  bool          `yaml:"preserve_order" json:"preserve_order"`
}

// HealthCheckConfig controls the health monitor's probe behavior.
type HealthCheckConfig struct {
	Timeout              time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries           int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay           time.Duration `yaml:"retry_delay" json:"retry_delay"`
	IncludeSystemMetrics bool          `yaml:"include_system_metrics" json:"include_system_metrics"`
	ExcludeComponents    []string      `yaml:"exclude_components" json:"exclude_components"`
	CheckAuthentication  bool          `yaml:"check_authentication" json:"check_authentication"`
}

// AuthConfig controls the MCP auth adapter's default scope requirement
// and auto-refresh behavior.
type AuthConfig struct {
	Scopes      []string `yaml:"scopes" json:"scopes"`
	AutoRefresh bool     `yaml:"auto_refresh" json:"auto_refresh"`
}

// CircuitBreakerConfig controls a Breaker's state-transition thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold         int           `yaml:"failure_threshold" json:"failure_threshold"`
	ResetTimeout             time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	HalfOpenTimeout          time.Duration `yaml:"half_open_timeout" json:"half_open_timeout"`
	HalfOpenSuccessThreshold int           `yaml:"half_open_success_threshold" json:"half_open_success_threshold"`
}

// DocumentChunkerConfig controls the chunker's default size/overlap
// when a caller doesn't specify its own.
type DocumentChunkerConfig struct {
	DefaultChunkSize    int `yaml:"default_chunk_size" json:"default_chunk_size"`
	DefaultChunkOverlap int `yaml:"default_chunk_overlap" json:"default_chunk_overlap"`
}

// LoggingConfig controls the shared logger every component takes as a
// constructor option.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Format    string `yaml:"format" json:"format"`
	AddSource bool   `yaml:"add_source" json:"add_source"`
}

// New returns a Config populated with each component's own defaults.
func New() *Config {
	breaker := circuit.DefaultSettings()
	return &Config{
		RetrievalCache: RetrievalCacheConfig{MaxSize: 256},
		Batch: BatchConfig{
			MaxBatchSize:   10,
			BatchTimeout:   50 * time.Millisecond,
			RequestTimeout: 30 * time.Second,
			PreserveOrder:  true,
		},
		HealthCheck: HealthCheckConfig{
			Timeout:    5 * time.Second,
			RetryDelay: 200 * time.Millisecond,
		},
		Auth: AuthConfig{
			AutoRefresh: true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:         breaker.FailureThreshold,
			ResetTimeout:             breaker.ResetTimeout,
			HalfOpenTimeout:          breaker.HalfOpenTimeout,
			HalfOpenSuccessThreshold: breaker.HalfOpenSuccessThreshold,
		},
		DocumentChunker: DocumentChunkerConfig{
			DefaultChunkSize:    512,
			DefaultChunkOverlap: 64,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Option mutates a Config under construction; functional options let
// callers build one in code without reaching for YAML.
type Option func(*Config)

// WithRetrievalCacheSize overrides the retrieval cache's max size.
func WithRetrievalCacheSize(size int) Option {
	return func(c *Config) { c.RetrievalCache.MaxSize = size }
}

// WithBatch overrides the batch manager's flush-trigger settings.
func WithBatch(b BatchConfig) Option {
	return func(c *Config) { c.Batch = b }
}

// WithHealthCheck overrides the health monitor's probe settings.
func WithHealthCheck(h HealthCheckConfig) Option {
	return func(c *Config) { c.HealthCheck = h }
}

// WithAuth overrides the auth adapter's scopes/auto-refresh settings.
func WithAuth(a AuthConfig) Option {
	return func(c *Config) { c.Auth = a }
}

// WithCircuitBreaker overrides the circuit breaker's thresholds.
func WithCircuitBreaker(cb CircuitBreakerConfig) Option {
	return func(c *Config) { c.CircuitBreaker = cb }
}

// WithDocumentChunker overrides the chunker's default size/overlap.
func WithDocumentChunker(dc DocumentChunkerConfig) Option {
	return func(c *Config) { c.DocumentChunker = dc }
}

// WithLogging overrides the shared logger's level/format/source.
func WithLogging(l LoggingConfig) Option {
	return func(c *Config) { c.Logging = l }
}

// Build returns New() with every opt applied, in order.
func Build(opts ...Option) *Config {
	c := New()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads and parses a YAML config file at path and merges it over
// New()'s defaults as mergeWith describes. A missing file is not an
// error: New()'s defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := New()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero fields onto c, so a YAML file
// only needs to name the fields it overrides. The exceptions are the
// booleans PreserveOrder, IncludeSystemMetrics, CheckAuthentication and
// AddSource, which are always copied from other (one the file omits
// reads as false), and Auth.AutoRefresh, which is not read from other.
func (c *Config) mergeWith(other *Config) {
	if other.RetrievalCache.MaxSize != 0 {
		c.RetrievalCache.MaxSize = other.RetrievalCache.MaxSize
	}

	if other.Batch.MaxBatchSize != 0 {
		c.Batch.MaxBatchSize = other.Batch.MaxBatchSize
	}
	if other.Batch.BatchTimeout != 0 {
		c.Batch.BatchTimeout = other.Batch.BatchTimeout
	}
	if other.Batch.RequestTimeout != 0 {
		c.Batch.RequestTimeout = other.Batch.RequestTimeout
	}
	c.Batch.PreserveOrder = other.Batch.PreserveOrder

	if other.HealthCheck.Timeout != 0 {
		c.HealthCheck.Timeout = other.HealthCheck.Timeout
	}
	if other.HealthCheck.MaxRetries != 0 {
		c.HealthCheck.MaxRetries = other.HealthCheck.MaxRetries
	}
	if other.HealthCheck.RetryDelay != 0 {
		c.HealthCheck.RetryDelay = other.HealthCheck.RetryDelay
	}
	if len(other.HealthCheck.ExcludeComponents) > 0 {
		c.HealthCheck.ExcludeComponents = other.HealthCheck.ExcludeComponents
	}
	c.HealthCheck.IncludeSystemMetrics = other.HealthCheck.IncludeSystemMetrics
	c.HealthCheck.CheckAuthentication = other.HealthCheck.CheckAuthentication

	if len(other.Auth.Scopes) > 0 {
		c.Auth.Scopes = other.Auth.Scopes
	}

	if other.CircuitBreaker.FailureThreshold != 0 {
		c.CircuitBreaker.FailureThreshold = other.CircuitBreaker.FailureThreshold
	}
	if other.CircuitBreaker.ResetTimeout != 0 {
		c.CircuitBreaker.ResetTimeout = other.CircuitBreaker.ResetTimeout
	}
	if other.CircuitBreaker.HalfOpenTimeout != 0 {
		c.CircuitBreaker.HalfOpenTimeout = other.CircuitBreaker.HalfOpenTimeout
	}
	if other.CircuitBreaker.HalfOpenSuccessThreshold != 0 {
		c.CircuitBreaker.HalfOpenSuccessThreshold = other.CircuitBreaker.HalfOpenSuccessThreshold
	}

	if other.DocumentChunker.DefaultChunkSize != 0 {
		c.DocumentChunker.DefaultChunkSize = other.DocumentChunker.DefaultChunkSize
	}
	if other.DocumentChunker.DefaultChunkOverlap != 0 {
		c.DocumentChunker.DefaultChunkOverlap = other.DocumentChunker.DefaultChunkOverlap
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
	c.Logging.AddSource = other.Logging.AddSource
}

// Validate rejects configuration values no component could act on.
func (c *Config) Validate() error {
	if c.RetrievalCache.MaxSize < 0 {
		return fmt.Errorf("retrieval_cache.max_size must be non-negative, got %d", c.RetrievalCache.MaxSize)
	}
	if c.Batch.MaxBatchSize < 0 {
		return fmt.Errorf("batch.max_batch_size must be non-negative, got %d", c.Batch.MaxBatchSize)
	}
	if c.Batch.BatchTimeout < 0 {
		return fmt.Errorf("batch.batch_timeout must be non-negative, got %s", c.Batch.BatchTimeout)
	}
	if c.Batch.RequestTimeout < 0 {
		return fmt.Errorf("batch.request_timeout must be non-negative, got %s", c.Batch.RequestTimeout)
	}
	if c.HealthCheck.MaxRetries < 0 {
		return fmt.Errorf("health_check.max_retries must be non-negative, got %d", c.HealthCheck.MaxRetries)
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be positive, got %d", c.CircuitBreaker.FailureThreshold)
	}
	if c.CircuitBreaker.HalfOpenSuccessThreshold <= 0 {
		return fmt.Errorf("circuit_breaker.half_open_success_threshold must be positive, got %d", c.CircuitBreaker.HalfOpenSuccessThreshold)
	}
	if c.DocumentChunker.DefaultChunkSize <= 0 {
		return fmt.Errorf("document_chunker.default_chunk_size must be positive, got %d", c.DocumentChunker.DefaultChunkSize)
	}
	if c.DocumentChunker.DefaultChunkOverlap >= c.DocumentChunker.DefaultChunkSize {
		return fmt.Errorf("document_chunker.default_chunk_overlap must be smaller than default_chunk_size")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes c to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RPCBatchConfig projects BatchConfig onto rpcbatch.Config.
func (c *Config) RPCBatchConfig() rpcbatch.Config {
	return rpcbatch.Config{
		MaxBatchSize:   c.Batch.MaxBatchSize,
		BatchTimeout:   c.Batch.BatchTimeout,
		RequestTimeout: c.Batch.RequestTimeout,
	}
}

// HealthConfig projects HealthCheckConfig onto health.Config.
func (c *Config) HealthConfig() health.Config {
	excluded := make(map[string]bool, len(c.HealthCheck.ExcludeComponents))
	for _, id := range c.HealthCheck.ExcludeComponents {
		excluded[id] = true
	}
	return health.Config{
		Timeout:              c.HealthCheck.Timeout,
		MaxRetries:           c.HealthCheck.MaxRetries,
		RetryDelay:           c.HealthCheck.RetryDelay,
		IncludeSystemMetrics: c.HealthCheck.IncludeSystemMetrics,
		ExcludeComponents:    excluded,
		CheckAuthentication:  c.HealthCheck.CheckAuthentication,
	}
}

// MCPAuthConfig projects AuthConfig onto mcpauth.Config.
func (c *Config) MCPAuthConfig() mcpauth.Config {
	return mcpauth.Config{
		DefaultScopes: c.Auth.Scopes,
		AutoRefresh:   c.Auth.AutoRefresh,
	}
}

// CircuitSettings projects CircuitBreakerConfig onto circuit.Settings.
func (c *Config) CircuitSettings() circuit.Settings {
	return circuit.Settings{
		FailureThreshold:         c.CircuitBreaker.FailureThreshold,
		ResetTimeout:             c.CircuitBreaker.ResetTimeout,
		HalfOpenTimeout:          c.CircuitBreaker.HalfOpenTimeout,
		HalfOpenSuccessThreshold: c.CircuitBreaker.HalfOpenSuccessThreshold,
	}
}

// LogHandlerConfig projects LoggingConfig onto logging.Config.
func (c *Config) LogHandlerConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.AddSource,
	}
}

// ChunkerOptions projects DocumentChunkerConfig onto chunk.Options,
// for callers that don't supply their own per-call chunk size/overlap.
func (c *Config) ChunkerOptions() chunk.Options {
	return chunk.Options{
		ChunkSize: c.DocumentChunker.DefaultChunkSize,
		Overlap:   c.DocumentChunker.DefaultChunkOverlap,
	}
}
