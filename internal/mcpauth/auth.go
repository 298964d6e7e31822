// Package mcpauth implements the MCP auth adapter (C12): OAuth
// 2.1-style token validation, scope enforcement, per-client auth
// context tracking, and scheduled refresh.
package mcpauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/mcpclient"
)

// ProtocolVersion is stamped into success metadata for every
// authenticate call, per the MCP spec version this adapter targets.
const ProtocolVersion = "2025-03-26"

// AuthResult is what TokenValidator.ValidateToken returns.
type AuthResult struct {
	IsAuthenticated bool
	Error           string
	Scopes          []string
	ExpiresAt       time.Time
}

// TokenValidator checks a bearer token against required scopes.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string, requiredScopes []string) (AuthResult, error)
}

// AuthContext is the adapter's per-client record of an authenticated
// session. Invariant: IsAuthenticated implies now < Token.Expiry and
// requiredScopes is a subset of Scopes (checked at authenticate time,
// not re-checked on every read).
type AuthContext struct {
	ClientID        string
	IsAuthenticated bool
	Token           oauth2.Token
	Scopes          []string
	Metadata        map[string]any
}

// clientAuth bundles an AuthContext with the refresh timer scheduled
// against it, so the timer can be cancelled when the context is
// removed.
type clientAuth struct {
	ctx         AuthContext
	refreshTime *time.Timer
}

// Config controls the adapter's default scope requirement and
// auto-refresh behavior.
type Config struct {
	DefaultScopes []string
	AutoRefresh   bool
}

// TokenSource supplies the current bearer token for a client, so the
// adapter can re-validate on refresh without the caller re-supplying
// it each time.
type TokenSource interface {
	Token(ctx context.Context, clientID string) (string, error)
}

// Adapter is the MCP auth adapter: validates tokens, enables
// authentication on MCP clients that support it, and keeps per-client
// AuthContexts fresh via scheduled refresh.
type Adapter struct {
	validator TokenValidator
	tokens    TokenSource
	config    Config
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientAuth
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// New creates an auth adapter backed by validator and tokens.
func New(validator TokenValidator, tokens TokenSource, cfg Config, opts ...Option) *Adapter {
	a := &Adapter{
		validator: validator,
		tokens:    tokens,
		config:    cfg,
		logger:    slog.Default(),
		clients:   make(map[string]*clientAuth),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate validates clientID's current token against the
// adapter's default scopes. On success it enables authentication on
// mcpClient (if it supports AuthEnabler), stores the resulting
// AuthContext, and — if AutoRefresh is set — schedules a refresh at
// exp-60s.
func (a *Adapter) Authenticate(ctx context.Context, clientID string, mcpClient mcpclient.McpClient) (AuthContext, error) {
	token, err := a.tokens.Token(ctx, clientID)
	if err != nil {
		return AuthContext{}, rerrors.AuthenticationError("failed to obtain token for client", err)
	}

	result, err := a.validator.ValidateToken(ctx, token, a.config.DefaultScopes)
	if err != nil {
		return AuthContext{}, rerrors.AuthenticationError("token validation failed", err)
	}
	if !result.IsAuthenticated {
		return AuthContext{}, rerrors.AuthenticationError(result.Error, nil)
	}

	if enabler, ok := mcpClient.(mcpclient.AuthEnabler); ok {
		if err := enabler.EnableAuthentication(validatorAdapter{a.validator, a.config.DefaultScopes}); err != nil {
			return AuthContext{}, rerrors.AuthenticationError("failed to enable authentication on client", err)
		}
	}

	authCtx := AuthContext{
		ClientID:        clientID,
		IsAuthenticated: true,
		Token:           oauth2.Token{AccessToken: token, Expiry: result.ExpiresAt},
		Scopes:          result.Scopes,
		Metadata: map[string]any{
			"protocol_version": ProtocolVersion,
			"auth_method":      "oauth2",
			"client_id":        clientID,
		},
	}

	a.mu.Lock()
	if existing, ok := a.clients[clientID]; ok && existing.refreshTime != nil {
		existing.refreshTime.Stop()
	}
	ca := &clientAuth{ctx: authCtx}
	a.clients[clientID] = ca
	a.mu.Unlock()

	if a.config.AutoRefresh {
		a.scheduleRefresh(clientID, result.ExpiresAt)
	}

	return authCtx, nil
}

func (a *Adapter) scheduleRefresh(clientID string, expiresAt time.Time) {
	delay := time.Until(expiresAt) - 60*time.Second
	if delay < 0 {
		delay = 0
	}
	timer := time.AfterFunc(delay, func() {
		if _, err := a.RefreshToken(context.Background(), clientID); err != nil {
			a.logger.Warn("scheduled token refresh failed", "client_id", clientID, "error", err)
		}
	})

	a.mu.Lock()
	if ca, ok := a.clients[clientID]; ok {
		ca.refreshTime = timer
	} else {
		timer.Stop()
	}
	a.mu.Unlock()
}

// RefreshToken re-validates clientID's token. On success the stored
// AuthContext is extended (and a new refresh is scheduled if
// AutoRefresh is set); on failure the context is removed.
func (a *Adapter) RefreshToken(ctx context.Context, clientID string) (AuthContext, error) {
	token, err := a.tokens.Token(ctx, clientID)
	if err != nil {
		a.RemoveAuth(clientID)
		return AuthContext{}, rerrors.AuthenticationError("failed to obtain token for refresh", err)
	}

	result, err := a.validator.ValidateToken(ctx, token, a.config.DefaultScopes)
	if err != nil || !result.IsAuthenticated {
		a.RemoveAuth(clientID)
		msg := result.Error
		if msg == "" && err != nil {
			msg = err.Error()
		}
		return AuthContext{}, rerrors.AuthenticationError(msg, err)
	}

	authCtx := AuthContext{
		ClientID:        clientID,
		IsAuthenticated: true,
		Token:           oauth2.Token{AccessToken: token, Expiry: result.ExpiresAt},
		Scopes:          result.Scopes,
		Metadata: map[string]any{
			"protocol_version": ProtocolVersion,
			"auth_method":      "oauth2",
			"client_id":        clientID,
		},
	}

	a.mu.Lock()
	if existing, ok := a.clients[clientID]; ok && existing.refreshTime != nil {
		existing.refreshTime.Stop()
	}
	a.clients[clientID] = &clientAuth{ctx: authCtx}
	a.mu.Unlock()

	if a.config.AutoRefresh {
		a.scheduleRefresh(clientID, result.ExpiresAt)
	}
	return authCtx, nil
}

// HasValidAuth reports whether clientID has a currently-stored,
// authenticated context.
func (a *Adapter) HasValidAuth(clientID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ca, ok := a.clients[clientID]
	return ok && ca.ctx.IsAuthenticated
}

// GetAuthContext returns clientID's stored AuthContext, if any.
func (a *Adapter) GetAuthContext(clientID string) (AuthContext, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ca, ok := a.clients[clientID]
	if !ok {
		return AuthContext{}, false
	}
	return ca.ctx, true
}

// RemoveAuth discards clientID's stored context and cancels any
// pending refresh timer.
func (a *Adapter) RemoveAuth(clientID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ca, ok := a.clients[clientID]; ok {
		if ca.refreshTime != nil {
			ca.refreshTime.Stop()
		}
		delete(a.clients, clientID)
	}
}

// CheckOAuth21Compliance reports whether client exposes the
// authentication-enablement capability an OAuth 2.1-compliant
// integration requires.
func (a *Adapter) CheckOAuth21Compliance(client mcpclient.McpClient) bool {
	_, ok := client.(mcpclient.AuthEnabler)
	return ok
}

// Dispose cancels every pending refresh timer and clears all stored
// contexts.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ca := range a.clients {
		if ca.refreshTime != nil {
			ca.refreshTime.Stop()
		}
	}
	a.clients = make(map[string]*clientAuth)
}

// validatorAdapter narrows a mcpauth.TokenValidator down to the
// single-method mcpclient.TokenValidator shape an McpClient's
// EnableAuthentication hook expects.
type validatorAdapter struct {
	validator TokenValidator
	scopes    []string
}

func (v validatorAdapter) Validate(ctx context.Context, token string) (bool, error) {
	result, err := v.validator.ValidateToken(ctx, token, v.scopes)
	if err != nil {
		return false, err
	}
	return result.IsAuthenticated, nil
}
