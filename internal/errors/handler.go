package errors

import (
	stderrors "errors"
	"context"
	"log/slog"
	"sync"
)

// Callback is invoked by an ErrorHandler after every classified error.
// A panicking callback is recovered, so it cannot stop the remaining
// callbacks or the Handle call.
type Callback func(*Error)

// ErrorHandler classifies arbitrary errors into the taxonomy, logs them,
// and dispatches registered callbacks. It is safe for concurrent use.
type ErrorHandler struct {
	logger *slog.Logger

	mu        sync.RWMutex
	callbacks []Callback
}

// NewErrorHandler creates a handler that logs through logger.
// A nil logger falls back to slog.Default().
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// OnError registers a callback invoked after every Handle call.
func (h *ErrorHandler) OnError(cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

// Handle classifies err (which may already be a *Error, a context error, or
// an arbitrary error) into the taxonomy, logs it, and dispatches callbacks.
// It returns the classified *Error so callers can inspect Kind.
func (h *ErrorHandler) Handle(err error) *Error {
	if err == nil {
		return nil
	}

	classified := classify(err)

	h.logger.Error("classified error",
		"kind", classified.Kind,
		"message", classified.Message,
		"provider", classified.Provider,
	)

	h.mu.RLock()
	callbacks := make([]Callback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.RUnlock()

	for _, cb := range callbacks {
		safeInvoke(cb, classified)
	}

	return classified
}

func safeInvoke(cb Callback, e *Error) {
	defer func() {
		_ = recover()
	}()
	cb(e)
}

// classify converts a plain error into the taxonomy. Already-classified
// *Error values pass through unchanged.
func classify(err error) *Error {
	var existing *Error
	if stderrors.As(err, &existing) {
		return existing
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(0, err.Error(), err)
	}
	if stderrors.Is(err, context.Canceled) {
		return ClientError(err.Error(), err)
	}

	var ve interface{ InvalidArgument() bool }
	if stderrors.As(err, &ve) {
		return ValidationError("", err.Error(), err)
	}

	var se interface{ InvalidState() bool }
	if stderrors.As(err, &se) {
		return ServerError(err.Error(), err)
	}

	var fe interface{ InvalidFormat() bool }
	if stderrors.As(err, &fe) {
		return ValidationError("", err.Error(), err)
	}

	return UnknownError(err.Error(), err)
}
