// Package errors provides the classified error taxonomy shared by every
// component in ragcore: a fixed set of Kinds, structured context per kind,
// and an ErrorHandler that converts, logs, and dispatches callbacks for
// whatever a backend call throws.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies an error into one of a fixed set of categories.
// Consumers should switch on Kind rather than parsing messages.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindAuthentication   Kind = "authentication"
	KindPermission       Kind = "permission"
	KindValidation       Kind = "validation"
	KindResourceNotFound Kind = "resource_not_found"
	KindTimeout          Kind = "timeout"
	KindProvider         Kind = "provider"
	KindClient           Kind = "client"
	KindServer           Kind = "server"
	KindUnknown          Kind = "unknown"
)

// Error is the structured error type used across ragcore.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// StatusCode is set for KindNetwork when an HTTP-like status is known.
	StatusCode int

	// Field is set for KindValidation when the offending field is known.
	Field string

	// ResourceType/ResourceID are set for KindResourceNotFound.
	ResourceType string
	ResourceID   string

	// Duration is set for KindTimeout.
	Duration time.Duration

	// Provider is set for KindProvider, and is also attached (non-empty)
	// whenever a provider mapper upgrades a generic error.
	Provider string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" && e.Kind != KindProvider {
		return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match any *Error target of the same Kind; messages and
// context fields are not compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithProvider tags the error with a provider name and returns it for chaining.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

func NetworkError(statusCode int, message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Cause: cause, StatusCode: statusCode}
}

func AuthenticationError(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Cause: cause}
}

func PermissionError(message string, cause error) *Error {
	return &Error{Kind: KindPermission, Message: message, Cause: cause}
}

func ValidationError(field, message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Cause: cause, Field: field}
}

func ResourceNotFoundError(resourceType, resourceID, message string) *Error {
	return &Error{Kind: KindResourceNotFound, Message: message, ResourceType: resourceType, ResourceID: resourceID}
}

func TimeoutError(d time.Duration, message string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Cause: cause, Duration: d}
}

func ProviderError(name, message string, cause error) *Error {
	return &Error{Kind: KindProvider, Message: message, Cause: cause, Provider: name}
}

func ClientError(message string, cause error) *Error {
	return &Error{Kind: KindClient, Message: message, Cause: cause}
}

func ServerError(message string, cause error) *Error {
	return &Error{Kind: KindServer, Message: message, Cause: cause}
}

func UnknownError(message string, cause error) *Error {
	return &Error{Kind: KindUnknown, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
