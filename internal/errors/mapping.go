package errors

import "strings"

// ProviderMapper upgrades a generic error into a specific taxonomy Kind by
// inspecting its message, tagging the result with the provider's name.
// This mirrors real LLM/vector-store SDKs that report everything as a
// generic HTTP or RPC error and leave classification to the caller.
type ProviderMapper struct {
	name string
}

// NewProviderMapper creates a mapper that tags upgraded errors with name.
func NewProviderMapper(name string) *ProviderMapper {
	return &ProviderMapper{name: name}
}

// Map inspects err's message for known substrings and returns a specific
// *Error kind when recognized, or a generic KindProvider error otherwise.
// A nil err returns nil.
func (m *ProviderMapper) Map(err error) *Error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "api key") || strings.Contains(lower, "apikey") || strings.Contains(lower, "unauthorized"):
		return AuthenticationError(msg, err).WithProvider(m.name)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return NetworkError(429, msg, err).WithProvider(m.name)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return TimeoutError(0, msg, err).WithProvider(m.name)
	case strings.Contains(lower, "not found"):
		return ResourceNotFoundError("", "", msg).WithProvider(m.name)
	case strings.Contains(lower, "forbidden") || strings.Contains(lower, "permission"):
		return PermissionError(msg, err).WithProvider(m.name)
	default:
		return ProviderError(m.name, msg, err)
	}
}
