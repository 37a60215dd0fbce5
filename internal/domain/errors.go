package domain

import "fmt"

// Sentinel errors for the domain layer.
var (
	ErrToolNotFound      = fmt.Errorf("tool not found")
	ErrEmptyResponse     = fmt.Errorf("model returned neither content nor tool calls")
	ErrMalformedToolArgs = fmt.Errorf("tool arguments are not valid JSON")
	ErrProviderNotFound  = fmt.Errorf("llm provider not found")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrHistoryStore      = fmt.Errorf("history store failed")
	ErrPromptTemplate    = fmt.Errorf("prompt template unavailable")

	// Provider transport errors, mapped from HTTP status codes.
	ErrRateLimit     = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrProviderError = fmt.Errorf("provider error")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Assistant.Reply")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
