package failure

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// Kind is the closed set of failure categories.
type Kind string

const (
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindRateLimited       Kind = "rate_limited"
	KindInvalidCredential Kind = "invalid_credential"
	KindTimeout           Kind = "timeout"
	KindServerError       Kind = "server_error"
	KindInvalidRequest    Kind = "invalid_request"
	KindUnknown           Kind = "unknown"
)

// Context keys set by the classifier.
const (
	ContextStatusCode = "status_code"
	ContextRetryAfter = "retry_after_seconds"
	ContextAttempts   = "attempts"
)

// ShouldRetry returns the default retry hint for the kind.
func (k Kind) ShouldRetry() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindServerError:
		return true
	default:
		return false
	}
}

func (k Kind) userMessage(operation string, retryAfter time.Duration) string {
	switch k {
	case KindQuotaExceeded:
		return "API quota exhausted. Check the provider billing plan and add credits."
	case KindRateLimited:
		if retryAfter > 0 {
			return fmt.Sprintf("Too many requests to the provider. Retry in %d seconds.", int(retryAfter.Seconds()))
		}
		return "Too many requests to the provider. Retry later."
	case KindInvalidCredential:
		return "Invalid API credentials. Check the configured API key."
	case KindTimeout:
		return fmt.Sprintf("The request timed out during %s.", operation)
	case KindServerError:
		return "The provider is temporarily unavailable. Retry in a few minutes."
	case KindInvalidRequest:
		return fmt.Sprintf("Invalid request during %s. Check the input.", operation)
	default:
		return fmt.Sprintf("Error during %s. Retry later.", operation)
	}
}

// ClassifiedError is a failure normalized into a Kind with a retry hint and
// a user-facing message. Values are not modified after creation; the With
// methods return copies.
type ClassifiedError struct {
	Kind        Kind
	Message     string
	UserMessage string
	Operation   string
	ShouldRetry bool
	Context     map[string]any
	Attempts    int
	err         error
}

// New creates a ClassifiedError of the given kind wrapping err.
func New(kind Kind, operation string, err error, context map[string]any) *ClassifiedError {
	ctx := make(map[string]any, len(context))
	maps.Copy(ctx, context)

	var retryAfter time.Duration
	if secs, ok := ctx[ContextRetryAfter].(int); ok {
		retryAfter = time.Duration(secs) * time.Second
	}

	msg := string(kind)
	if operation != "" {
		msg = operation + ": " + msg
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	return &ClassifiedError{
		Kind:        kind,
		Message:     msg,
		UserMessage: kind.userMessage(operation, retryAfter),
		Operation:   operation,
		ShouldRetry: kind.ShouldRetry(),
		Context:     ctx,
		err:         err,
	}
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.err
}

// RetryAfter returns the provider's requested wait, or zero.
func (e *ClassifiedError) RetryAfter() time.Duration {
	if secs, ok := e.Context[ContextRetryAfter].(int); ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// WithAttempts returns a copy recording how many attempts were made.
func (e *ClassifiedError) WithAttempts(attempts int) *ClassifiedError {
	c := e.clone()
	c.Attempts = attempts
	c.Context[ContextAttempts] = attempts
	return c
}

// WithOperation returns a copy attributed to operation.
func (e *ClassifiedError) WithOperation(operation string) *ClassifiedError {
	c := e.clone()
	c.Operation = operation
	return c
}

func (e *ClassifiedError) clone() *ClassifiedError {
	c := *e
	c.Context = make(map[string]any, len(e.Context)+1)
	maps.Copy(c.Context, e.Context)
	return &c
}

// As returns the ClassifiedError in err's chain, if any.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the kind of err, classifying it if needed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err, "", nil).Kind
}

// UserMessage returns the user-facing message for err.
func UserMessage(err error, operation string) string {
	if err == nil {
		return ""
	}
	return Classify(err, operation, nil).UserMessage
}
