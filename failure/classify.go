package failure

import (
	"context"
	"errors"
	"maps"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// RetryAfterer is implemented by errors that carry a provider retry hint.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

var statusPattern = regexp.MustCompile(`status(?: code)?[:=]?\s*(\d{3})`)

var (
	quotaFragments      = []string{"insufficient_quota", "exceeded your current quota", "quota exceeded", "quota"}
	rateFragments       = []string{"rate limit", "rate_limit", "ratelimit", "too many requests"}
	credentialFragments = []string{"invalid api key", "incorrect api key", "invalid_api_key", "unauthorized", "authentication", "permission denied"}
	timeoutFragments    = []string{"timeout", "timed out", "deadline exceeded"}
	serverFragments     = []string{"internal server error", "bad gateway", "service unavailable", "server error", "overloaded", "connection reset", "connection refused", "unexpected eof"}
	requestFragments    = []string{"bad request", "invalid request", "invalid_request", "unprocessable", "not found", "unsupported"}
)

// Classify maps err to a ClassifiedError. attrs are copied into the result's
// Context. A nil err returns nil; anything unrecognized is KindUnknown.
func Classify(err error, operation string, attrs map[string]any) *ClassifiedError {
	if err == nil {
		return nil
	}

	if ce, ok := As(err); ok {
		if operation != "" && ce.Operation == "" {
			ce = ce.WithOperation(operation)
		}
		if len(attrs) > 0 {
			ce = ce.clone()
			for k, v := range attrs {
				if _, exists := ce.Context[k]; !exists {
					ce.Context[k] = v
				}
			}
		}
		return ce
	}

	ctx := make(map[string]any, len(attrs)+2)
	maps.Copy(ctx, attrs)

	kind := classifyKind(err, ctx)
	return New(kind, operation, err, ctx)
}

func classifyKind(err error, ctx map[string]any) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())

	var ra RetryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			ctx[ContextRetryAfter] = int(d.Round(time.Second).Seconds())
		}
	}

	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		ctx[ContextStatusCode] = sc.StatusCode()
		return kindFromStatus(sc.StatusCode(), msg)
	}

	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 400 {
			ctx[ContextStatusCode] = code
			return kindFromStatus(code, msg)
		}
	}

	return kindFromMessage(msg)
}

func kindFromStatus(code int, msg string) Kind {
	switch {
	case code == 429:
		if containsAny(msg, quotaFragments) {
			return KindQuotaExceeded
		}
		return KindRateLimited
	case code == 401 || code == 403:
		return KindInvalidCredential
	case code == 408 || code == 504:
		return KindTimeout
	case code >= 500:
		return KindServerError
	case code >= 400:
		if code == 402 || containsAny(msg, []string{"insufficient_quota"}) {
			return KindQuotaExceeded
		}
		return KindInvalidRequest
	default:
		return kindFromMessage(msg)
	}
}

func kindFromMessage(msg string) Kind {
	switch {
	case containsAny(msg, quotaFragments):
		return KindQuotaExceeded
	case containsAny(msg, rateFragments):
		return KindRateLimited
	case containsAny(msg, credentialFragments):
		return KindInvalidCredential
	case containsAny(msg, timeoutFragments):
		return KindTimeout
	case containsAny(msg, serverFragments):
		return KindServerError
	case containsAny(msg, requestFragments):
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
