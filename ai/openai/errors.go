package openai

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/failure"
)

var (
	ErrNoSourceText      = errors.New("invalid request: transcript and caption are both empty")
	ErrEmptyResponse     = errors.New("model returned no choices")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrMissingTitle      = errors.New("recipe has no title")
	ErrNoImageData       = errors.New("image response carried no data")
)

var (
	_ failure.StatusCoder  = (*APIError)(nil)
	_ failure.RetryAfterer = (*APIError)(nil)
)

// APIError is a non-2xx response from an OpenAI-compatible endpoint.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Message string
	Retry   time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) StatusCode() int {
	return e.Status
}

func (e *APIError) RetryAfter() time.Duration {
	return e.Retry
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

const maxErrorBody = 64 << 10

// newAPIError builds an APIError from a failed response. The body is consumed.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		Status: resp.StatusCode,
		Retry:  parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
