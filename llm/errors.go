package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

// ProviderError wraps a transport/provider failure with a user-presentable
// message and, for rate limits, a suggested retry delay parsed from the
// provider message when present.
type ProviderError struct {
	Message    string        // human-readable translation
	StatusCode int           // 0 when unknown
	RetryAfter time.Duration // 0 when the provider gave no hint
	Err        error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err (anywhere in its chain) is a rate-limit or
// overload condition.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 429 || pe.StatusCode == 503
	}
	return false
}

var retryAfterRe = regexp.MustCompile(`(?i)(?:try again|retry)(?: in| after)?\s+([0-9]+(?:\.[0-9]+)?)\s*(ms|s|sec|seconds?|m|min|minutes?)`)

// TranslateProviderError converts a raw provider/transport error into a
// ProviderError with a friendly message. Detection is heuristic: status codes
// when the SDK exposes them, keywords otherwise.
func TranslateProviderError(err error) error {
	if err == nil {
		return nil
	}

	status := 0
	raw := err.Error()
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		if apiErr.Message != "" {
			raw = apiErr.Message
		}
	}

	lower := strings.ToLower(raw)
	rateLimited := status == 429 ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "quota")
	overloaded := status == 503 ||
		strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "server is busy")

	pe := &ProviderError{StatusCode: status, Err: err}

	switch {
	case rateLimited:
		if pe.StatusCode == 0 {
			pe.StatusCode = 429
		}
		pe.RetryAfter = parseRetryAfter(raw)
		if pe.RetryAfter > 0 {
			pe.Message = fmt.Sprintf("The model provider is rate limiting requests. Try again in %s.", pe.RetryAfter)
		} else {
			pe.Message = "The model provider is rate limiting requests. Wait a moment and try again."
		}
	case overloaded:
		if pe.StatusCode == 0 {
			pe.StatusCode = 503
		}
		pe.Message = "The model provider is overloaded right now. Try again shortly."
	case status == 401 || status == 403:
		pe.Message = "The model provider rejected the API key. Check the provider configuration."
	case status >= 500:
		pe.Message = fmt.Sprintf("The model provider returned a server error (%d). Try again shortly.", status)
	default:
		pe.Message = fmt.Sprintf("Model request failed: %s", raw)
	}

	return pe
}

func parseRetryAfter(msg string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch {
	case strings.HasPrefix(strings.ToLower(m[2]), "ms"):
		return time.Duration(value * float64(time.Millisecond))
	case strings.HasPrefix(strings.ToLower(m[2]), "m"):
		return time.Duration(value * float64(time.Minute))
	default:
		return time.Duration(value * float64(time.Second))
	}
}
