package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

var (
	// ErrRateLimited marks provider throttling and oversized payloads.
	ErrRateLimited = errors.New("llm rate limited")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("llm returned empty response")
	// ErrNoProvider is returned when no client is registered for a model.
	ErrNoProvider = errors.New("no llm provider for model")
	// ErrNotConfigured is returned by constructors missing credentials.
	ErrNotConfigured = errors.New("llm provider not configured")
)

var rateLimitMarkers = []string{
	"rate_limit", "rate limit", "429", "413", "resource_exhausted",
	"too many requests", "payload too large", "request too large",
}

// IsRateLimited reports whether err means the provider asked us to slow
// down or shrink the request. Such failures are retried on the same model
// after a backoff.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && throttleStatus(apiErr.HTTPStatusCode) {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && throttleStatus(reqErr.HTTPStatusCode) {
		return true
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) && (throttleStatus(gErr.Code) || gErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil && (throttleStatus(gErrPtr.Code) || gErrPtr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func throttleStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestEntityTooLarge
}
