package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed search by its originating cause.
type ErrorKind string

// ErrorKind values.
const (
	// KindTransient is a network or provider-side failure; surfaced with a
	// message, no automatic retry.
	KindTransient ErrorKind = "transient"
	// KindQuota is credit/quota exhaustion; non-retryable, the user should
	// check billing.
	KindQuota ErrorKind = "quota"
	// KindRateLimited is provider rate limiting; retryable once via the
	// explicit wait-and-retry affordance.
	KindRateLimited ErrorKind = "rate_limited"
)

// ClassifiedError wraps a provider error with its classification.
type ClassifiedError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error returns the human-readable message.
func (e *ClassifiedError) Error() string {
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the wait-and-retry affordance applies.
func (e *ClassifiedError) Retryable() bool {
	return e.Kind == KindRateLimited
}

// quotaMarkers are message fragments that identify credit/quota exhaustion
// across providers.
var quotaMarkers = []string{
	"quota",
	"billing",
	"insufficient credit",
	"credit balance",
	"payment required",
}

// Classify inspects a provider error and assigns an ErrorKind. Cancellation is
// not an error and yields nil so callers can drop it silently.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		switch oaiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &ClassifiedError{Kind: KindRateLimited, Message: "the provider is rate limiting requests; wait a moment and retry", Err: err}
		case http.StatusPaymentRequired, http.StatusForbidden:
			return &ClassifiedError{Kind: KindQuota, Message: "provider credits are exhausted; check billing", Err: err}
		}
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		switch antErr.StatusCode {
		case http.StatusTooManyRequests:
			return &ClassifiedError{Kind: KindRateLimited, Message: "the provider is rate limiting requests; wait a moment and retry", Err: err}
		case http.StatusPaymentRequired, http.StatusForbidden:
			return &ClassifiedError{Kind: KindQuota, Message: "provider credits are exhausted; check billing", Err: err}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return &ClassifiedError{Kind: KindQuota, Message: "provider credits are exhausted; check billing", Err: err}
		}
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return &ClassifiedError{Kind: KindRateLimited, Message: "the provider is rate limiting requests; wait a moment and retry", Err: err}
	}

	return &ClassifiedError{
		Kind:    KindTransient,
		Message: fmt.Sprintf("search failed: %v", err),
		Err:     err,
	}
}
