package imagegen

import (
	"errors"
	"strings"
)

var (
	// ErrSafetyBlocked means the model refused the prompt. Not retried.
	ErrSafetyBlocked = errors.New("prompt blocked by safety filter")
	// ErrRateLimited means the quota stayed exhausted through every retry.
	ErrRateLimited = errors.New("image model rate limited")
	// ErrNoImage means the model answered without image data.
	ErrNoImage = errors.New("no image in response")
)

// Kind classifies an upstream failure.
type Kind int

const (
	KindGeneric Kind = iota
	KindSafety
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindSafety:
		return "safety"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "generic"
	}
}

var (
	rateLimitMarkers = []string{"429", "resource_exhausted", "quota", "rate limit", "ratelimit", "too many requests"}
	safetyMarkers    = []string{"blocked", "safety", "prohibited_content"}
)

// Classify maps an error onto a Kind. Sentinels win; otherwise the message
// is matched, since the SDK surfaces most upstream failures as text.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}
	switch {
	case errors.Is(err, ErrSafetyBlocked):
		return KindSafety
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	}

	msg := strings.ToLower(err.Error())
	for _, m := range safetyMarkers {
		if strings.Contains(msg, m) {
			return KindSafety
		}
	}
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return KindRateLimit
		}
	}
	return KindGeneric
}
