package retry

import (
	"context"
	"errors"
	"strings"
)

// Kind buckets an error into the shared provider/platform taxonomy.
// The same kinds are used by content providers and publish adapters so the
// executor can make one retry decision for both.
type Kind string

const (
	KindAuth      Kind = "auth_error"
	KindRateLimit Kind = "rate_limit"
	KindNetwork   Kind = "network_error"
	KindContent   Kind = "content_error"
	KindAPI       Kind = "api_error"
	KindNotFound  Kind = "not_found"
	KindQuota     Kind = "quota_exceeded"
	KindTimeout   Kind = "timeout"
	KindUnknown   Kind = "unknown"
)

// Classified is implemented by errors that carry their own kind
// (ProviderError, PlatformError). Typed classification wins over the
// string heuristics below.
type Classified interface {
	RetryKind() Kind
}

// Retryable reports whether an error of this kind is worth retrying.
// Terminal kinds (auth, quota, not-found, content policy) stop immediately;
// everything else, including unknown, is availability-biased retryable.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuth, KindQuota, KindNotFound, KindContent:
		return false
	default:
		return true
	}
}

// Classify buckets an error into a Kind. Typed errors are trusted first,
// then message heuristics.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var classified Classified
	if errors.As(err, &classified) {
		return classified.RetryKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "unauthorized", "401", "invalid api key", "forbidden", "403", "authentication"):
		return KindAuth
	case containsAny(msg, "quota exceeded", "quota", "billing"):
		return KindQuota
	case containsAny(msg, "rate limit", "too many requests", "429"):
		return KindRateLimit
	case containsAny(msg, "not found", "404"):
		return KindNotFound
	case containsAny(msg, "content policy", "blocked by policy", "safety", "moderation"):
		return KindContent
	case containsAny(msg, "timeout", "context deadline", "deadline exceeded"):
		return KindTimeout
	case containsAny(msg, "connection", "network", "unreachable", "no such host", "i/o", "eof", "broken pipe"):
		return KindNetwork
	case containsAny(msg, "500", "502", "503", "504", "internal server error", "bad gateway", "unavailable", "overload", "temporar"):
		return KindAPI
	default:
		return KindUnknown
	}
}

func containsAny(msg string, hints ...string) bool {
	for _, h := range hints {
		if strings.Contains(msg, h) {
			return true
		}
	}
	return false
}
