// Package reconnect decides what a stream failure means and whether another
// attempt is allowed. Classification is pure: no I/O, no clock, no state.
// The backoff delay itself belongs to the caller's loop.
package reconnect

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tradeguard/internal/domain"
)

// Category buckets a connection failure by how the reconnect loop must react.
type Category string

const (
	// CategoryAuthFailure means the credentials are bad. Retrying hammers
	// the exchange with invalid signatures and risks a key lockout.
	CategoryAuthFailure Category = "auth_failure"

	// CategoryRateLimited means the exchange asked us to back off.
	CategoryRateLimited Category = "rate_limited"

	// CategoryTransient is everything else: network blips, timeouts,
	// server hiccups. The default when evidence is inconclusive, because
	// a wrong auth verdict would halt reconnection needlessly.
	CategoryTransient Category = "transient"
)

// Retryable reports whether a failure of this category may be retried.
func (c Category) Retryable() bool {
	return c != CategoryAuthFailure
}

// Failure is the classification verdict for one error.
type Failure struct {
	Category   Category
	StatusCode int    // HTTP status when one was found, 0 otherwise
	Rule       string // Which rule matched (status:401, text:429, keyword:..., default)
}

// ErrRetriesExhausted is returned by EnsureRetryAllowed when attempts
// exceed the configured ceiling. Callers must stop reconnecting and
// escalate instead of looping forever against a dead endpoint.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// statusPattern matches bare HTTP status codes of interest on word
// boundaries, so "14010" or "status=4290" never false-positive.
var statusPattern = regexp.MustCompile(`\b(401|403|429)\b`)

// Keyword lists are ordered most-specific first; the first hit names the
// rule. All matching is against the lowercased error text.
var (
	authKeywords = []string{
		"unauthorized",
		"forbidden",
		"invalid key",
		"api key",
		"apikey",
		"credential",
		"signature",
		"permission",
		"auth",
	}
	rateKeywords = []string{
		"rate limit",
		"ratelimit",
		"rate-limit",
		"too many request",
		"throttle",
	}
)

// Errors carrying a structured HTTP status expose one of these. Probing
// interfaces instead of concrete types keeps vendor error types out of
// this package.
type statusCoder interface{ StatusCode() int }
type httpStatusCoder interface{ HTTPStatusCode() int }

// Classify buckets err into a Failure. Rules are applied in order:
// structured status code anywhere in the chain, then a word-boundary
// text scan for 401/403/429, then keyword lists (auth before rate),
// then the transient default.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Category: CategoryTransient, Rule: "default"}
	}

	code, hasCode := statusFromChain(err)
	if hasCode {
		switch code {
		case 401, 403:
			return Failure{Category: CategoryAuthFailure, StatusCode: code, Rule: "status:" + strconv.Itoa(code)}
		case 429:
			return Failure{Category: CategoryRateLimited, StatusCode: code, Rule: "status:429"}
		}
		// Any other status falls through to the text rules with the
		// code kept for observability.
	}

	text := err.Error()
	if m := statusPattern.FindString(text); m != "" {
		n, _ := strconv.Atoi(m)
		if !hasCode {
			code = n
		}
		if n == 429 {
			return Failure{Category: CategoryRateLimited, StatusCode: code, Rule: "text:" + m}
		}
		return Failure{Category: CategoryAuthFailure, StatusCode: code, Rule: "text:" + m}
	}

	lower := strings.ToLower(text)
	for _, kw := range authKeywords {
		if strings.Contains(lower, kw) {
			return Failure{Category: CategoryAuthFailure, StatusCode: code, Rule: "keyword:" + kw}
		}
	}
	for _, kw := range rateKeywords {
		if strings.Contains(lower, kw) {
			return Failure{Category: CategoryRateLimited, StatusCode: code, Rule: "keyword:" + kw}
		}
	}

	return Failure{Category: CategoryTransient, StatusCode: code, Rule: "default"}
}

func statusFromChain(err error) (int, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	var hc httpStatusCoder
	if errors.As(err, &hc) {
		return hc.HTTPStatusCode(), true
	}
	return 0, false
}

// EnsureRetryAllowed validates a 1-based attempt number against the budget.
// With maxAttempts = 5 the attempts 1 through 5 pass and 6 fails. A
// non-positive budget is a configuration error, not a retry verdict.
func EnsureRetryAllowed(attempt, maxAttempts int) error {
	if maxAttempts <= 0 {
		return &domain.ConfigError{
			Field: "max_attempts",
			Err:   fmt.Errorf("must be positive, got %d", maxAttempts),
		}
	}
	if attempt > maxAttempts {
		return fmt.Errorf("attempt %d of %d: %w", attempt, maxAttempts, ErrRetriesExhausted)
	}
	return nil
}
