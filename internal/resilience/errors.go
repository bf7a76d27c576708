// Package resilience provides the refresh failure taxonomy plus retry and
// circuit breaker patterns for the fetch and persistence paths.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// FailureKind classifies why an item refresh (or one of its stages) failed.
type FailureKind string

const (
	// FailNoSignal means extraction found nothing usable. A valid outcome,
	// not an error, until the fetch controller exhausts its attempts.
	FailNoSignal FailureKind = "no_signal"
	// FailBlocked means an anti-automation defense was detected.
	FailBlocked FailureKind = "blocked"
	// FailNetwork is a transient I/O failure.
	FailNetwork FailureKind = "network_error"
	// FailImplausible means a candidate value was rejected by the
	// plausibility filter.
	FailImplausible FailureKind = "implausible_value"
	// FailPersistence means a store write failed; the whole item update is
	// retried from a fresh fetch since partial state may be stale.
	FailPersistence FailureKind = "persistence_error"
	// FailNotification means the notifier reported failure. Never fails the
	// item update; the alert stays armed for the next qualifying price.
	FailNotification FailureKind = "notification_failure"
)

// RefreshError carries a failure kind and a diagnostic reason through the
// per-item update path.
type RefreshError struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Reason + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Reason
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Failure builds a RefreshError.
func Failure(kind FailureKind, reason string, err error) *RefreshError {
	return &RefreshError{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the failure kind from an error chain. Errors outside the
// taxonomy classify as network errors when transient, otherwise no_signal.
func KindOf(err error) FailureKind {
	var re *RefreshError
	if errors.As(err, &re) {
		return re.Kind
	}
	if IsTransient(err) {
		return FailNetwork
	}
	return FailNoSignal
}

// IsTransient returns true if the error chain indicates a transient
// network-level failure that is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var re *RefreshError
	if errors.As(err, &re) {
		return re.Kind == FailNetwork || re.Kind == FailBlocked
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
