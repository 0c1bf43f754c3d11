package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// DefaultRetryablePatterns are message substrings that mark a failure as
// transient when no type information survives the transport. Some providers
// surface rate limits and overload only as text.
var DefaultRetryablePatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"timeout",
	"timed out",
	"overloaded",
	"capacity",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
}

// Retryable reports whether err is worth retrying on the same model. The
// type-based check covers network transport failures; the substring check
// covers providers that only report text. extraTargets are matched with
// errors.Is, extraPatterns extend the default substring list. Anything that
// matches neither (validation, auth, malformed requests) is terminal for the
// current model.
func Retryable(err error, extraTargets []error, extraPatterns []string) bool {
	if err == nil {
		return false
	}
	if retryableType(err) {
		return true
	}
	for _, target := range extraTargets {
		if target != nil && errors.Is(err, target) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range DefaultRetryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	for _, p := range extraPatterns {
		if p != "" && strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func retryableType(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var tlsErr tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Kind labels an error for attempt records and metrics. Labels are coarse;
// the full message travels alongside in the ledger.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection_refused"
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return "connection_reset"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var tlsErr tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return "tls"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return "rate_limited"
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "capacity"):
		return "server_error"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "timeout"
	}
	return "other"
}
