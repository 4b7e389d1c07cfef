// Package netutil classifies network failures seen while talking to the
// Telegram Bot API.
package netutil

import (
	"errors"
	"net"
)

// IsTimeout reports whether err, or anything it wraps, is a network timeout.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ShouldRetry reports whether err is a transient transport failure: a
// timeout or a failed dial. API-level errors are never retried here.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsTemporary
}
