package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/surveybot/core/telegram/netutil"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Recipients that will never accept a message. Broadcasts hit these often.
var unreachable = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrChatNotFound,
	tele.ErrKickedFromGroup,
}

// Unreachable reports whether err means the recipient cannot be messaged
// at all, as opposed to a failed attempt.
func Unreachable(err error) bool {
	for _, target := range unreachable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// retryDelay returns how long to wait before retrying err, or false when the
// error is permanent. Flood control overrides the backoff.
func retryDelay(err error, backoff time.Duration) (time.Duration, bool) {
	if d, ok := floodDelay(err); ok {
		return d, true
	}
	if Unreachable(err) {
		return 0, false
	}
	return backoff, netutil.ShouldRetry(err)
}

// floodDelay extracts the server-mandated pause from a 429 response.
func floodDelay(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	if flood.RetryAfter <= 0 {
		return time.Second, true
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}

// classify buckets err into a short cause for logs.
func classify(err error) string {
	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
		tlsErr tls.AlertError
		apiErr *tele.Error
		flood  tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case Unreachable(err):
		return "unreachable"
	case errors.Is(err, context.DeadlineExceeded), netutil.IsTimeout(err):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	case errors.As(err, &apiErr) && apiErr.Code >= http.StatusInternalServerError:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= http.StatusBadRequest:
		return "http_4xx"
	}
	return "unknown"
}

// redactToken keeps bot tokens embedded in request URLs out of logs.
func redactToken(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
