package client

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// isTimeoutError reports whether a transport error is a timeout that did not
// come from the call's own deadline, e.g. an injected http.Client.Timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "client.timeout exceeded")
}

// describeTransportError names the cause of a failed round trip for messages.
func describeTransportError(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns lookup failed"
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return "connection refused"
	}
	if errors.Is(err, syscall.ECONNRESET) || strings.Contains(strings.ToLower(err.Error()), "connection reset") {
		return "connection reset"
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") || strings.Contains(lower, "handshake") {
		return "tls handshake failed"
	}
	return "network error"
}
