package errors

import (
	"context"
	"strings"
)

// IsContextError reports whether err is, or wraps, a context cancellation
// or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return true
	}

	switch CodeOf(err) {
	case ERR_CONTEXT, ERR_CONTEXT_CANCELED:
		return true
	default:
		return false
	}
}

// IsMaliciousResponseError reports whether err means the remote side sent
// something no honest peer would: bad framing, protocol violations or a
// checkpoint from another chain.
func IsMaliciousResponseError(err error) bool {
	switch CodeOf(err) {
	case ERR_NETWORK_PEER_MALICIOUS, ERR_NETWORK_INVALID_RESPONSE, ERR_WIRE_FORMAT,
		ERR_WIRE_CHECKSUM, ERR_PROTOCOL_VIOLATION, ERR_CHECKPOINT_MISMATCH:
		return true
	default:
		return false
	}
}

// networkText is matched against uncoded errors from the net package.
var networkText = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"closed pipe",
	"use of closed network connection",
	"no such host",
	"i/o timeout",
	"eof",
}

// IsNetworkError reports whether err is a transport failure, coded or
// straight from the net package.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	code := CodeOf(err)
	if code >= ERR_NETWORK_ERROR && code <= ERR_NETWORK_DISCONNECTED {
		return code != ERR_NETWORK_PEER_MALICIOUS && code != ERR_NETWORK_INVALID_RESPONSE
	}

	if code != ERR_UNKNOWN {
		return false
	}

	text := strings.ToLower(err.Error())
	for _, s := range networkText {
		if strings.Contains(text, s) {
			return true
		}
	}

	return false
}

// Category buckets err for logs and metric labels: "none", "context",
// "malicious", "network", or the range its code falls in.
func Category(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsContextError(err):
		return "context"
	case IsMaliciousResponseError(err):
		return "malicious"
	case IsNetworkError(err):
		return "network"
	}

	code := CodeOf(err)

	switch {
	case code >= ERR_BLOCK_NOT_FOUND && code < ERR_TX_NOT_FOUND:
		return "block"
	case code >= ERR_TX_NOT_FOUND && code < ERR_SERVICE_UNAVAILABLE:
		return "transaction"
	case code >= ERR_SERVICE_UNAVAILABLE && code < ERR_STORAGE_UNAVAILABLE:
		return "service"
	case code >= ERR_STORAGE_UNAVAILABLE && code < ERR_STATE_INITIALIZATION:
		return "storage"
	case code >= ERR_WIRE_FORMAT:
		return "protocol"
	default:
		return "unknown"
	}
}
