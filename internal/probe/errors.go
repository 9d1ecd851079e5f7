package probe

import (
	"errors"
	"fmt"
	"net"
)

// PanicError wraps a panic raised while dialing.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("probe panicked: %v", e.Value)
}

// Unexpected reports whether err is something other than an ordinary
// reachability failure (refused, timed out, unreachable). Resolution
// failures, malformed addresses and panics count as unexpected.
func Unexpected(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsTimeout
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return true
	}
	var parseErr *net.ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	var panicErr *PanicError
	return errors.As(err, &panicErr)
}
