package points

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrDirectoryUnavailable is returned when the directory could not be
	// fetched or came back empty and no earlier copy is cached.
	ErrDirectoryUnavailable = errors.New("points: user directory unavailable")
	// ErrTokenUnavailable wraps failures of the client-credentials exchange.
	ErrTokenUnavailable = errors.New("points: access token unavailable")
)

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("points: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("points: %s: status %d: %s", e.Op, e.Status, e.Body)
}

// UncertainError marks a withdrawal whose outcome cannot be determined: the
// request may have reached the provider and been applied.
type UncertainError struct {
	Err error
}

func (e *UncertainError) Error() string {
	return "points: withdraw outcome uncertain: " + e.Err.Error()
}

func (e *UncertainError) Unwrap() error { return e.Err }

// IsUncertain reports whether err leaves the debit outcome unknown.
func IsUncertain(err error) bool {
	var u *UncertainError
	return errors.As(err, &u)
}

// notSent reports whether a transport error happened before any byte of the
// request could reach the provider.
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
