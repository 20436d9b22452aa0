package socks

import "errors"

// Proxy connectivity errors.
var (
	// ErrNotSOCKS5 is returned when the proxy address answers but does not
	// speak SOCKS5 without authentication.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrCannotConnect is returned when no TCP connection to the proxy can
	// be established.
	ErrCannotConnect = errors.New("cannot connect to proxy")

	// ErrTimeout is returned when the proxy does not answer in time.
	ErrTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidProxyAddress is returned for addresses that are not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTorNotRunning is returned by EmbeddedTor.NewClient before Start.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// Status is the outcome of a proxy connectivity check.
type Status int

const (
	// StatusOK means the proxy completed a SOCKS5 handshake and answered a
	// CONNECT request.
	StatusOK Status = iota

	// StatusWrongType means something answered that is not a usable SOCKS5 proxy.
	StatusWrongType

	// StatusCannotConnect means the TCP connection failed.
	StatusCannotConnect

	// StatusTimeout means the check ran out of time.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type (not SOCKS5)"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error for this status, or nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusWrongType:
		return ErrNotSOCKS5
	case StatusCannotConnect:
		return ErrCannotConnect
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
