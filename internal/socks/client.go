package socks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkTimeout bounds CheckConnection. It is a local handshake, not a
// request through the proxy, so it stays short.
const checkTimeout = 2 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version    = 0x05
	socks5AuthNone   = 0x00
	socks5CmdConnect = 0x01
	socks5AddrDomain = 0x03

	// checkHost can never resolve. A working proxy still answers the
	// CONNECT request, usually with a failure code.
	checkHost = "webcrawl-check.invalid"
)

// Client dials through a SOCKS5 proxy. It is safe for concurrent use and
// is meant to be created once per invocation and handed to whatever needs
// proxied connections.
type Client struct {
	// proxyAddress is the proxy's "host:port".
	proxyAddress string

	// dialer is the x/net/proxy SOCKS5 dialer every connection goes through.
	dialer proxy.Dialer

	// timeout bounds CheckConnection and is the default HTTP client timeout.
	timeout time.Duration
}

// NewClient creates a Client for the proxy at proxyAddress ("host:port").
// The proxy is not contacted; call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress reports whether address is host:port with a non-empty
// host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// CheckConnection performs a SOCKS5 greeting and a CONNECT request against
// the proxy and reports whether it behaves like a SOCKS5 proxy.
func (c *Client) CheckConnection(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return StatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return StatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version {
		return StatusWrongType
	}
	if authResp[1] != socks5AuthNone {
		return StatusWrongType
	}

	const checkPort = 80
	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(checkHost))}
	req = append(req, checkHost...)
	req = append(req, byte(checkPort>>8), byte(checkPort&0xFF))
	if _, err := conn.Write(req); err != nil {
		return StatusCannotConnect
	}

	// Any reply code counts: the proxy processed the request.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return StatusWrongType
	}
	return StatusOK
}

func readFailure(err error) Status {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}
	return StatusWrongType
}

// HTTPClient returns an http.Client whose connections are dialed through
// the proxy.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}
}

// DialContext dials address through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}
