// Package socks routes crawler traffic through a SOCKS5 proxy.
//
// A Client wraps an x/net/proxy dialer and hands out http.Clients whose
// transport dials through it. Host names are resolved by the proxy, not
// locally, so .onion addresses and split-horizon names work.
//
// CheckConnection performs a SOCKS5 handshake followed by a CONNECT to a
// name that cannot resolve. Any well-formed reply proves a SOCKS5 server is
// listening; the result is one of the Status values:
//
//   - StatusOK: the proxy completed the handshake and answered CONNECT
//   - StatusTimeout: nothing answered before the timeout
//   - StatusCannotConnect: the TCP connection was refused
//   - StatusWrongType: something answered that is not a SOCKS5 proxy
//
// EmbeddedTor starts a private Tor daemon with tornago so that --tor works
// without a system Tor installation. Its SOCKS address feeds NewClient like
// any other proxy.
//
//	tor := socks.NewEmbeddedTor()
//	if err := tor.Start(ctx); err != nil {
//		return err
//	}
//	defer tor.Stop()
//	client, err := tor.NewClient(30 * time.Second)
package socks
