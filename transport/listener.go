// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"fmt"
	"net"

	"github.com/nordicnode/swarm/internal/logger"
)

// Listener binds the first free TCP port in [start, end] and accepts
// incoming peer connections (§4.3). The chosen port is what discovery
// advertises in its beacons.
type Listener struct {
	ln   net.Listener
	Port int
}

// Listen binds to the first free port in [start, end], in order.
func Listen(host string, start, end int) (*Listener, error) {
	if start <= 0 || end < start {
		start, end = DefaultPortRangeStart, DefaultPortRangeEnd
	}

	var lastErr error
	for port := start; port <= end; port++ {
		addr := fmt.Sprintf("%s:%d", host, port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		logger.Info("transport: listening", logger.String("addr", addr))
		return &Listener{ln: ln, Port: port}, nil
	}
	return nil, fmt.Errorf("transport: no free port in [%d, %d]: %w", start, end, lastErr)
}

// Accept blocks for the next inbound connection. The caller is responsible
// for running the handshake and wrapping the result in a Session.
func (l *Listener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
