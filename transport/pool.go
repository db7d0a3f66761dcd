// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Dialer opens a raw connection to a peer's advertised address and runs the
// handshake, returning the resulting session. Supplied by the caller so the
// pool stays agnostic of discovery and handshake details.
type Dialer func(peerID, addr string) (net.Conn, *Session, error)

// pooledConn is one peer's live connection plus idle-tracking state.
type pooledConn struct {
	conn       net.Conn
	session    *Session
	lastUsedAt time.Time
}

// Pool maintains at most one active outbound connection per peer, coalescing
// concurrent connect attempts for the same peer via singleflight and closing
// connections that have sat idle past idleTimeout (§4.3).
type Pool struct {
	mu          sync.Mutex
	conns       map[string]*pooledConn
	dial        Dialer
	idleTimeout time.Duration
	sf          singleflight.Group

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	sweepDone   chan struct{}
}

// NewPool starts a connection pool; idleTimeout<=0 selects DefaultIdleTimeout.
func NewPool(dial Dialer, idleTimeout time.Duration) *Pool {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	p := &Pool{
		conns:       make(map[string]*pooledConn),
		dial:        dial,
		idleTimeout: idleTimeout,
		sweepTicker: time.NewTicker(idleTimeout / 2),
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Get returns the pooled connection for peerID, dialing (and handshaking) it
// if none is live. Concurrent callers for the same peerID share one dial.
func (p *Pool) Get(peerID, addr string) (net.Conn, *Session, error) {
	p.mu.Lock()
	if pc, ok := p.conns[peerID]; ok {
		pc.lastUsedAt = time.Now()
		p.mu.Unlock()
		return pc.conn, pc.session, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do(peerID, func() (interface{}, error) {
		conn, sess, err := p.dial(peerID, addr)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.conns[peerID] = &pooledConn{conn: conn, session: sess, lastUsedAt: time.Now()}
		p.mu.Unlock()
		return p.conns[peerID], nil
	})
	if err != nil {
		metrics.ConnectionsCreated.WithLabelValues("failure").Inc()
		return nil, nil, fmt.Errorf("transport: dial %s: %w", peerID, err)
	}
	metrics.ConnectionsCreated.WithLabelValues("success").Inc()
	metrics.ConnectionsActive.Inc()

	pc := v.(*pooledConn)
	return pc.conn, pc.session, nil
}

// Drop closes and evicts peerID's pooled connection, if any.
func (p *Pool) Drop(peerID string) {
	p.mu.Lock()
	pc, ok := p.conns[peerID]
	if ok {
		delete(p.conns, peerID)
	}
	p.mu.Unlock()

	if ok {
		pc.conn.Close()
		metrics.ConnectionsActive.Dec()
		metrics.ConnectionsClosed.Inc()
	}
}

func (p *Pool) sweepLoop() {
	for {
		select {
		case <-p.sweepTicker.C:
			p.sweepIdle(time.Now())
		case <-p.stopSweep:
			p.sweepTicker.Stop()
			close(p.sweepDone)
			return
		}
	}
}

func (p *Pool) sweepIdle(now time.Time) {
	var toClose []*pooledConn

	p.mu.Lock()
	for peerID, pc := range p.conns {
		if now.Sub(pc.lastUsedAt) >= p.idleTimeout {
			toClose = append(toClose, pc)
			delete(p.conns, peerID)
		}
	}
	p.mu.Unlock()

	for _, pc := range toClose {
		pc.conn.Close()
		metrics.ConnectionsActive.Dec()
		metrics.ConnectionsIdleClosed.Inc()
	}
	if len(toClose) > 0 {
		logger.Debug("transport: closed idle connections", logger.Int("count", len(toClose)))
	}
}

// Close stops the idle sweeper and closes every pooled connection.
func (p *Pool) Close() error {
	close(p.stopSweep)
	<-p.sweepDone

	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*pooledConn)
	p.mu.Unlock()

	for _, pc := range conns {
		pc.conn.Close()
		metrics.ConnectionsActive.Dec()
		metrics.ConnectionsClosed.Inc()
	}
	return nil
}
