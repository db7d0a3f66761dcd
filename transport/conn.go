// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Handler processes one decoded, already-opened frame payload for kind.
type Handler func(kind Kind, payload []byte) error

// Conn binds a raw net.Conn to its established Session and runs a receive
// loop that opens each frame and dispatches it to a registered Handler. A
// bounded queue (DefaultQueueDepth) decouples the network reader from slow
// handlers, giving the sender backpressure instead of unbounded buffering
// (§4.3).
type Conn struct {
	raw     net.Conn
	session *Session
	queue   chan Frame

	handlersMu sync.RWMutex
	handlers   map[Kind]Handler

	maxFrameBytes uint32

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps raw with its session and starts the receive loop.
func NewConn(raw net.Conn, session *Session, maxFrameBytes uint32) *Conn {
	if maxFrameBytes == 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	c := &Conn{
		raw:           raw,
		session:       session,
		queue:         make(chan Frame, DefaultQueueDepth),
		handlers:      make(map[Kind]Handler),
		maxFrameBytes: maxFrameBytes,
		closed:        make(chan struct{}),
	}
	go c.readLoop()
	go c.dispatchLoop()
	return c
}

// OnKind registers the handler invoked for frames of the given kind.
// Registering after the receive loop has started is safe.
func (c *Conn) OnKind(kind Kind, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[kind] = h
}

// Send seals payload under the session (once established) and writes the
// framed result.
func (c *Conn) Send(kind Kind, payload []byte) error {
	start := time.Now()
	defer func() {
		metrics.FrameDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	}()

	out := payload
	if c.session != nil {
		sealed, err := c.session.Seal(kind, payload)
		if err != nil {
			return fmt.Errorf("transport: seal frame: %w", err)
		}
		out = sealed
	}

	if err := WriteFrame(c.raw, Frame{Kind: kind, Payload: out}); err != nil {
		return err
	}
	metrics.BytesTransferred.WithLabelValues("outbound").Add(float64(len(out)))
	metrics.FramesProcessed.WithLabelValues(kind.String(), "success").Inc()
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.queue)
	var recvCounter uint64

	for {
		f, err := ReadFrame(c.raw, c.maxFrameBytes)
		if err != nil {
			logger.Debug("transport: read loop ended", logger.Error(err))
			return
		}
		metrics.BytesTransferred.WithLabelValues("inbound").Add(float64(len(f.Payload)))

		if c.session != nil && f.Kind != KindHandshake && f.Kind != KindHandshakeAck {
			plain, err := c.session.Open(f.Kind, f.Payload, recvCounter)
			if err != nil {
				logger.Warn("transport: tearing down session on unreadable frame", logger.Error(err))
				metrics.FramesProcessed.WithLabelValues(f.Kind.String(), "failure").Inc()
				c.Close()
				return
			}
			recvCounter++
			f.Payload = plain
		}

		select {
		case c.queue <- f:
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) dispatchLoop() {
	for f := range c.queue {
		start := time.Now()
		c.handlersMu.RLock()
		h, ok := c.handlers[f.Kind]
		c.handlersMu.RUnlock()

		if !ok {
			logger.Debug("transport: no handler registered", logger.String("kind", f.Kind.String()))
			continue
		}
		if err := h(f.Kind, f.Payload); err != nil {
			logger.ErrorMsg("transport: handler failed", logger.String("kind", f.Kind.String()), logger.Error(err))
			metrics.FramesProcessed.WithLabelValues(f.Kind.String(), "failure").Inc()
		} else {
			metrics.FramesProcessed.WithLabelValues(f.Kind.String(), "success").Inc()
		}
		metrics.FrameDuration.WithLabelValues("receive").Observe(time.Since(start).Seconds())
	}
}

// Close stops the receive/dispatch loops and closes the underlying connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.raw.Close()
}
