// SPDX-License-Identifier: LGPL-3.0-or-later

package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Service owns the beacon UDP socket: it broadcasts this node's Beacon on a
// timer (and on demand, via Announce) and feeds every received beacon into
// a Table.
type Service struct {
	conn       *net.UDPConn
	broadcast  *net.UDPAddr
	table      *Table
	self       func() Beacon // re-read on every emit so toggles are picked up live
	stop       chan struct{}
	done       chan struct{}
	announceCh chan struct{}
}

// Open binds the beacon socket, retrying with exponential backoff capped at
// MaxBindBackoff, and returns a Service ready for Run.
func Open(bindAddr string, broadcastAddr string, port int, table *Table, self func() Beacon) (*Service, error) {
	if port == 0 {
		port = DefaultBeaconPort
	}

	laddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", bindAddr, port))
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve bind addr: %w", err)
	}
	baddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", broadcastAddr, port))
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve broadcast addr: %w", err)
	}

	backoff := minBindBackoff
	var conn *net.UDPConn
	for {
		conn, err = net.ListenUDP("udp4", laddr)
		if err == nil {
			break
		}
		metrics.BindFailures.Inc()
		logger.Warn("discovery: beacon bind failed, retrying", logger.Error(err), logger.Duration("backoff", backoff))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > MaxBindBackoff {
			backoff = MaxBindBackoff
		}
	}

	return &Service{
		conn:       conn,
		broadcast:  baddr,
		table:      table,
		self:       self,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		announceCh: make(chan struct{}, 1),
	}, nil
}

// Announce triggers an immediate beacon emission, used on sync-enabled
// toggle or transfer-port change.
func (s *Service) Announce() {
	select {
	case s.announceCh <- struct{}{}:
	default:
	}
}

// Run drives both the periodic/on-demand send loop and the receive loop
// until Close is called.
func (s *Service) Run() {
	go s.sendLoop()
	go s.receiveLoop()
}

func (s *Service) sendLoop() {
	ticker := time.NewTicker(BeaconInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.emit()
		case <-s.announceCh:
			s.emit()
		case <-s.stop:
			return
		}
	}
}

func (s *Service) emit() {
	b := s.self()
	payload, err := json.Marshal(b)
	if err != nil {
		logger.Warn("discovery: marshal beacon failed", logger.Error(err))
		return
	}
	if _, err := s.conn.WriteToUDP(payload, s.broadcast); err != nil {
		logger.Warn("discovery: beacon send failed", logger.Error(err))
		return
	}
	metrics.BeaconsSent.Inc()
}

func (s *Service) receiveLoop() {
	defer close(s.done)
	buf := make([]byte, 4096)
	for {
		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		select {
		case <-s.stop:
			return
		default:
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Warn("discovery: beacon read failed", logger.Error(err))
			continue
		}

		var b Beacon
		if err := json.Unmarshal(buf[:n], &b); err != nil {
			continue
		}
		if b.PeerID == "" {
			continue
		}

		metrics.BeaconsReceived.Inc()
		s.table.Upsert(b, addr.IP.String(), time.Now())
		metrics.PeersKnown.Set(float64(len(s.table.Snapshot())))
	}
}

// Close stops both loops and releases the socket.
func (s *Service) Close() error {
	close(s.stop)
	<-s.done
	return s.conn.Close()
}
