// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolGetReusesConnection(t *testing.T) {
	var dials int32
	client, server := net.Pipe()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	dial := func(peerID, addr string) (net.Conn, *Session, error) {
		atomic.AddInt32(&dials, 1)
		return client, nil, nil
	}

	pool := NewPool(dial, time.Hour)
	defer pool.Close()

	c1, _, err := pool.Get("peer-a", "127.0.0.1:0")
	require.NoError(t, err)
	c2, _, err := pool.Get("peer-a", "127.0.0.1:0")
	require.NoError(t, err)

	require.Same(t, c1, c2)
	require.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestPoolGetCoalescesConcurrentDials(t *testing.T) {
	var dials int32
	client, server := net.Pipe()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	dial := func(peerID, addr string) (net.Conn, *Session, error) {
		atomic.AddInt32(&dials, 1)
		time.Sleep(10 * time.Millisecond)
		return client, nil, nil
	}

	pool := NewPool(dial, time.Hour)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := pool.Get("peer-b", "127.0.0.1:0")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestPoolDropEvictsConnection(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	var dials int32
	dial := func(peerID, addr string) (net.Conn, *Session, error) {
		atomic.AddInt32(&dials, 1)
		return client, nil, nil
	}

	pool := NewPool(dial, time.Hour)
	defer pool.Close()

	_, _, err := pool.Get("peer-c", "127.0.0.1:0")
	require.NoError(t, err)
	pool.Drop("peer-c")

	// Dropping closes the underlying conn and evicts it: the next Get for
	// the same peer has to dial again.
	require.Equal(t, int32(1), atomic.LoadInt32(&dials))
	_, _, err = pool.Get("peer-c", "127.0.0.1:0")
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&dials))
}
