// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSendDispatchesToHandler(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	client := NewConn(clientRaw, nil, 0)
	server := NewConn(serverRaw, nil, 0)
	defer client.Close()
	defer server.Close()

	received := make(chan string, 1)
	server.OnKind(KindManifest, func(kind Kind, payload []byte) error {
		received <- string(payload)
		return nil
	})

	require.NoError(t, client.Send(KindManifest, []byte("manifest-bytes")))

	select {
	case got := <-received:
		require.Equal(t, "manifest-bytes", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched frame")
	}
}

func TestConnSealedRoundTripOverSession(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	key := randomKey(t)
	clientSession, err := NewSession(key, true)
	require.NoError(t, err)
	serverSession, err := NewSession(key, false)
	require.NoError(t, err)

	client := NewConn(clientRaw, clientSession, 0)
	server := NewConn(serverRaw, serverSession, 0)
	defer client.Close()
	defer server.Close()

	received := make(chan string, 1)
	server.OnKind(KindFileChunk, func(kind Kind, payload []byte) error {
		received <- string(payload)
		return nil
	})

	require.NoError(t, client.Send(KindFileChunk, []byte("secret-chunk")))

	select {
	case got := <-received:
		require.Equal(t, "secret-chunk", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched frame")
	}
}

// TestConnTearsDownSessionOnUnreadableFrame checks that a frame the session
// cannot open (tampered, replayed, or otherwise unauthenticated) aborts the
// connection instead of being silently dropped while the session keeps
// running.
func TestConnTearsDownSessionOnUnreadableFrame(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	key := randomKey(t)
	clientSession, err := NewSession(key, true)
	require.NoError(t, err)
	serverSession, err := NewSession(key, false)
	require.NoError(t, err)

	client := NewConn(clientRaw, clientSession, 0)
	server := NewConn(serverRaw, serverSession, 0)
	defer client.Close()
	defer server.Close()

	var dispatched int32
	server.OnKind(KindFileChunk, func(kind Kind, payload []byte) error {
		atomic.AddInt32(&dispatched, 1)
		return nil
	})

	// A frame that was never sealed under the session fails session.Open on
	// the server side.
	require.NoError(t, WriteFrame(clientRaw, Frame{Kind: KindFileChunk, Payload: []byte("not-sealed")}))

	// The server must tear the session down rather than skip the bad frame
	// and keep processing: a legitimate frame sent right after must never
	// reach the handler.
	_ = client.Send(KindFileChunk, []byte("should-not-arrive"))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&dispatched))

	_, writeErr := serverRaw.Write([]byte("x"))
	assert.Error(t, writeErr, "server's underlying connection should be closed after an unreadable frame")
}
