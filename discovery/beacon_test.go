// SPDX-License-Identifier: LGPL-3.0-or-later

package discovery

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceReceiveLoopUpsertsTable(t *testing.T) {
	table := NewTable(nil)
	svc, err := Open("127.0.0.1", "127.0.0.1", 53821, table, func() Beacon {
		return Beacon{PeerID: "self", SyncEnabled: true}
	})
	require.NoError(t, err)
	defer svc.Close()
	svc.Run()

	sender, err := net.Dial("udp4", "127.0.0.1:53821")
	require.NoError(t, err)
	defer sender.Close()

	payload, err := json.Marshal(Beacon{PeerID: "peer-remote", PeerName: "remote", TransferPort: 52005})
	require.NoError(t, err)
	_, err = sender.Write(payload)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := table.Get("peer-remote"); ok {
			require.Equal(t, "remote", p.PeerName)
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("receive loop did not upsert the peer table in time")
}

func TestServiceEmitBroadcastsCurrentBeacon(t *testing.T) {
	listener, err := net.ListenPacket("udp4", "127.0.0.1:53822")
	require.NoError(t, err)
	defer listener.Close()

	table := NewTable(nil)
	svc, err := Open("127.0.0.1", "127.0.0.1", 53823, table, func() Beacon {
		return Beacon{PeerID: "self", TransferPort: 52009, SyncEnabled: true}
	})
	require.NoError(t, err)
	defer svc.Close()

	svc.broadcast = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 53822}
	svc.emit()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := listener.ReadFrom(buf)
	require.NoError(t, err)

	var b Beacon
	require.NoError(t, json.Unmarshal(buf[:n], &b))
	require.Equal(t, "self", b.PeerID)
	require.Equal(t, 52009, b.TransferPort)
}
