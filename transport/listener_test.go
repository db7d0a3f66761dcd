// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenBindsWithinRange(t *testing.T) {
	ln, err := Listen("127.0.0.1", 53500, 53510)
	require.NoError(t, err)
	defer ln.Close()

	require.GreaterOrEqual(t, ln.Port, 53500)
	require.LessOrEqual(t, ln.Port, 53510)
}

func TestListenAcceptsConnection(t *testing.T) {
	ln, err := Listen("127.0.0.1", 53600, 53610)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan error, 1)
	go func() {
		_, err := ln.Accept()
		accepted <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, <-accepted)
}

func TestListenFallsBackWhenFirstPortTaken(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:53700")
	require.NoError(t, err)
	defer blocker.Close()

	ln, err := Listen("127.0.0.1", 53700, 53705)
	require.NoError(t, err)
	defer ln.Close()

	require.NotEqual(t, 53700, ln.Port)
}
