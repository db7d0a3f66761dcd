// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{Kind: KindManifest, Payload: []byte("hello, peer")}
	require.NoError(t, WriteFrame(&buf, in))

	out, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, in.Kind, out.Kind)
	require.Equal(t, in.Payload, out.Payload)
}

func TestWriteReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Kind: KindPing}))

	out, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, KindPing, out.Kind)
	require.Empty(t, out.Payload)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Kind: KindFileChunk, Payload: make([]byte, 100)}))

	_, err := ReadFrame(&buf, 10)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestKindStringCoversKnownValues(t *testing.T) {
	require.Equal(t, "Handshake", KindHandshake.String())
	require.Equal(t, "DeltaData", KindDeltaData.String())
	require.Equal(t, "Unknown", Kind(250).String())
}
