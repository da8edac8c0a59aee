package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	msgs := []Message{
		mustNew(t, KindHandshake, HandshakePayload{PlayerName: "alice", Version: "1.0"}),
		mustNew(t, KindPointMoved, PointMovedPayload{Index: 2, X: 4.5, Y: -1.0}),
		mustNew(t, KindDisconnect, DisconnectPayload{Reason: "quit"}),
	}

	var buf bytes.Buffer
	for _, m := range msgs {
		require.NoError(t, WriteMessage(&buf, m))
	}

	// Messages come back in write order, one frame each.
	for _, want := range msgs {
		got, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.JSONEq(t, string(want.Payload), string(got.Payload))
	}
	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameHeaderIsBigEndianLength(t *testing.T) {
	var buf bytes.Buffer
	m := mustNew(t, KindPointRemoved, PointRemovedPayload{Index: 0})
	require.NoError(t, WriteMessage(&buf, m))

	raw := buf.Bytes()
	require.Greater(t, len(raw), HeaderSize)
	bodyLen := binary.BigEndian.Uint32(raw[:HeaderSize])
	assert.Equal(t, len(raw)-HeaderSize, int(bodyLen))
}

func TestReadMessage_MalformedBodyIsDroppable(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{not json`)
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	buf.Write(header[:])
	buf.Write(body)

	// A second, valid frame behind the bad one.
	require.NoError(t, WriteMessage(&buf, mustNew(t, KindAck, AckPayload{Status: "ok"})))

	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	// The bad frame was fully consumed; the stream stays in sync.
	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindAck, got.Kind)
}

func TestReadMessage_UnknownKindRejected(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"kind":"TOWER_PLACED","payload":{},"sent_at":1.0}`)
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	buf.Write(header[:])
	buf.Write(body)

	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestReadMessage_OversizedFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
	buf.Write(header[:])

	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadMessage_TruncatedBody(t *testing.T) {
	var full bytes.Buffer
	require.NoError(t, WriteMessage(&full, mustNew(t, KindPhaseSync, PhaseSyncPayload{Phase: "BATTLE"})))

	truncated := bytes.NewReader(full.Bytes()[:full.Len()-3])
	_, err := ReadMessage(truncated)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func mustNew(t *testing.T, kind Kind, payload any) Message {
	t.Helper()
	m, err := New(kind, payload)
	require.NoError(t, err)
	return m
}
