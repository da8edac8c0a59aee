package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StampsSendTimeAndPayload(t *testing.T) {
	m, err := New(KindPointAdded, PointAddedPayload{X: 5.0, Y: 8.0})
	require.NoError(t, err)

	assert.Equal(t, KindPointAdded, m.Kind)
	assert.Greater(t, m.SentAt, 0.0)

	var p PointAddedPayload
	require.NoError(t, m.Decode(&p))
	assert.Equal(t, 5.0, p.X)
	assert.Equal(t, 8.0, p.Y)
}

func TestDecode_WrongShapeErrors(t *testing.T) {
	m, err := New(KindReadyState, ReadyStatePayload{PlayerID: "host", Ready: true})
	require.NoError(t, err)

	// Decoding into an incompatible type must not panic.
	var bogus []int
	assert.Error(t, m.Decode(&bogus))
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{
		KindHandshake, KindAck, KindPointAdded, KindPointRemoved,
		KindPointMoved, KindMethodChange, KindReadyState,
		KindDamageReport, KindPhaseSync, KindDisconnect,
	} {
		assert.True(t, k.Valid(), "kind %s", k)
	}
	assert.False(t, Kind("TOWER_PLACED").Valid())
	assert.False(t, Kind("").Valid())
}
