// Package protocol defines the wire messages exchanged between the two
// peers of a duel and the length-prefixed framing used to put them on a
// TCP stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownKind = errors.New("unknown message kind")

// Kind identifies a message type. The set is closed: peers drop frames
// carrying anything else.
type Kind string

const (
	KindHandshake    Kind = "HANDSHAKE"
	KindAck          Kind = "ACK"
	KindPointAdded   Kind = "CURVE_POINT_ADDED"
	KindPointRemoved Kind = "CURVE_POINT_REMOVED"
	KindPointMoved   Kind = "CURVE_POINT_MOVED"
	KindMethodChange Kind = "METHOD_CHANGED"
	KindReadyState   Kind = "READY_STATE"
	KindDamageReport Kind = "DAMAGE_REPORT"
	KindPhaseSync    Kind = "PHASE_SYNC"
	KindDisconnect   Kind = "DISCONNECT"
)

var knownKinds = map[Kind]bool{
	KindHandshake:    true,
	KindAck:          true,
	KindPointAdded:   true,
	KindPointRemoved: true,
	KindPointMoved:   true,
	KindMethodChange: true,
	KindReadyState:   true,
	KindDamageReport: true,
	KindPhaseSync:    true,
	KindDisconnect:   true,
}

// Valid reports whether k is part of the protocol catalogue.
func (k Kind) Valid() bool { return knownKinds[k] }

// Message is one wire envelope. Payload shape is kind-specific; SentAt
// is the sender's unix time in seconds.
type Message struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	SentAt  float64         `json:"sent_at"`
}

// New builds a message of the given kind, marshaling payload and
// stamping the send time.
func New(kind Kind, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Message{
		Kind:    kind,
		Payload: raw,
		SentAt:  float64(time.Now().UnixNano()) / float64(time.Second),
	}, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// Payload contracts, one struct per kind.

type HandshakePayload struct {
	PlayerName string `json:"player_name"`
	Version    string `json:"version"`
}

type AckPayload struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

type PointAddedPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PointRemovedPayload struct {
	Index int `json:"index"`
}

type PointMovedPayload struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type MethodChangedPayload struct {
	Method string `json:"method"`
}

type ReadyStatePayload struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

type DamageReportPayload struct {
	Amount int `json:"amount"`
}

type PhaseSyncPayload struct {
	Phase string `json:"phase"`
}

type DisconnectPayload struct {
	Reason string `json:"reason"`
}
