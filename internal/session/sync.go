package session

import (
	"go.uber.org/zap"

	"duelsync/internal/curve"
	"duelsync/internal/protocol"
	"duelsync/internal/transport"
)

// syncEngine translates local curve mutations into outbound messages
// and inbound messages into mutations on the mirrored incoming curve.
// It never touches the edit curve: each curve has exactly one writer,
// which is what makes replication conflict-free.
type syncEngine struct {
	log  *zap.SugaredLogger
	conn *transport.Conn
}

func newSyncEngine(log *zap.SugaredLogger, conn *transport.Conn) *syncEngine {
	return &syncEngine{log: log, conn: conn}
}

func (s *syncEngine) send(kind protocol.Kind, payload any) {
	m, err := protocol.New(kind, payload)
	if err != nil {
		s.log.Errorw("build sync message", "kind", kind, "err", err)
		return
	}
	if err := s.conn.Send(m); err != nil {
		// A dead connection surfaces as a DISCONNECT on the next
		// drain; nothing to do here.
		s.log.Debugw("sync send skipped", "kind", kind, "err", err)
	}
}

func (s *syncEngine) PointAdded(x, y float64) {
	s.send(protocol.KindPointAdded, protocol.PointAddedPayload{X: x, Y: y})
}

func (s *syncEngine) PointRemoved(index int) {
	s.send(protocol.KindPointRemoved, protocol.PointRemovedPayload{Index: index})
}

func (s *syncEngine) PointMoved(index int, x, y float64) {
	s.send(protocol.KindPointMoved, protocol.PointMovedPayload{Index: index, X: x, Y: y})
}

func (s *syncEngine) MethodChanged(method string) {
	s.send(protocol.KindMethodChange, protocol.MethodChangedPayload{Method: method})
}

func (s *syncEngine) Ready(playerID string, ready bool) {
	s.send(protocol.KindReadyState, protocol.ReadyStatePayload{PlayerID: playerID, Ready: ready})
}

func (s *syncEngine) Damage(amount int) {
	s.send(protocol.KindDamageReport, protocol.DamageReportPayload{Amount: amount})
}

func (s *syncEngine) Phase(phase Phase) {
	s.send(protocol.KindPhaseSync, protocol.PhaseSyncPayload{Phase: string(phase)})
}

func (s *syncEngine) Disconnect(reason string) {
	s.send(protocol.KindDisconnect, protocol.DisconnectPayload{Reason: reason})
}

// Apply mutates the incoming curve from one received curve-sync
// message, in arrival order. Out-of-range indices and invalid values
// are dropped; the protocol has no retraction, so prevention at the
// sender plus bounds checks here are the whole defense.
func (s *syncEngine) Apply(m protocol.Message, incoming *curve.Curve) {
	switch m.Kind {
	case protocol.KindPointAdded:
		var p protocol.PointAddedPayload
		if err := m.Decode(&p); err != nil {
			s.log.Warnw("bad point-added payload", "err", err)
			return
		}
		if !incoming.Add(p.X, p.Y) {
			s.log.Warnw("remote point rejected", "x", p.X, "y", p.Y)
		}
	case protocol.KindPointRemoved:
		var p protocol.PointRemovedPayload
		if err := m.Decode(&p); err != nil {
			s.log.Warnw("bad point-removed payload", "err", err)
			return
		}
		if !incoming.Remove(p.Index) {
			s.log.Warnw("remote remove out of range", "index", p.Index)
		}
	case protocol.KindPointMoved:
		var p protocol.PointMovedPayload
		if err := m.Decode(&p); err != nil {
			s.log.Warnw("bad point-moved payload", "err", err)
			return
		}
		if !incoming.Move(p.Index, p.X, p.Y) {
			s.log.Warnw("remote move rejected", "index", p.Index)
		}
	case protocol.KindMethodChange:
		var p protocol.MethodChangedPayload
		if err := m.Decode(&p); err != nil {
			s.log.Warnw("bad method payload", "err", err)
			return
		}
		if !incoming.SetMethod(p.Method) {
			s.log.Warnw("remote method rejected", "method", p.Method)
		}
	default:
		s.log.Debugw("sync engine ignoring message", "kind", m.Kind)
	}
}
