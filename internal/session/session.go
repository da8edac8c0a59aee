// Package session orchestrates one 1-vs-1 duel: it owns the transport,
// the two curves, the ready quorum, and the phase machine, and drives
// one synchronization pass per game tick. All session state is mutated
// on the game-loop goroutine only; the transport's background reader
// just enqueues.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"duelsync/internal/curve"
	"duelsync/internal/protocol"
	"duelsync/internal/ready"
	"duelsync/internal/transport"
)

// ProtocolVersion is sent in the handshake. Mismatches are logged but
// not fatal; the wire format has been stable across versions so far.
const ProtocolVersion = "1.0"

const (
	DefaultLives        = 10
	DefaultMaxRounds    = 5
	DefaultReadyTimeout = 60 * time.Second
	DefaultDialTimeout  = 5 * time.Second
)

var (
	ErrNotPlanning   = errors.New("session: edits only allowed during planning")
	ErrNotBattle     = errors.New("session: damage reports only allowed during battle")
	ErrPointRejected = errors.New("session: point rejected")
	ErrBadIndex      = errors.New("session: index out of range")
	ErrBadMethod     = errors.New("session: unknown interpolation method")
	ErrTerminated    = errors.New("session: terminated")
	ErrActive        = errors.New("session: match already started")
)

// MatchRecorder persists round and match results. Implemented by the
// history store; nil disables recording.
type MatchRecorder interface {
	RecordRound(matchID string, round, localLives, remoteLives int) error
	RecordResult(matchID, outcome string, rounds int) error
}

// Player is one side's mirrored state. Lives are authoritative only on
// the player's own machine; the remote copy is a display mirror fed by
// DAMAGE_REPORT messages.
type Player struct {
	Role  Role
	Lives int
	Ready bool
}

// Options configure a session. Zero values pick the defaults above.
type Options struct {
	PlayerName   string
	BindAddress  string // host side listen address, default 0.0.0.0
	ReadyTimeout time.Duration
	MaxRounds    int
	DialTimeout  time.Duration
	Recorder     MatchRecorder
}

// Session coordinates one duel between exactly two peers.
type Session struct {
	log  *zap.SugaredLogger
	opts Options

	matchID string
	role    Role
	conn    *transport.Conn
	sync    *syncEngine
	phases  *phaseMachine
	ready   *ready.Manager
	feed    *Feed

	editCurve     *curve.Curve
	incomingCurve *curve.Curve
	local         *Player
	remote        *Player

	round      int
	terminated bool
	dirty      bool
}

func New(log *zap.SugaredLogger, opts Options) *Session {
	if opts.PlayerName == "" {
		opts.PlayerName = "player"
	}
	if opts.BindAddress == "" {
		opts.BindAddress = "0.0.0.0"
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	conn := transport.New(log)
	s := &Session{
		log:     log,
		opts:    opts,
		matchID: uuid.NewString(),
		conn:    conn,
		sync:    newSyncEngine(log, conn),
		phases:  newPhaseMachine(),
		ready:   ready.NewManager(log, 2, opts.ReadyTimeout),
		feed:    NewFeed(),
	}
	s.registerObservers()
	return s
}

// HostGame listens on port and blocks until a peer connects or ctx is
// done. On success the session is in WAITING_OPPONENT and the handshake
// has been sent.
func (s *Session) HostGame(ctx context.Context, port int) error {
	if s.role != "" {
		return ErrActive
	}
	s.role = RoleHost

	addr := net.JoinHostPort(s.opts.BindAddress, strconv.Itoa(port))
	if err := s.conn.StartHost(ctx, addr); err != nil {
		s.role = ""
		return fmt.Errorf("host game: %w", err)
	}

	s.initPlayers()
	s.sendHandshake()
	s.publish()
	return nil
}

// JoinGame connects to a host. On success the session is in
// WAITING_OPPONENT pending the host's handshake.
func (s *Session) JoinGame(host string, port int) error {
	if s.role != "" {
		return ErrActive
	}
	s.role = RoleClient

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := s.conn.Connect(addr, s.opts.DialTimeout); err != nil {
		s.role = ""
		return fmt.Errorf("join game: %w", err)
	}

	s.initPlayers()
	s.publish()
	return nil
}

// Tick runs one synchronization pass: drain the inbox in order, advance
// the ready countdown, re-evaluate phase transitions, publish a
// snapshot if anything changed. Call once per game frame from the game
// loop; no other goroutine may call session methods.
func (s *Session) Tick(dt time.Duration) {
	if s.terminated {
		return
	}

	if s.conn.DispatchPending() > 0 {
		s.dirty = true
	}

	if s.phases.Current() == PhasePlanning {
		s.ready.Update(dt)
		if _, fired := s.ready.Consume(); fired {
			s.startBattle(true)
		}
		s.dirty = true // countdown moved
	}

	if s.dirty {
		s.publish()
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phases.Current() }

// Role returns this player's role, empty before host/join.
func (s *Session) Role() Role { return s.role }

// MatchID identifies this match attempt in history records.
func (s *Session) MatchID() string { return s.matchID }

// EditCurve is the curve the local player edits: the route the
// opponent's enemies will follow.
func (s *Session) EditCurve() *curve.Curve { return s.editCurve }

// IncomingCurve mirrors the opponent's edits: the route our enemies
// will follow. Local code must treat it as read-only.
func (s *Session) IncomingCurve() *curve.Curve { return s.incomingCurve }

// Ready exposes the quorum state for countdown display.
func (s *Session) Ready() *ready.Manager { return s.ready }

// LocalPlayer returns the local player's state.
func (s *Session) LocalPlayer() *Player { return s.local }

// RemotePlayer returns the mirror of the peer's state.
func (s *Session) RemotePlayer() *Player { return s.remote }

// Round returns the current round number, starting at 1.
func (s *Session) Round() int { return s.round }

// Feed returns the snapshot feed for status/spectator consumers.
func (s *Session) Feed() *Feed { return s.feed }

// Connected reports whether the peer link is up.
func (s *Session) Connected() bool { return s.conn.Connected() }

// ListenAddr returns the transport's local address once hosting or
// connected.
func (s *Session) ListenAddr() net.Addr { return s.conn.LocalAddr() }

// AddPoint edits the local curve and replicates the edit. Allowed only
// during PLANNING.
func (s *Session) AddPoint(x, y float64) error {
	if err := s.requirePhase(PhasePlanning, ErrNotPlanning); err != nil {
		return err
	}
	if !s.editCurve.Add(x, y) {
		return fmt.Errorf("%w: duplicate x %v", ErrPointRejected, x)
	}
	s.sync.PointAdded(x, y)
	s.dirty = true
	return nil
}

// RemovePoint removes a control point from the local curve.
func (s *Session) RemovePoint(index int) error {
	if err := s.requirePhase(PhasePlanning, ErrNotPlanning); err != nil {
		return err
	}
	if !s.editCurve.Remove(index) {
		return fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	s.sync.PointRemoved(index)
	s.dirty = true
	return nil
}

// MovePoint relocates a control point on the local curve.
func (s *Session) MovePoint(index int, x, y float64) error {
	if err := s.requirePhase(PhasePlanning, ErrNotPlanning); err != nil {
		return err
	}
	if !s.editCurve.Move(index, x, y) {
		return fmt.Errorf("%w: index %d", ErrPointRejected, index)
	}
	s.sync.PointMoved(index, x, y)
	s.dirty = true
	return nil
}

// SetMethod changes the local curve's interpolation method.
func (s *Session) SetMethod(method string) error {
	if err := s.requirePhase(PhasePlanning, ErrNotPlanning); err != nil {
		return err
	}
	if !s.editCurve.SetMethod(method) {
		return fmt.Errorf("%w: %q", ErrBadMethod, method)
	}
	s.sync.MethodChanged(method)
	s.dirty = true
	return nil
}

// SetReady toggles the local ready flag and replicates it. The
// PLANNING -> BATTLE transition itself happens on the next tick, when
// the quorum trigger is consumed.
func (s *Session) SetReady(isReady bool) error {
	if err := s.requirePhase(PhasePlanning, ErrNotPlanning); err != nil {
		return err
	}
	s.local.Ready = isReady
	if isReady {
		s.ready.SetReady(string(s.role))
	} else {
		s.ready.SetUnready(string(s.role))
	}
	s.sync.Ready(string(s.role), isReady)
	s.dirty = true
	return nil
}

// ReportDamage records damage to the local base. Lives authority is
// local: we decrement our own count and send the peer a display
// mirror, never an instruction.
func (s *Session) ReportDamage(amount int) error {
	if err := s.requirePhase(PhaseBattle, ErrNotBattle); err != nil {
		return err
	}
	if amount <= 0 {
		return nil
	}
	s.local.Lives -= amount
	if s.local.Lives < 0 {
		s.local.Lives = 0
	}
	s.sync.Damage(amount)
	s.dirty = true
	s.log.Infow("took damage", "amount", amount, "lives", s.local.Lives)
	return nil
}

// CompleteRound is the combat subsystem's signal that the battle
// finished. Moves BATTLE -> ROUND_END and records the round.
func (s *Session) CompleteRound() error {
	if err := s.phases.transitionTo(PhaseRoundEnd); err != nil {
		return err
	}
	s.sync.Phase(PhaseRoundEnd)
	s.recordRound()
	s.dirty = true
	s.log.Infow("round complete", "round", s.round)
	return nil
}

// StartNextRound moves ROUND_END -> PLANNING when rounds remain and
// both players are alive, otherwise ends the match.
func (s *Session) StartNextRound() error {
	if s.phases.Current() != PhaseRoundEnd {
		return fmt.Errorf("%w: %s", ErrBadTransition, s.phases.Current())
	}
	if s.round >= s.opts.MaxRounds || s.local.Lives <= 0 || s.remote.Lives <= 0 {
		return s.endMatch()
	}

	s.round++
	if err := s.phases.transitionTo(PhasePlanning); err != nil {
		return err
	}
	s.local.Ready = false
	s.remote.Ready = false
	s.ready.Start()
	s.sync.Phase(PhasePlanning)
	s.dirty = true
	s.log.Infow("next round", "round", s.round)
	return nil
}

// Disconnect tears the session down. Safe in any phase and idempotent;
// later sends become no-ops.
func (s *Session) Disconnect() {
	if s.terminated {
		return
	}
	s.terminated = true
	s.sync.Disconnect("quit")
	_ = s.conn.Close()
	if s.phases.Current() != PhaseDisconnected {
		// Legal from every non-terminal phase.
		s.phases.current = PhaseDisconnected
	}
	s.ready.Stop()
	s.publish()
	s.log.Info("session disconnected")
}

func (s *Session) requirePhase(want Phase, sentinel error) error {
	if s.terminated {
		return ErrTerminated
	}
	if s.phases.Current() != want {
		return fmt.Errorf("%w (phase %s)", sentinel, s.phases.Current())
	}
	return nil
}

func (s *Session) initPlayers() {
	s.local = &Player{Role: s.role, Lives: DefaultLives}
	s.remote = &Player{Role: s.role.Opponent(), Lives: DefaultLives}
	s.editCurve = curve.New()
	s.incomingCurve = curve.New()
}

func (s *Session) sendHandshake() {
	m, err := protocol.New(protocol.KindHandshake, protocol.HandshakePayload{
		PlayerName: s.opts.PlayerName,
		Version:    ProtocolVersion,
	})
	if err != nil {
		s.log.Errorw("build handshake", "err", err)
		return
	}
	if err := s.conn.Send(m); err != nil {
		s.log.Warnw("send handshake", "err", err)
	}
}

func (s *Session) registerObservers() {
	s.conn.Observe(protocol.KindHandshake, s.onHandshake)
	s.conn.Observe(protocol.KindAck, s.onAck)
	for _, k := range []protocol.Kind{
		protocol.KindPointAdded, protocol.KindPointRemoved,
		protocol.KindPointMoved, protocol.KindMethodChange,
	} {
		s.conn.Observe(k, s.onCurveSync)
	}
	s.conn.Observe(protocol.KindReadyState, s.onReadyState)
	s.conn.Observe(protocol.KindDamageReport, s.onDamageReport)
	s.conn.Observe(protocol.KindPhaseSync, s.onPhaseSync)
	s.conn.Observe(protocol.KindDisconnect, s.onPeerDisconnect)
}

// onHandshake runs on the client: the host introduced itself, so ACK
// and enter planning.
func (s *Session) onHandshake(m protocol.Message) {
	if s.phases.Current() != PhaseWaitingOpponent {
		s.log.Warnw("unexpected handshake", "phase", s.phases.Current())
		return
	}
	var p protocol.HandshakePayload
	if err := m.Decode(&p); err != nil {
		s.log.Warnw("bad handshake payload", "err", err)
		return
	}
	if p.Version != ProtocolVersion {
		s.log.Warnw("version mismatch", "ours", ProtocolVersion, "theirs", p.Version)
	}
	s.log.Infow("handshake received", "peer", p.PlayerName)

	ack, err := protocol.New(protocol.KindAck, protocol.AckPayload{
		Status:    "ok",
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})
	if err == nil {
		if err := s.conn.Send(ack); err != nil {
			s.log.Warnw("send ack", "err", err)
		}
	}
	s.enterPlanning()
}

// onAck runs on the host: the client acknowledged, both halves of the
// exchange are done.
func (s *Session) onAck(m protocol.Message) {
	if s.phases.Current() != PhaseWaitingOpponent {
		s.log.Warnw("unexpected ack", "phase", s.phases.Current())
		return
	}
	var p protocol.AckPayload
	if err := m.Decode(&p); err != nil {
		s.log.Warnw("bad ack payload", "err", err)
		return
	}
	s.log.Infow("handshake acknowledged", "status", p.Status)
	s.enterPlanning()
}

func (s *Session) enterPlanning() {
	if err := s.phases.transitionTo(PhasePlanning); err != nil {
		s.log.Errorw("enter planning", "err", err)
		return
	}
	s.round = 1
	s.editCurve.Reset()
	s.incomingCurve.Reset()
	s.local.Ready = false
	s.remote.Ready = false
	s.ready.Start()
	s.dirty = true
	s.log.Infow("entering planning", "round", s.round)
}

func (s *Session) onCurveSync(m protocol.Message) {
	// The mirror accepts edits regardless of our local phase; the peer
	// gates its own edits, and a message in flight across a phase
	// boundary must still land to keep the curves converged.
	s.sync.Apply(m, s.incomingCurve)
	s.dirty = true
}

func (s *Session) onReadyState(m protocol.Message) {
	var p protocol.ReadyStatePayload
	if err := m.Decode(&p); err != nil {
		s.log.Warnw("bad ready payload", "err", err)
		return
	}
	if p.PlayerID != string(s.role.Opponent()) {
		s.log.Warnw("ready state for wrong player", "player", p.PlayerID)
		return
	}
	if s.phases.Current() != PhasePlanning {
		s.log.Debugw("ready state outside planning ignored", "phase", s.phases.Current())
		return
	}
	s.remote.Ready = p.Ready
	if p.Ready {
		s.ready.SetReady(p.PlayerID)
	} else {
		s.ready.SetUnready(p.PlayerID)
	}
	s.dirty = true
}

func (s *Session) onDamageReport(m protocol.Message) {
	var p protocol.DamageReportPayload
	if err := m.Decode(&p); err != nil {
		s.log.Warnw("bad damage payload", "err", err)
		return
	}
	if p.Amount <= 0 {
		return
	}
	// Display mirror only: the peer already decremented its own lives.
	s.remote.Lives -= p.Amount
	if s.remote.Lives < 0 {
		s.remote.Lives = 0
	}
	s.dirty = true
	s.log.Infow("peer took damage", "amount", p.Amount, "remote_lives", s.remote.Lives)
}

// onPhaseSync is the defensive resync: adopt the peer's phase when the
// corresponding local transition is legal, otherwise ignore. This
// covers the edge where one side's ready timer expires a tick before
// the other's.
func (s *Session) onPhaseSync(m protocol.Message) {
	var p protocol.PhaseSyncPayload
	if err := m.Decode(&p); err != nil {
		s.log.Warnw("bad phase sync payload", "err", err)
		return
	}
	target, ok := ParsePhase(p.Phase)
	if !ok {
		s.log.Warnw("unknown phase in sync", "phase", p.Phase)
		return
	}
	if target == s.phases.Current() {
		return
	}

	switch {
	case target == PhaseBattle && s.phases.Current() == PhasePlanning:
		s.log.Infow("adopting peer phase", "phase", target)
		s.startBattle(false)
	case target == PhaseRoundEnd && s.phases.Current() == PhaseBattle:
		s.log.Infow("adopting peer phase", "phase", target)
		if err := s.CompleteRound(); err != nil {
			s.log.Warnw("adopt round end", "err", err)
		}
	case target == PhasePlanning && s.phases.Current() == PhaseRoundEnd:
		s.log.Infow("adopting peer phase", "phase", target)
		if err := s.StartNextRound(); err != nil {
			s.log.Warnw("adopt next round", "err", err)
		}
	default:
		s.log.Warnw("ignoring phase sync", "theirs", target, "ours", s.phases.Current())
	}
}

func (s *Session) onPeerDisconnect(m protocol.Message) {
	var p protocol.DisconnectPayload
	_ = m.Decode(&p)
	s.log.Infow("peer disconnected", "reason", p.Reason)
	s.terminated = true
	_ = s.conn.Close()
	s.phases.current = PhaseDisconnected
	s.ready.Stop()
	s.publish()
}

// startBattle moves PLANNING -> BATTLE. announce is true when the
// transition originated locally (quorum), in which case a PHASE_SYNC
// nudges a peer whose timer is lagging.
func (s *Session) startBattle(announce bool) {
	if err := s.phases.transitionTo(PhaseBattle); err != nil {
		s.log.Errorw("start battle", "err", err)
		return
	}
	s.ready.Stop()
	if announce {
		s.sync.Phase(PhaseBattle)
	}
	s.dirty = true
	s.log.Infow("battle started", "round", s.round)
}

func (s *Session) endMatch() error {
	if err := s.phases.transitionTo(PhaseMatchEnd); err != nil {
		return err
	}
	outcome := s.outcome()
	s.recordResult(outcome)
	s.dirty = true
	s.log.Infow("match over", "outcome", outcome, "rounds", s.round)
	return nil
}

func (s *Session) outcome() string {
	switch {
	case s.local.Lives <= 0 && s.remote.Lives <= 0:
		return "draw"
	case s.local.Lives <= 0:
		return "lost"
	case s.remote.Lives <= 0:
		return "won"
	case s.local.Lives > s.remote.Lives:
		return "won"
	case s.local.Lives < s.remote.Lives:
		return "lost"
	default:
		return "draw"
	}
}

func (s *Session) recordRound() {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordRound(s.matchID, s.round, s.local.Lives, s.remote.Lives); err != nil {
		s.log.Warnw("record round", "err", err)
	}
}

func (s *Session) recordResult(outcome string) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordResult(s.matchID, outcome, s.round); err != nil {
		s.log.Warnw("record result", "err", err)
	}
}

func (s *Session) publish() {
	s.dirty = false
	snap := Snapshot{
		MatchID:   s.matchID,
		Role:      s.role,
		Phase:     s.phases.Current(),
		Round:     s.round,
		Connected: s.conn.Connected(),
	}
	if s.local != nil {
		snap.LocalLives = s.local.Lives
		snap.LocalReady = s.local.Ready
	}
	if s.remote != nil {
		snap.RemoteLives = s.remote.Lives
		snap.RemoteReady = s.remote.Ready
	}
	snap.ReadyCount = s.ready.ReadyCount()
	snap.PlayerCount = s.ready.PlayerCount()
	snap.TimeRemainingSec = s.ready.TimeRemaining().Seconds()
	if s.editCurve != nil {
		snap.EditCurve = CurveView{Points: s.editCurve.Points(), Method: s.editCurve.Method()}
	}
	if s.incomingCurve != nil {
		snap.IncomingCurve = CurveView{Points: s.incomingCurve.Points(), Method: s.incomingCurve.Method()}
	}
	s.feed.Publish(snap)
}
