// Package transport owns the single TCP connection of a duel session.
// One side listens and accepts exactly one peer, the other dials. A
// background read goroutine deframes the stream into an inbox; the
// owning session drains the inbox on its own tick, so observer code
// never runs concurrently with game state. Writes are serialized by an
// internal lock so frames from different callers never interleave.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"duelsync/internal/protocol"
)

var (
	// ErrNotConnected is returned by Send when no peer is attached or
	// the connection has gone away. Callers treat it as a no-op.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned when the transport was shut down.
	ErrClosed = errors.New("transport: closed")

	// ErrAlreadyStarted is returned by StartHost/Connect on a transport
	// that already owns a socket. One connection per session; a new
	// match needs a new transport.
	ErrAlreadyStarted = errors.New("transport: already started")
)

// Observer receives inbound messages of a subscribed kind. Observers
// run only inside DispatchPending, on the caller's goroutine.
type Observer func(protocol.Message)

const (
	inboxSize      = 256
	acceptPollTime = 500 * time.Millisecond
)

// Conn is a session-owned transport over one TCP connection.
type Conn struct {
	log *zap.SugaredLogger

	mu        sync.Mutex // guards sock, ln, started, observers
	sock      net.Conn
	ln        net.Listener
	started   bool
	observers map[protocol.Kind][]Observer

	inbox     chan protocol.Message
	connected atomic.Bool
	closed    atomic.Bool
}

func New(log *zap.SugaredLogger) *Conn {
	return &Conn{
		log:       log,
		observers: make(map[protocol.Kind][]Observer),
		inbox:     make(chan protocol.Message, inboxSize),
	}
}

// StartHost binds addr, listens, and blocks until exactly one peer
// connects or ctx is done. The listener is closed once a peer is
// attached; late dialers are refused.
func (c *Conn) StartHost(ctx context.Context, addr string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	c.ln = ln
	c.mu.Unlock()

	c.log.Infow("hosting", "addr", ln.Addr().String())

	tcpLn, _ := ln.(*net.TCPListener)
	for {
		if tcpLn != nil {
			_ = tcpLn.SetDeadline(time.Now().Add(acceptPollTime))
		}
		sock, err := ln.Accept()
		if err != nil {
			if c.closed.Load() {
				return ErrClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				select {
				case <-ctx.Done():
					c.teardownListener()
					return ctx.Err()
				default:
					continue
				}
			}
			c.teardownListener()
			return fmt.Errorf("accept: %w", err)
		}

		c.attach(sock)
		// One peer per session; stop listening.
		c.teardownListener()
		c.log.Infow("peer connected", "remote", sock.RemoteAddr().String())
		return nil
	}
}

// Connect dials the host once with a bounded timeout.
func (c *Conn) Connect(addr string, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	sock, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	c.attach(sock)
	c.log.Infow("connected to host", "addr", addr)
	return nil
}

func (c *Conn) attach(sock net.Conn) {
	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	c.connected.Store(true)
	go c.readLoop(sock)
}

// Send frames and writes one message. Never blocks on the peer beyond
// the kernel send buffer; returns ErrNotConnected after disconnect so
// late sends degrade to no-ops.
func (c *Conn) Send(m protocol.Message) error {
	if c.closed.Load() || !c.connected.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return ErrNotConnected
	}
	if err := protocol.WriteMessage(c.sock, m); err != nil {
		c.log.Warnw("send failed", "kind", m.Kind, "err", err)
		c.markDisconnected("send failed")
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	return nil
}

// Observe subscribes fn to inbound messages of the given kind. Multiple
// observers per kind are allowed; all run for each matching message.
func (c *Conn) Observe(kind protocol.Kind, fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers[kind] = append(c.observers[kind], fn)
}

// DispatchPending drains the inbox in arrival order, invoking the
// observers for each message, and reports how many were handled. Only
// the owning session's tick goroutine may call it.
func (c *Conn) DispatchPending() int {
	n := 0
	for {
		select {
		case m := <-c.inbox:
			c.mu.Lock()
			obs := append([]Observer(nil), c.observers[m.Kind]...)
			c.mu.Unlock()
			if len(obs) == 0 {
				c.log.Debugw("no observer for message", "kind", m.Kind)
			}
			for _, fn := range obs {
				fn(m)
			}
			n++
		default:
			return n
		}
	}
}

// Connected reports whether a peer is currently attached.
func (c *Conn) Connected() bool { return c.connected.Load() }

// LocalAddr returns the bound listener address while hosting, or the
// socket's local address once connected. Nil before either.
func (c *Conn) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln != nil {
		return c.ln.Addr()
	}
	if c.sock != nil {
		return c.sock.LocalAddr()
	}
	return nil
}

// Close shuts the transport down: idempotent, unblocks any pending
// accept or read by closing the underlying sockets.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.connected.Store(false)
	c.mu.Lock()
	if c.ln != nil {
		_ = c.ln.Close()
		c.ln = nil
	}
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	c.mu.Unlock()
	c.log.Debug("transport closed")
	return nil
}

func (c *Conn) teardownListener() {
	c.mu.Lock()
	if c.ln != nil {
		_ = c.ln.Close()
		c.ln = nil
	}
	c.mu.Unlock()
}

func (c *Conn) readLoop(sock net.Conn) {
	br := bufio.NewReader(sock)
	for {
		m, err := protocol.ReadMessage(br)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedFrame) || errors.Is(err, protocol.ErrUnknownKind) {
				// Bad frame, healthy stream: drop and carry on.
				c.log.Warnw("dropping bad frame", "err", err)
				continue
			}
			if !c.closed.Load() {
				c.log.Infow("connection lost", "err", err)
				c.mu.Lock()
				c.markDisconnected("connection lost")
				c.mu.Unlock()
			}
			return
		}
		c.enqueue(m)
	}
}

// markDisconnected flips the connected flag and surfaces a synthetic
// DISCONNECT message so the session observes the failure on its own
// tick. Caller must hold c.mu.
func (c *Conn) markDisconnected(reason string) {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
	m, err := protocol.New(protocol.KindDisconnect, protocol.DisconnectPayload{Reason: reason})
	if err == nil {
		c.enqueue(m)
	}
}

func (c *Conn) enqueue(m protocol.Message) {
	select {
	case c.inbox <- m:
	default:
		// The session stopped draining; shedding load beats blocking
		// the read goroutine.
		c.log.Warnw("inbox full, dropping message", "kind", m.Kind)
	}
}
