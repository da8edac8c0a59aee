package statusapi

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout          = 3 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

// feedSocket streams session snapshots to one websocket client. Writes
// run on their own goroutine; the read loop exists only to notice the
// client going away.
func (s *Server) feedSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	subID := "feed-" + randID(6)
	out := s.feed.Subscribe(subID)
	defer s.feed.Unsubscribe(subID)

	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for snap := range out {
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
			err = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	// The feed is one-way; any inbound frame other than control frames
	// just gets discarded until the client closes.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
