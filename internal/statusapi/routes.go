// Package statusapi exposes a local HTTP surface for tooling and
// spectators: current session state as JSON, match history, and a
// websocket feed of live snapshots.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"duelsync/internal/history"
	"duelsync/internal/session"
)

// Server wires the routes around one session feed and an optional
// history store.
type Server struct {
	log   *zap.SugaredLogger
	feed  *session.Feed
	store *history.Store
}

func NewServer(log *zap.SugaredLogger, feed *session.Feed, store *history.Store) *Server {
	return &Server{log: log, feed: feed, store: store}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Get("/matches", s.matches)
	r.Get("/matches/{matchID}/rounds", s.rounds)
	r.Get("/feed", s.feedSocket)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.feed.Latest()
	if !ok {
		http.Error(w, "no session yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	matches, err := s.store.RecentMatches(r.Context(), 20)
	if err != nil {
		s.log.Errorw("list matches", "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []history.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) rounds(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	matchID := chi.URLParam(r, "matchID")
	rounds, err := s.store.Rounds(r.Context(), matchID)
	if err != nil {
		s.log.Errorw("list rounds", "match", matchID, "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if rounds == nil {
		rounds = []history.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the status server until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infow("status api listening", "addr", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
