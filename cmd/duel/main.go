// Command duel runs the duel coordinator headless: host a match or
// join one, keep the session synchronized, and expose live state over
// the status API for whatever front end is attached.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"duelsync/internal/config"
	"duelsync/internal/history"
	"duelsync/internal/logging"
	"duelsync/internal/session"
	"duelsync/internal/statusapi"
)

const tickInterval = 33 * time.Millisecond

// splitHostPort parses "host" or "host:port", falling back to
// defaultPort when the address carries none.
func splitHostPort(addr string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("bad port in %q: %w", addr, err)
	}
	return host, port, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "duel:", err)
		os.Exit(1)
	}
}

func run() error {
	hostMode := flag.Bool("host", false, "host a match and wait for an opponent")
	joinAddr := flag.String("join", "", "join a match at host address")
	flag.Parse()

	if *hostMode == (*joinAddr != "") {
		return fmt.Errorf("pass exactly one of -host or -join <address>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(log, session.Options{
		PlayerName:   cfg.PlayerName,
		BindAddress:  cfg.BindAddress,
		ReadyTimeout: cfg.ReadyTimeout,
		MaxRounds:    cfg.MaxRounds,
		DialTimeout:  cfg.DialTimeout,
		Recorder:     store,
	})

	api := statusapi.NewServer(log, sess.Feed(), store)
	go func() {
		if err := api.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
			log.Errorw("status api stopped", "err", err)
		}
	}()

	if *hostMode {
		log.Infow("hosting", "bind", cfg.BindAddress, "port", cfg.Port)
		if err := sess.HostGame(ctx, cfg.Port); err != nil {
			return err
		}
		log.Infow("opponent connected", "addr", sess.ListenAddr())
	} else {
		host, port, err := splitHostPort(*joinAddr, cfg.Port)
		if err != nil {
			return err
		}
		log.Infow("joining", "host", host, "port", port)
		if err := sess.JoinGame(host, port); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			sess.Disconnect()
			log.Info("shutting down")
			return nil
		case now := <-ticker.C:
			sess.Tick(now.Sub(last))
			last = now
			switch sess.Phase() {
			case session.PhaseMatchEnd:
				log.Infow("match finished", "match", sess.MatchID())
				sess.Disconnect()
				return nil
			case session.PhaseDisconnected:
				log.Info("session ended")
				return nil
			}
		}
	}
}
