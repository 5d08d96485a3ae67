// Package api provides the HTTP surface for the test plan bot.
//
// It terminates the Slack Events API and interactivity webhooks, verifies
// request signatures, and dispatches events into the conversation flow.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qacraft/testplanbot/internal/flow"
)

// EventHandler is the conversation flow surface the server dispatches into.
type EventHandler interface {
	HandleMessage(ctx context.Context, ev flow.Event) error
	HandleCategorySelection(ctx context.Context, userID, channelID, messageTS string, values []string) error
	HandleHomeOpened(ctx context.Context, userID string) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server wires the webhook handlers to their dependencies.
type Server struct {
	handler       EventHandler
	signingSecret string
	addr          string
}

// NewServer creates an API server dispatching into the given flow.
func NewServer(handler EventHandler, signingSecret string, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	slog.Debug("Server.NewServer: creating API server", "addr", cfg.Addr)
	return &Server{
		handler:       handler,
		signingSecret: signingSecret,
		addr:          cfg.Addr,
	}
}

// Run starts the HTTP server and blocks until it fails or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.healthHandler)
	mux.HandleFunc("/slack/events", s.eventsHandler)
	mux.HandleFunc("/slack/interactions", s.interactionsHandler)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	}
}
