// Package store provides storage backends for the test plan creator bot.
//
// This file implements a PostgreSQL-backed conversation store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "embed"

	"github.com/qacraft/testplanbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
	// mu serializes the read-decide-mutate-write cycle of UpdateConversation.
	mu sync.Mutex
}

// NewPostgresStore creates a new Postgres conversation store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")

	return &PostgresStore{db: db}, nil
}

// GetConversation returns the user's state, or nil if none exists.
func (s *PostgresStore) GetConversation(userID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT user_id, status, feature_name, feature_details, feature_criteria, selected_tabs, last_event_ts, last_bot_message, created_at, updated_at FROM conversations WHERE user_id = $1`, userID)
	st, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", userID, err)
	}
	return st, nil
}

// SaveConversation upserts the given state.
func (s *PostgresStore) SaveConversation(state models.ConversationState) error {
	if state.UserID == "" {
		return fmt.Errorf("conversation state missing user id")
	}
	tabs, err := marshalTabs(state.SelectedTabs)
	if err != nil {
		return err
	}
	state.UpdatedAt = time.Now()
	_, err = s.db.Exec(`INSERT INTO conversations (user_id, status, feature_name, feature_details, feature_criteria, selected_tabs, last_event_ts, last_bot_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			feature_name = EXCLUDED.feature_name,
			feature_details = EXCLUDED.feature_details,
			feature_criteria = EXCLUDED.feature_criteria,
			selected_tabs = EXCLUDED.selected_tabs,
			last_event_ts = EXCLUDED.last_event_ts,
			last_bot_message = EXCLUDED.last_bot_message,
			updated_at = EXCLUDED.updated_at`,
		state.UserID, string(state.Status), nilIfEmpty(state.FeatureName), nilIfEmpty(state.FeatureDetails),
		nilIfEmpty(state.FeatureCriteria), tabs, state.LastEventTS, nilIfEmpty(state.LastBotMessage),
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to save conversation for %s: %w", state.UserID, err)
	}
	return nil
}

// UpdateConversation applies fn to the user's state under the store lock.
func (s *PostgresStore) UpdateConversation(userID string, fn func(*models.ConversationState) error) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.GetConversation(userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewConversationState(userID)
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	if err := s.SaveConversation(*state); err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
