// Package store provides storage backends for the test plan creator bot.
//
// This file implements an SQLite-backed conversation store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/qacraft/testplanbot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
	// mu serializes the read-decide-mutate-write cycle of UpdateConversation.
	mu sync.Mutex
}

// NewSQLiteStore creates a new SQLite conversation store with the given DSN.
// The DSN is a file path to the SQLite database file; the parent directory is
// created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

// GetConversation returns the user's state, or nil if none exists.
func (s *SQLiteStore) GetConversation(userID string) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT user_id, status, feature_name, feature_details, feature_criteria, selected_tabs, last_event_ts, last_bot_message, created_at, updated_at FROM conversations WHERE user_id = ?`, userID)
	st, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", userID, err)
	}
	return st, nil
}

// SaveConversation upserts the given state.
func (s *SQLiteStore) SaveConversation(state models.ConversationState) error {
	if state.UserID == "" {
		return fmt.Errorf("conversation state missing user id")
	}
	tabs, err := marshalTabs(state.SelectedTabs)
	if err != nil {
		return err
	}
	state.UpdatedAt = time.Now()
	_, err = s.db.Exec(`INSERT INTO conversations (user_id, status, feature_name, feature_details, feature_criteria, selected_tabs, last_event_ts, last_bot_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			feature_name = excluded.feature_name,
			feature_details = excluded.feature_details,
			feature_criteria = excluded.feature_criteria,
			selected_tabs = excluded.selected_tabs,
			last_event_ts = excluded.last_event_ts,
			last_bot_message = excluded.last_bot_message,
			updated_at = excluded.updated_at`,
		state.UserID, string(state.Status), nilIfEmpty(state.FeatureName), nilIfEmpty(state.FeatureDetails),
		nilIfEmpty(state.FeatureCriteria), tabs, state.LastEventTS, nilIfEmpty(state.LastBotMessage),
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to save conversation for %s: %w", state.UserID, err)
	}
	return nil
}

// UpdateConversation applies fn to the user's state under the store lock.
func (s *SQLiteStore) UpdateConversation(userID string, fn func(*models.ConversationState) error) (*models.ConversationState, error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
