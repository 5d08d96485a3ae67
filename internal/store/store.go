// Package store provides the conversation store for the test plan creator bot.
//
// It defines a per-user get/put/update abstraction and includes an in-memory
// backend (the default) plus SQLite and PostgreSQL backends behind the same
// interface, so a durable store can be swapped in without touching the state
// machine.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/qacraft/testplanbot/internal/models"
)

// Store is the conversation store abstraction. Update runs its callback as a
// critical section for the user's state: the read-decide-mutate-write cycle of
// one event is never interleaved with another event for any user.
type Store interface {
	// GetConversation returns a copy of the user's state, or nil if none exists.
	GetConversation(userID string) (*models.ConversationState, error)

	// SaveConversation upserts the given state.
	SaveConversation(state models.ConversationState) error

	// UpdateConversation loads the user's state (creating a fresh one on the
	// user's first event), applies fn to it under the store lock, and persists
	// the result. If fn returns an error nothing is persisted. The returned
	// state is a copy of what was persisted.
	UpdateConversation(userID string, fn func(*models.ConversationState) error) (*models.ConversationState, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore keeps all conversation state in a map guarded by a single
// mutex. State is lost on restart, which is the accepted default.
type InMemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.ConversationState
}

// NewInMemoryStore creates an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*models.ConversationState)}
}

// GetConversation returns a copy of the user's state, or nil if none exists.
func (s *InMemoryStore) GetConversation(userID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conversations[userID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// SaveConversation upserts the given state.
func (s *InMemoryStore) SaveConversation(state models.ConversationState) error {
	if state.UserID == "" {
		return fmt.Errorf("conversation state missing user id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state.UpdatedAt = time.Now()
	s.conversations[state.UserID] = state.Clone()
	return nil
}

// UpdateConversation applies fn to the user's state under the store lock.
func (s *InMemoryStore) UpdateConversation(userID string, fn func(*models.ConversationState) error) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.conversations[userID]
	if !ok {
		state = models.NewConversationState(userID)
	}

	// fn mutates a copy; a failed event leaves the stored state untouched.
	next := state.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	s.conversations[userID] = next
	return next.Clone(), nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
