// Package models defines the core data structures for the test plan creator bot.
//
// It includes the per-user conversation state, the fixed test category set, and
// the API response envelope shared across modules.
package models

import (
	"errors"
	"time"
)

// StatusType identifies where a user is in the scripted intake dialogue.
type StatusType string

const (
	// StatusNew means no dialogue is in progress for the user.
	StatusNew StatusType = "new"
	// StatusAwaitingFeatureName means the bot has greeted the user and asked for a feature name.
	StatusAwaitingFeatureName StatusType = "awaiting_feature_name"
	// StatusAwaitingFeatureDetails means the feature name is stored and details were requested.
	StatusAwaitingFeatureDetails StatusType = "awaiting_feature_details"
	// StatusAwaitingFeatureCriteria means details are stored and acceptance criteria were requested.
	StatusAwaitingFeatureCriteria StatusType = "awaiting_feature_criteria"
	// StatusTabsSelected means the category picker was presented; generation can start
	// once a selection has been folded into the state.
	StatusTabsSelected StatusType = "tabs_selected"
	// StatusGenerating marks an in-flight plan generation run so a second event
	// cannot trigger a concurrent run for the same user.
	StatusGenerating StatusType = "generating"
)

// SentinelEventTS sorts lexicographically below any real Slack event timestamp.
const SentinelEventTS = "0"

// Error variables for better error handling and testability
var (
	ErrUnknownCategory  = errors.New("unknown test category")
	ErrEmptyFeatureName = errors.New("feature name cannot be empty")
)

// ConversationState is the per-user progress record through the intake dialogue.
// Exactly one exists per user id, created lazily on the user's first event.
type ConversationState struct {
	UserID          string         `json:"user_id"`
	Status          StatusType     `json:"status"`
	FeatureName     string         `json:"feature_name,omitempty"`
	FeatureDetails  string         `json:"feature_details,omitempty"`
	FeatureCriteria string         `json:"feature_criteria,omitempty"`
	SelectedTabs    []TestCategory `json:"selected_tabs,omitempty"`
	// LastEventTS is the timestamp of the most recently accepted inbound event;
	// events at or below it are duplicates or out-of-order deliveries.
	LastEventTS string `json:"last_event_ts"`
	// LastBotMessage is the literal text of the last message sent to this user,
	// used to suppress echo loops from a misconfigured transport.
	LastBotMessage string    `json:"last_bot_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewConversationState creates a fresh state for a user.
func NewConversationState(userID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		UserID:      userID,
		Status:      StatusNew,
		LastEventTS: SentinelEventTS,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ReadyForGeneration reports whether all feature fields are populated and at
// least one category has been selected.
func (s *ConversationState) ReadyForGeneration() bool {
	return s.FeatureName != "" && s.FeatureDetails != "" && s.FeatureCriteria != "" && len(s.SelectedTabs) > 0
}

// Reset clears the collected feature fields and returns the dialogue to the
// beginning. The event timestamp watermark and last bot message survive so
// duplicate and echo suppression keep working across dialogues.
func (s *ConversationState) Reset() {
	s.Status = StatusNew
	s.FeatureName = ""
	s.FeatureDetails = ""
	s.FeatureCriteria = ""
	s.SelectedTabs = nil
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	if s.SelectedTabs != nil {
		c.SelectedTabs = append([]TestCategory(nil), s.SelectedTabs...)
	}
	return &c
}

// SessionCredentials holds short-lived cloud credentials issued for one
// plan generation run.
type SessionCredentials struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiration      time.Time `json:"expiration,omitempty"`
}

// APIResponse is the standard JSON envelope returned by HTTP handlers.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with a result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error creates an error API response.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
