package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/qacraft/testplanbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalTabs encodes the selected categories as a JSON array, or nil when
// no selection has been made yet.
func marshalTabs(tabs []models.TestCategory) (interface{}, error) {
	if len(tabs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tabs)
	if err != nil {
		return nil, fmt.Errorf("marshal selected tabs: %w", err)
	}
	return string(b), nil
}

// scanConversation scans one conversations row.
func scanConversation(row *sql.Row) (*models.ConversationState, error) {
	var st models.ConversationState
	var status string
	var featureName, featureDetails, featureCriteria, selectedTabs, lastBotMessage sql.NullString
	err := row.Scan(
		&st.UserID, &status, &featureName, &featureDetails, &featureCriteria,
		&selectedTabs, &st.LastEventTS, &lastBotMessage, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Status = models.StatusType(status)
	st.FeatureName = featureName.String
	st.FeatureDetails = featureDetails.String
	st.FeatureCriteria = featureCriteria.String
	st.LastBotMessage = lastBotMessage.String
	if selectedTabs.Valid && selectedTabs.String != "" {
		if err := json.Unmarshal([]byte(selectedTabs.String), &st.SelectedTabs); err != nil {
			return nil, fmt.Errorf("unmarshal selected tabs: %w", err)
		}
	}
	return &st, nil
}
