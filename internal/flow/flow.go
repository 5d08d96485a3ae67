// Package flow implements the conversation state machine that collects a
// feature description through a scripted dialogue, and the orchestrator that
// turns the completed description into a populated test plan spreadsheet.
package flow

import (
	"context"

	"github.com/qacraft/testplanbot/internal/models"
)

// Event is one inbound message-type event from the chat platform.
// Timestamp is opaque and lexicographically ordered.
type Event struct {
	UserID    string
	ChannelID string
	Text      string
	Timestamp string
}

// Messenger is the outbound chat surface used by the flow.
type Messenger interface {
	// SendMessage posts a plain text message and returns its timestamp.
	SendMessage(ctx context.Context, channelID, text string) (string, error)

	// SendCategoryPicker posts the test category checkbox control.
	SendCategoryPicker(ctx context.Context, channelID string) error

	// PublishHome publishes the app-home view for a user.
	PublishHome(ctx context.Context, userID string) error
}

// CredentialIssuer provides the short-lived cloud credentials a plan
// generation run needs before any other work can start.
type CredentialIssuer interface {
	Issue(ctx context.Context) (models.SessionCredentials, error)
}

// SheetService provisions and writes the plan spreadsheet.
type SheetService interface {
	DuplicateTemplate(ctx context.Context, templateID, title string) (string, error)
	UpdateRange(ctx context.Context, sheetID, a1Range string, rows [][]string) error
	AutoResizeColumns(ctx context.Context, sheetID, tabName string, columns int64) error
}

// PlanInput is a completed intake: the collected feature description plus the
// categories the user selected, in selection order.
type PlanInput struct {
	FeatureName     string
	FeatureDetails  string
	FeatureCriteria string
	Categories      []models.TestCategory
}

// PlanGenerator produces a populated spreadsheet for a completed intake and
// returns the final chat message announcing it.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, channelID string, in PlanInput) (string, error)
}
