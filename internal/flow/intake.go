package flow

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/qacraft/testplanbot/internal/models"
	"github.com/qacraft/testplanbot/internal/store"
)

// Bot messages for each step of the scripted dialogue.
const (
	welcomeMessage = ":wave: Hi! Welcome to Test Plan Creator.\n" +
		"To create a test plan, I'll start by asking a few questions about the feature. " +
		"What is the name of the feature you're working on?"
	featureDetailsMessage = "Please provide the details for the feature."
	extraDetailsMessage   = "Could you please provide any additional details/acceptance criteria/API Information (if any) for the feature? Else just reply with N/A"
	tabsReceivedMessage   = "Tab selections have been received. Processing the details..."
	generationFailedMsg   = "Something went wrong while building your test plan. Please try again."
)

// decision is what the state machine chose to do for an event; the matching
// side effects run after the store critical section is released.
type decision int

const (
	decisionDrop decision = iota
	decisionGreet
	decisionAskDetails
	decisionAskCriteria
	decisionAskTabs
	decisionGenerate
)

// IntakeFlow is the per-user conversation state machine. Each inbound event
// is dispatched on the user's current status inside the store's critical
// section; slow collaborator calls happen only after the section is released.
type IntakeFlow struct {
	store     store.Store
	messenger Messenger
	planner   PlanGenerator
}

// NewIntakeFlow creates the state machine with its dependencies.
func NewIntakeFlow(st store.Store, messenger Messenger, planner PlanGenerator) *IntakeFlow {
	slog.Debug("IntakeFlow.NewIntakeFlow: creating flow with dependencies")
	return &IntakeFlow{store: st, messenger: messenger, planner: planner}
}

// HandleMessage processes one inbound message event: it advances the user's
// conversation state and performs the step's outbound side effects.
func (f *IntakeFlow) HandleMessage(ctx context.Context, ev Event) error {
	if ev.UserID == "" {
		return fmt.Errorf("event missing user id")
	}
	text := strings.TrimSpace(ev.Text)

	var outcome decision
	state, err := f.store.UpdateConversation(ev.UserID, func(st *models.ConversationState) error {
		// Duplicate or out-of-order delivery.
		if ev.Timestamp <= st.LastEventTS {
			slog.Debug("IntakeFlow.HandleMessage: stale event discarded", "userID", ev.UserID, "eventTS", ev.Timestamp, "lastEventTS", st.LastEventTS)
			outcome = decisionDrop
			return nil
		}
		// A misconfigured transport can echo the bot's own message back as a
		// user message; Slack HTML-escapes text on the way.
		if st.LastBotMessage != "" && html.UnescapeString(text) == st.LastBotMessage {
			slog.Debug("IntakeFlow.HandleMessage: echoed bot message discarded", "userID", ev.UserID)
			outcome = decisionDrop
			return nil
		}
		st.LastEventTS = ev.Timestamp

		switch {
		case IsGreeting(text):
			// A greeting restarts the dialogue from any status.
			st.Status = models.StatusAwaitingFeatureName
			st.LastBotMessage = welcomeMessage
			outcome = decisionGreet

		case st.Status == models.StatusAwaitingFeatureName:
			st.FeatureName = RemoveCurlyBracePairs(text)
			st.Status = models.StatusAwaitingFeatureDetails
			st.LastBotMessage = featureDetailsMessage
			outcome = decisionAskDetails

		case st.Status == models.StatusAwaitingFeatureDetails:
			st.FeatureDetails = RemoveCurlyBracePairs(text)
			st.Status = models.StatusAwaitingFeatureCriteria
			st.LastBotMessage = extraDetailsMessage
			outcome = decisionAskCriteria

		case st.Status == models.StatusAwaitingFeatureCriteria:
			st.FeatureCriteria = RemoveCurlyBracePairs(text)
			st.Status = models.StatusTabsSelected
			outcome = decisionAskTabs

		case st.Status == models.StatusTabsSelected && st.ReadyForGeneration():
			// Flip away from tabs_selected before the lock is released so no
			// concurrent run can be triggered for this user.
			st.Status = models.StatusGenerating
			outcome = decisionGenerate

		default:
			slog.Debug("IntakeFlow.HandleMessage: no transition for event", "userID", ev.UserID, "status", st.Status)
			outcome = decisionDrop
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update conversation for %s: %w", ev.UserID, err)
	}

	switch outcome {
	case decisionDrop:
		return nil
	case decisionGreet:
		return f.send(ctx, ev.ChannelID, welcomeMessage)
	case decisionAskDetails:
		return f.send(ctx, ev.ChannelID, featureDetailsMessage)
	case decisionAskCriteria:
		return f.send(ctx, ev.ChannelID, extraDetailsMessage)
	case decisionAskTabs:
		if err := f.messenger.SendCategoryPicker(ctx, ev.ChannelID); err != nil {
			return err
		}
		return nil
	case decisionGenerate:
		return f.runGeneration(ctx, ev, state)
	}
	return nil
}

// HandleCategorySelection folds a category picker submission into the user's
// existing state, acknowledges it, and resumes the paused conversation with a
// synthetic message event.
func (f *IntakeFlow) HandleCategorySelection(ctx context.Context, userID, channelID, messageTS string, values []string) error {
	categories := make([]models.TestCategory, 0, len(values))
	for _, v := range values {
		cat := models.TestCategory(v)
		if !cat.Valid() {
			slog.Warn("IntakeFlow.HandleCategorySelection: skipping unknown category", "userID", userID, "value", v)
			continue
		}
		categories = append(categories, cat)
	}

	_, err := f.store.UpdateConversation(userID, func(st *models.ConversationState) error {
		st.SelectedTabs = categories
		st.Status = models.StatusTabsSelected
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record category selection for %s: %w", userID, err)
	}
	slog.Info("IntakeFlow.HandleCategorySelection: categories recorded", "userID", userID, "count", len(categories))

	if _, err := f.messenger.SendMessage(ctx, channelID, tabsReceivedMessage); err != nil {
		slog.Error("IntakeFlow.HandleCategorySelection: failed to send acknowledgment", "error", err, "userID", userID)
	}

	// Resume the paused dialogue; the picker message timestamp keeps the
	// per-user watermark monotonic.
	return f.HandleMessage(ctx, Event{UserID: userID, ChannelID: channelID, Timestamp: messageTS})
}

// runGeneration drives the plan generation run outside the store lock and
// commits the final state afterwards.
func (f *IntakeFlow) runGeneration(ctx context.Context, ev Event, state *models.ConversationState) error {
	input := PlanInput{
		FeatureName:     state.FeatureName,
		FeatureDetails:  state.FeatureDetails,
		FeatureCriteria: state.FeatureCriteria,
		Categories:      state.SelectedTabs,
	}

	finalMessage, genErr := f.planner.GeneratePlan(ctx, ev.ChannelID, input)
	if genErr != nil {
		slog.Error("IntakeFlow.runGeneration: plan generation failed", "error", genErr, "userID", ev.UserID)
		if _, sendErr := f.messenger.SendMessage(ctx, ev.ChannelID, generationFailedMsg); sendErr != nil {
			slog.Error("IntakeFlow.runGeneration: failed to send failure notice", "error", sendErr, "userID", ev.UserID)
		}
		// The collected fields survive so re-sending any message retries the run.
		if _, err := f.store.UpdateConversation(ev.UserID, func(st *models.ConversationState) error {
			st.Status = models.StatusTabsSelected
			st.LastBotMessage = generationFailedMsg
			return nil
		}); err != nil {
			slog.Error("IntakeFlow.runGeneration: failed to commit failure state", "error", err, "userID", ev.UserID)
		}
		return genErr
	}

	if _, err := f.store.UpdateConversation(ev.UserID, func(st *models.ConversationState) error {
		st.Reset()
		st.LastBotMessage = finalMessage
		return nil
	}); err != nil {
		return fmt.Errorf("failed to commit final state for %s: %w", ev.UserID, err)
	}
	slog.Info("IntakeFlow.runGeneration: plan delivered", "userID", ev.UserID, "categories", len(input.Categories))
	return nil
}

// HandleHomeOpened publishes the app-home view when a user opens the bot's home tab.
func (f *IntakeFlow) HandleHomeOpened(ctx context.Context, userID string) error {
	return f.messenger.PublishHome(ctx, userID)
}

func (f *IntakeFlow) send(ctx context.Context, channelID, text string) error {
	if _, err := f.messenger.SendMessage(ctx, channelID, text); err != nil {
		return err
	}
	return nil
}
