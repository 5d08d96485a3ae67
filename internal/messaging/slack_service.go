// Package messaging provides the Slack Web API implementation of the bot's
// outbound message surface: plain messages, the category picker, and the
// app-home view.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/qacraft/testplanbot/internal/models"
)

// SubmitTabsActionID identifies the category picker's submit button in
// interaction payloads.
const SubmitTabsActionID = "submit_tabs"

// tabSelectionActionID identifies the checkbox group itself.
const tabSelectionActionID = "tab_selection"

// pickerFallbackText is the notification-level text for the picker message.
const pickerFallbackText = "Please select the tabs to update with test cases."

const homeViewText = ":wave: *Hi, Welcome to Test Plan Creator!*\n\n" +
	"Let's build a test plan together for your new feature.\n\n" +
	":arrow_right: Navigate to the Messages tab and send 'Hi' to start creating a test plan."

// SlackService sends messages through the Slack Web API.
type SlackService struct {
	client *slack.Client
}

// NewSlackService creates a SlackService with the given bot token.
func NewSlackService(botToken string) *SlackService {
	return &SlackService{client: slack.New(botToken)}
}

// SendMessage posts a plain text message to a channel and returns its timestamp.
func (s *SlackService) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	_, ts, err := s.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Error("SlackService.SendMessage: post failed", "error", err, "channelID", channelID)
		return "", fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	slog.Debug("SlackService.SendMessage: message posted", "channelID", channelID, "ts", ts)
	return ts, nil
}

// SendCategoryPicker posts the checkbox control listing all test categories
// with a submit button.
func (s *SlackService) SendCategoryPicker(ctx context.Context, channelID string) error {
	options := make([]*slack.OptionBlockObject, 0, len(models.Categories()))
	for _, cat := range models.Categories() {
		name, _ := cat.TabName()
		options = append(options, slack.NewOptionBlockObject(
			string(cat),
			slack.NewTextBlockObject(slack.PlainTextType, name, false, false),
			nil,
		))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "Please select the tabs to update with test cases:", false, false),
			nil, nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, " ", false, false),
			nil,
			slack.NewAccessory(slack.NewCheckboxGroupsBlockElement(tabSelectionActionID, options...)),
		),
		slack.NewActionBlock("",
			slack.NewButtonBlockElement(SubmitTabsActionID, SubmitTabsActionID,
				slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false)),
		),
	}

	_, _, err := s.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(pickerFallbackText, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		slog.Error("SlackService.SendCategoryPicker: post failed", "error", err, "channelID", channelID)
		return fmt.Errorf("failed to send category picker to %s: %w", channelID, err)
	}
	return nil
}

// PublishHome publishes the app-home view for a user.
func (s *SlackService) PublishHome(ctx context.Context, userID string) error {
	view := slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, homeViewText, false, false),
				nil, nil,
			),
		}},
	}
	hash := ""
	if _, err := s.client.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: userID, View: view, Hash: &hash}); err != nil {
		slog.Error("SlackService.PublishHome: publish failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to publish home view for %s: %w", userID, err)
	}
	slog.Debug("SlackService.PublishHome: home view published", "userID", userID)
	return nil
}
