// Package api provides HTTP handlers for the Slack webhook endpoints.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/qacraft/testplanbot/internal/flow"
	"github.com/qacraft/testplanbot/internal/messaging"
	"github.com/qacraft/testplanbot/internal/models"
	"github.com/qacraft/testplanbot/internal/signature"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Test Plan Creator is running", nil))
}

// eventsHandler terminates the Slack Events API subscription: URL
// verification handshakes, message events, and app-home opens.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.eventsHandler: processing event request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.eventsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.eventsHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}
	if !s.verifyRequest(r, body) {
		slog.Warn("Server.eventsHandler: signature verification failed")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid request signature"))
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.Warn("Server.eventsHandler: failed to parse event", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid event payload"))
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			slog.Warn("Server.eventsHandler: failed to parse challenge", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid challenge payload"))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte(challenge.Challenge)); err != nil {
			slog.Error("Server.eventsHandler: failed to write challenge", "error", err)
		}
		return

	case slackevents.CallbackEvent:
		s.dispatchCallbackEvent(event.InnerEvent)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))

	default:
		slog.Debug("Server.eventsHandler: ignoring event type", "type", event.Type)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
	}
}

// dispatchCallbackEvent hands a callback event to the flow on its own
// goroutine. Slack expects an acknowledgment within seconds while a plan
// generation run can take minutes, so handling never blocks the response.
func (s *Server) dispatchCallbackEvent(inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		// Edits, deletions, and other bots are not conversation input.
		if ev.SubType != "" || ev.BotID != "" {
			slog.Debug("Server.dispatchCallbackEvent: skipping message", "subType", ev.SubType, "botID", ev.BotID)
			return
		}
		msg := flow.Event{
			UserID:    ev.User,
			ChannelID: ev.Channel,
			Text:      ev.Text,
			Timestamp: ev.TimeStamp,
		}
		go func() {
			if err := s.handler.HandleMessage(context.Background(), msg); err != nil {
				slog.Error("Server.dispatchCallbackEvent: message handling failed", "error", err, "userID", msg.UserID)
			}
		}()

	case *slackevents.AppHomeOpenedEvent:
		userID := ev.User
		go func() {
			if err := s.handler.HandleHomeOpened(context.Background(), userID); err != nil {
				slog.Error("Server.dispatchCallbackEvent: home publish failed", "error", err, "userID", userID)
			}
		}()

	default:
		slog.Debug("Server.dispatchCallbackEvent: ignoring inner event", "type", inner.Type)
	}
}

// interactionsHandler terminates Slack interactivity payloads. The only
// interaction the bot emits is the category picker; a submit press folds the
// checked values into the user's conversation.
func (s *Server) interactionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.interactionsHandler: processing interaction", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.interactionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.interactionsHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}
	if !s.verifyRequest(r, body) {
		slog.Warn("Server.interactionsHandler: signature verification failed")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid request signature"))
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		slog.Warn("Server.interactionsHandler: failed to parse form body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(values.Get("payload")), &callback); err != nil {
		slog.Warn("Server.interactionsHandler: failed to parse payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid interaction payload"))
		return
	}

	if callback.Type == slack.InteractionTypeBlockActions && hasSubmitAction(callback) {
		selected := selectedCheckboxValues(callback)
		userID := callback.User.ID
		channelID := callback.Container.ChannelID
		messageTS := callback.Container.MessageTs
		go func() {
			if err := s.handler.HandleCategorySelection(context.Background(), userID, channelID, messageTS, selected); err != nil {
				slog.Error("Server.interactionsHandler: selection handling failed", "error", err, "userID", userID)
			}
		}()
	} else {
		slog.Debug("Server.interactionsHandler: ignoring interaction", "type", callback.Type)
	}

	// Slack only needs an acknowledgment.
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// verifyRequest checks the Slack request signature over the raw body.
func (s *Server) verifyRequest(r *http.Request, body []byte) bool {
	return signature.Verify(
		body,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		s.signingSecret,
	)
}

// hasSubmitAction reports whether the callback carries the picker submit press.
func hasSubmitAction(callback slack.InteractionCallback) bool {
	for _, action := range callback.ActionCallback.BlockActions {
		if action.ActionID == messaging.SubmitTabsActionID {
			return true
		}
	}
	return false
}

// selectedCheckboxValues collects the checked option values from the view
// state, preserving the order Slack reports them in.
func selectedCheckboxValues(callback slack.InteractionCallback) []string {
	var values []string
	if callback.BlockActionState == nil {
		return values
	}
	for _, blockState := range callback.BlockActionState.Values {
		for _, actionState := range blockState {
			if actionState.Type != "checkboxes" {
				continue
			}
			for _, opt := range actionState.SelectedOptions {
				values = append(values, opt.Value)
			}
		}
	}
	return values
}
