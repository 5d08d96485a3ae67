package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/qacraft/testplanbot/internal/flow"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

// recordingHandler captures flow dispatches. Handlers dispatch on goroutines,
// so every capture is signaled through the calls channel.
type recordingHandler struct {
	calls      chan string
	messages   []flow.Event
	selections [][]string
	homeUsers  []string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{calls: make(chan string, 8)}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, ev flow.Event) error {
	h.messages = append(h.messages, ev)
	h.calls <- "message"
	return nil
}

func (h *recordingHandler) HandleCategorySelection(ctx context.Context, userID, channelID, messageTS string, values []string) error {
	h.selections = append(h.selections, append([]string{userID, channelID, messageTS}, values...))
	h.calls <- "selection"
	return nil
}

func (h *recordingHandler) HandleHomeOpened(ctx context.Context, userID string) error {
	h.homeUsers = append(h.homeUsers, userID)
	h.calls <- "home"
	return nil
}

// waitForCall blocks until the handler records a call or the deadline passes.
func (h *recordingHandler) waitForCall(t *testing.T) string {
	t.Helper()
	select {
	case kind := <-h.calls:
		return kind
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler dispatch")
		return ""
	}
}

// assertNoCall verifies nothing is dispatched within a short window.
func (h *recordingHandler) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case kind := <-h.calls:
		t.Fatalf("unexpected handler dispatch: %s", kind)
	case <-time.After(100 * time.Millisecond):
	}
}

// signedRequest builds a request carrying a valid Slack signature for body.
func signedRequest(t *testing.T, path, contentType, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	sig := "v0=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	return req
}

func newTestServer() (*Server, *recordingHandler) {
	handler := newRecordingHandler()
	return NewServer(handler, testSigningSecret), handler
}

func TestEventsRejectsInvalidSignature(t *testing.T) {
	server, handler := newTestServer()

	body := `{"type":"event_callback"}`
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rec := httptest.NewRecorder()

	server.eventsHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	handler.assertNoCall(t)
}

func TestEventsURLVerificationEchoesChallenge(t *testing.T) {
	server, _ := newTestServer()

	body := `{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`
	rec := httptest.NewRecorder()
	server.eventsHandler(rec, signedRequest(t, "/slack/events", "application/json", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("challenge body = %q", got)
	}
}

func TestEventsMessageDispatchesToFlow(t *testing.T) {
	server, handler := newTestServer()

	body := `{
		"type": "event_callback",
		"event": {
			"type": "message",
			"channel": "D024BE91L",
			"user": "U2147483697",
			"text": "hi",
			"ts": "1355517523.000005",
			"channel_type": "im"
		}
	}`
	rec := httptest.NewRecorder()
	server.eventsHandler(rec, signedRequest(t, "/slack/events", "application/json", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if kind := handler.waitForCall(t); kind != "message" {
		t.Fatalf("dispatched %s, want message", kind)
	}
	ev := handler.messages[0]
	if ev.UserID != "U2147483697" || ev.ChannelID != "D024BE91L" || ev.Text != "hi" || ev.Timestamp != "1355517523.000005" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestEventsMessageSubtypeIgnored(t *testing.T) {
	server, handler := newTestServer()

	body := `{
		"type": "event_callback",
		"event": {
			"type": "message",
			"subtype": "message_changed",
			"channel": "D024BE91L",
			"user": "U2147483697",
			"ts": "1355517523.000005"
		}
	}`
	rec := httptest.NewRecorder()
	server.eventsHandler(rec, signedRequest(t, "/slack/events", "application/json", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	handler.assertNoCall(t)
}

func TestEventsAppHomeOpenedDispatches(t *testing.T) {
	server, handler := newTestServer()

	body := `{
		"type": "event_callback",
		"event": {
			"type": "app_home_opened",
			"user": "U2147483697",
			"tab": "home"
		}
	}`
	rec := httptest.NewRecorder()
	server.eventsHandler(rec, signedRequest(t, "/slack/events", "application/json", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if kind := handler.waitForCall(t); kind != "home" {
		t.Fatalf("dispatched %s, want home", kind)
	}
	if handler.homeUsers[0] != "U2147483697" {
		t.Errorf("home user = %q", handler.homeUsers[0])
	}
}

func TestInteractionsSubmitParsesSelection(t *testing.T) {
	server, handler := newTestServer()

	payload := `{
		"type": "block_actions",
		"user": {"id": "U2147483697"},
		"container": {"type": "message", "channel_id": "D024BE91L", "message_ts": "1355517523.000010"},
		"actions": [{"type": "button", "block_id": "tab_picker_actions", "action_id": "submit_tabs", "action_ts": "1355517529.000001"}],
		"state": {
			"values": {
				"tab_picker": {
					"tab_selection": {
						"type": "checkboxes",
						"selected_options": [{"value": "security"}, {"value": "api"}]
					}
				}
			}
		}
	}`
	body := url.Values{"payload": []string{payload}}.Encode()
	rec := httptest.NewRecorder()
	server.interactionsHandler(rec, signedRequest(t, "/slack/interactions", "application/x-www-form-urlencoded", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if kind := handler.waitForCall(t); kind != "selection" {
		t.Fatalf("dispatched %s, want selection", kind)
	}
	sel := handler.selections[0]
	if sel[0] != "U2147483697" || sel[1] != "D024BE91L" || sel[2] != "1355517523.000010" {
		t.Errorf("selection context = %v", sel[:3])
	}
	got := sel[3:]
	if len(got) != 2 {
		t.Fatalf("selected values = %v, want two", got)
	}
	if !(got[0] == "security" && got[1] == "api") && !(got[0] == "api" && got[1] == "security") {
		t.Errorf("selected values = %v", got)
	}
}

func TestInteractionsWithoutSubmitIgnored(t *testing.T) {
	server, handler := newTestServer()

	payload := `{
		"type": "block_actions",
		"user": {"id": "U2147483697"},
		"container": {"type": "message", "channel_id": "D024BE91L", "message_ts": "1355517523.000010"},
		"actions": [{"type": "checkboxes", "block_id": "tab_picker", "action_id": "tab_selection"}]
	}`
	body := url.Values{"payload": []string{payload}}.Encode()
	rec := httptest.NewRecorder()
	server.interactionsHandler(rec, signedRequest(t, "/slack/interactions", "application/x-www-form-urlencoded", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	handler.assertNoCall(t)
}

func TestHealthHandler(t *testing.T) {
	server, _ := newTestServer()

	rec := httptest.NewRecorder()
	server.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Test Plan Creator is running") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
