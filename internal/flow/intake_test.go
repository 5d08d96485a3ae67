package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qacraft/testplanbot/internal/models"
	"github.com/qacraft/testplanbot/internal/store"
)

func newTestFlow(planner PlanGenerator) (*IntakeFlow, *store.InMemoryStore, *mockMessenger) {
	st := store.NewInMemoryStore()
	messenger := &mockMessenger{}
	if planner == nil {
		planner = &stubPlanner{}
	}
	return NewIntakeFlow(st, messenger, planner), st, messenger
}

func TestGreetingStartsDialogue(t *testing.T) {
	f, st, messenger := newTestFlow(nil)
	ctx := context.Background()

	err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "1.000001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, _ := st.GetConversation("U1")
	if state.Status != models.StatusAwaitingFeatureName {
		t.Errorf("status = %q, want %q", state.Status, models.StatusAwaitingFeatureName)
	}
	msgs := messenger.sentMessages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Welcome to Test Plan Creator") {
		t.Errorf("welcome message not sent: %v", msgs)
	}
	if state.LastBotMessage != msgs[0] {
		t.Error("welcome message not recorded as last bot message")
	}
}

func TestGreetingIsCaseInsensitive(t *testing.T) {
	f, st, _ := newTestFlow(nil)
	ctx := context.Background()
	for i, text := range []string{"Hi", "HI", " hi "} {
		user := string(rune('A' + i))
		if err := f.HandleMessage(ctx, Event{UserID: user, ChannelID: "C1", Text: text, Timestamp: "1.000001"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		state, _ := st.GetConversation(user)
		if state.Status != models.StatusAwaitingFeatureName {
			t.Errorf("greeting %q not accepted", text)
		}
	}
}

func TestDuplicateTimestampDiscarded(t *testing.T) {
	f, st, messenger := newTestFlow(nil)
	ctx := context.Background()

	if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "2.000000"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := st.GetConversation("U1")
	sentBefore := len(messenger.sentMessages())

	// Same timestamp, then an older one: both must be no-ops.
	for _, ts := range []string{"2.000000", "1.999999"} {
		if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "Login button", Timestamp: ts}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	after, _ := st.GetConversation("U1")
	if after.Status != before.Status || after.FeatureName != "" {
		t.Errorf("stale event mutated state: %+v", after)
	}
	if len(messenger.sentMessages()) != sentBefore {
		t.Error("stale event produced an outbound message")
	}
}

func TestEchoSuppression(t *testing.T) {
	f, st, messenger := newTestFlow(nil)
	ctx := context.Background()

	if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "1.000001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sentBefore := len(messenger.sentMessages())

	// The bot's own welcome message comes back HTML-escaped.
	echoed := strings.ReplaceAll(welcomeMessage, "'", "&#39;")
	if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: echoed, Timestamp: "1.000002"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, _ := st.GetConversation("U1")
	if state.FeatureName != "" {
		t.Errorf("echoed message stored as feature name: %q", state.FeatureName)
	}
	if state.Status != models.StatusAwaitingFeatureName {
		t.Errorf("echoed message advanced status to %q", state.Status)
	}
	if len(messenger.sentMessages()) != sentBefore {
		t.Error("echoed message produced an outbound message")
	}
	// An echo is a total no-op: even the watermark stays where it was.
	if state.LastEventTS != "1.000001" {
		t.Errorf("last event ts = %q, want unchanged watermark", state.LastEventTS)
	}
}

func TestCurlyBracesStrippedFromStoredText(t *testing.T) {
	f, st, _ := newTestFlow(nil)
	ctx := context.Background()

	steps := []Event{
		{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "1.000001"},
		{UserID: "U1", ChannelID: "C1", Text: "Login {feature_name} button", Timestamp: "1.000002"},
	}
	for _, ev := range steps {
		if err := f.HandleMessage(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	state, _ := st.GetConversation("U1")
	if state.FeatureName != "Login  button" {
		t.Errorf("feature name = %q, want curly pair removed", state.FeatureName)
	}
}

func TestMessageBeforeGreetingIsIgnored(t *testing.T) {
	f, st, messenger := newTestFlow(nil)
	ctx := context.Background()

	if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "please make me a plan", Timestamp: "1.000001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ := st.GetConversation("U1")
	if state.Status != models.StatusNew {
		t.Errorf("status = %q, want %q", state.Status, models.StatusNew)
	}
	if len(messenger.sentMessages()) != 0 {
		t.Error("unexpected outbound message before greeting")
	}
	// The watermark still advanced.
	if state.LastEventTS != "1.000001" {
		t.Errorf("last event ts = %q", state.LastEventTS)
	}
}

func TestFullIntakeScenario(t *testing.T) {
	planner := &stubPlanner{message: "Here's the Google Sheet with test cases: https://docs.google.com/spreadsheets/d/new-sheet"}
	f, st, messenger := newTestFlow(planner)
	ctx := context.Background()

	steps := []struct {
		text       string
		ts         string
		wantStatus models.StatusType
	}{
		{"hi", "1.000001", models.StatusAwaitingFeatureName},
		{"Login button", "1.000002", models.StatusAwaitingFeatureDetails},
		{"Adds a login button to the header", "1.000003", models.StatusAwaitingFeatureCriteria},
		{"N/A", "1.000004", models.StatusTabsSelected},
	}
	for _, step := range steps {
		if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: step.text, Timestamp: step.ts}); err != nil {
			t.Fatalf("step %q: unexpected error: %v", step.text, err)
		}
		state, _ := st.GetConversation("U1")
		if state.Status != step.wantStatus {
			t.Fatalf("after %q: status = %q, want %q", step.text, state.Status, step.wantStatus)
		}
	}
	if messenger.pickerCount != 1 {
		t.Errorf("picker sent %d times, want 1", messenger.pickerCount)
	}

	// The user submits Security and API, in that order.
	err := f.HandleCategorySelection(ctx, "U1", "C1", "1.000005", []string{"security", "api"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(planner.inputs) != 1 {
		t.Fatalf("planner invoked %d times, want 1", len(planner.inputs))
	}
	in := planner.inputs[0]
	if in.FeatureName != "Login button" || in.FeatureDetails != "Adds a login button to the header" || in.FeatureCriteria != "N/A" {
		t.Errorf("planner input fields wrong: %+v", in)
	}
	if len(in.Categories) != 2 || in.Categories[0] != models.CategorySecurity || in.Categories[1] != models.CategoryAPI {
		t.Errorf("selection order not preserved: %v", in.Categories)
	}

	state, _ := st.GetConversation("U1")
	if state.Status != models.StatusNew {
		t.Errorf("status after delivery = %q, want %q", state.Status, models.StatusNew)
	}
	if state.FeatureName != "" || state.SelectedTabs != nil {
		t.Error("feature fields not cleared after delivery")
	}
	if !strings.Contains(state.LastBotMessage, "docs.google.com/spreadsheets/d/new-sheet") {
		t.Errorf("final link not recorded as last bot message: %q", state.LastBotMessage)
	}

	msgs := messenger.sentMessages()
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], "Tab selections have been received") {
		t.Errorf("selection acknowledgment missing: %v", msgs)
	}
}

func TestGenerationFailureKeepsStateRetryable(t *testing.T) {
	planner := &stubPlanner{err: errors.New("model unavailable")}
	f, st, messenger := newTestFlow(planner)
	ctx := context.Background()

	for _, ev := range []Event{
		{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "1.000001"},
		{UserID: "U1", ChannelID: "C1", Text: "Export", Timestamp: "1.000002"},
		{UserID: "U1", ChannelID: "C1", Text: "CSV export of reports", Timestamp: "1.000003"},
		{UserID: "U1", ChannelID: "C1", Text: "N/A", Timestamp: "1.000004"},
	} {
		if err := f.HandleMessage(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	err := f.HandleCategorySelection(ctx, "U1", "C1", "1.000005", []string{"regression_tests"})
	if err == nil {
		t.Fatal("expected generation error to propagate")
	}

	state, _ := st.GetConversation("U1")
	if state.Status != models.StatusTabsSelected {
		t.Errorf("status after failure = %q, want %q", state.Status, models.StatusTabsSelected)
	}
	if state.FeatureName != "Export" {
		t.Error("collected fields lost on failure")
	}
	msgs := messenger.sentMessages()
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], "Something went wrong") {
		t.Errorf("user not told about the failure: %v", msgs)
	}

	// A retry message triggers a second run with the same input.
	if err := f.HandleMessage(ctx, Event{UserID: "U1", ChannelID: "C1", Text: "retry", Timestamp: "1.000006"}); err == nil {
		t.Fatal("expected second failure to propagate")
	}
	if len(planner.inputs) != 2 {
		t.Errorf("planner invoked %d times, want 2", len(planner.inputs))
	}
}

func TestUnknownCategoryValuesSkipped(t *testing.T) {
	planner := &stubPlanner{}
	f, st, _ := newTestFlow(planner)
	ctx := context.Background()

	for _, ev := range []Event{
		{UserID: "U1", ChannelID: "C1", Text: "hi", Timestamp: "1.000001"},
		{UserID: "U1", ChannelID: "C1", Text: "Search", Timestamp: "1.000002"},
		{UserID: "U1", ChannelID: "C1", Text: "Full text search", Timestamp: "1.000003"},
		{UserID: "U1", ChannelID: "C1", Text: "N/A", Timestamp: "1.000004"},
	} {
		if err := f.HandleMessage(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := f.HandleCategorySelection(ctx, "U1", "C1", "1.000005", []string{"bogus", "usability"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(planner.inputs) != 1 {
		t.Fatalf("planner invoked %d times, want 1", len(planner.inputs))
	}
	if cats := planner.inputs[0].Categories; len(cats) != 1 || cats[0] != models.CategoryUsability {
		t.Errorf("categories = %v, want only usability", cats)
	}

	state, _ := st.GetConversation("U1")
	if state.Status != models.StatusNew {
		t.Errorf("status = %q, want reset to new", state.Status)
	}
}

func TestHomeOpenedPublishesView(t *testing.T) {
	f, _, messenger := newTestFlow(nil)
	if err := f.HandleHomeOpened(context.Background(), "U9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messenger.homeUsers) != 1 || messenger.homeUsers[0] != "U9" {
		t.Errorf("home view users = %v", messenger.homeUsers)
	}
}
