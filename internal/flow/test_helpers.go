package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/qacraft/testplanbot/internal/models"
)

// mockMessenger records outbound messages for assertions in tests.
type mockMessenger struct {
	mu          sync.Mutex
	messages    []string
	channels    []string
	pickerCount int
	homeUsers   []string
	sendErr     error
	nextTS      int
}

func (m *mockMessenger) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.messages = append(m.messages, text)
	m.channels = append(m.channels, channelID)
	m.nextTS++
	return fmt.Sprintf("1700000000.%06d", m.nextTS), nil
}

func (m *mockMessenger) SendCategoryPicker(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pickerCount++
	m.channels = append(m.channels, channelID)
	return nil
}

func (m *mockMessenger) PublishHome(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeUsers = append(m.homeUsers, userID)
	return nil
}

func (m *mockMessenger) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// stubPlanner records generation requests and returns a canned result.
type stubPlanner struct {
	mu      sync.Mutex
	inputs  []PlanInput
	message string
	err     error
}

func (s *stubPlanner) GeneratePlan(ctx context.Context, channelID string, in PlanInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return "", s.err
	}
	if s.message == "" {
		return "Here's the Google Sheet with test cases: https://docs.google.com/spreadsheets/d/stub", nil
	}
	return s.message, nil
}

// mockIssuer implements CredentialIssuer.
type mockIssuer struct {
	creds models.SessionCredentials
	err   error
	calls int
}

func (m *mockIssuer) Issue(ctx context.Context) (models.SessionCredentials, error) {
	m.calls++
	if m.err != nil {
		return models.SessionCredentials{}, m.err
	}
	return m.creds, nil
}

// mockModel implements genai.ClientInterface with canned replies per call.
type mockModel struct {
	replies []string
	err     error
	prompts []string
}

func (m *mockModel) Invoke(ctx context.Context, prompt string, creds models.SessionCredentials) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	i := len(m.prompts) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], nil
}

// mockSheets implements SheetService and records the calls it receives.
type mockSheets struct {
	duplicated   []string // titles, in call order
	sheetID      string
	duplicateErr error
	ranges       []string
	written      [][][]string
	updateErr    error
	resized      []string // tab names
}

func (m *mockSheets) DuplicateTemplate(ctx context.Context, templateID, title string) (string, error) {
	if m.duplicateErr != nil {
		return "", m.duplicateErr
	}
	m.duplicated = append(m.duplicated, title)
	if m.sheetID == "" {
		return "sheet-123", nil
	}
	return m.sheetID, nil
}

func (m *mockSheets) UpdateRange(ctx context.Context, sheetID, a1Range string, rows [][]string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.ranges = append(m.ranges, a1Range)
	m.written = append(m.written, rows)
	return nil
}

func (m *mockSheets) AutoResizeColumns(ctx context.Context, sheetID, tabName string, columns int64) error {
	m.resized = append(m.resized, tabName)
	return nil
}
