package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qacraft/testplanbot/internal/genai"
	"github.com/qacraft/testplanbot/internal/mdtable"
	"github.com/qacraft/testplanbot/internal/models"
)

// DefaultCallTimeout bounds every external collaborator call during a run so
// a hung collaborator cannot hang the handling goroutine indefinitely.
const DefaultCallTimeout = 2 * time.Minute

// sheetURLPrefix builds the deep link included in the final message.
const sheetURLPrefix = "https://docs.google.com/spreadsheets/d/"

// headerReservedRows is the number of rows at the top of each template tab
// already occupied by the template's own header. Parsed rows start below it.
const headerReservedRows = 2

// Planner is the plan generation orchestrator: duplicate the template
// spreadsheet, then per selected category build a prompt, invoke the model,
// parse the reply, and write it into the sheet. Any failure aborts the
// remaining run.
type Planner struct {
	creds           CredentialIssuer
	model           genai.ClientInterface
	sheets          SheetService
	messenger       Messenger
	templateSheetID string
	callTimeout     time.Duration
}

// NewPlanner creates the orchestrator with its collaborators.
func NewPlanner(creds CredentialIssuer, model genai.ClientInterface, sheets SheetService, messenger Messenger, templateSheetID string) *Planner {
	slog.Debug("Planner.NewPlanner: creating planner", "templateSheetID", templateSheetID)
	return &Planner{
		creds:           creds,
		model:           model,
		sheets:          sheets,
		messenger:       messenger,
		templateSheetID: templateSheetID,
		callTimeout:     DefaultCallTimeout,
	}
}

// SetCallTimeout overrides the per-call timeout applied to collaborator calls.
func (p *Planner) SetCallTimeout(d time.Duration) {
	p.callTimeout = d
}

// GeneratePlan runs the full sequence for a completed intake, reporting
// progress to the channel, and returns the final spreadsheet link message
// after sending it.
func (p *Planner) GeneratePlan(ctx context.Context, channelID string, in PlanInput) (string, error) {
	if in.FeatureName == "" {
		return "", models.ErrEmptyFeatureName
	}

	// Credentials come first; every subsequent step needs them, so a failure
	// here aborts the run before any spreadsheet work.
	creds, err := p.issueCredentials(ctx)
	if err != nil {
		return "", fmt.Errorf("credential issuance failed: %w", err)
	}

	sheetID, err := p.duplicateTemplate(ctx, in.FeatureName)
	if err != nil {
		return "", fmt.Errorf("spreadsheet provisioning failed: %w", err)
	}
	slog.Info("Planner.GeneratePlan: spreadsheet created", "sheetID", sheetID, "feature", in.FeatureName)

	// Categories are processed in the order the user selected them.
	for _, category := range in.Categories {
		if err := p.generateCategory(ctx, channelID, sheetID, category, in, creds); err != nil {
			return "", fmt.Errorf("category %s failed: %w", category, err)
		}
	}

	finalMessage := "Here's the Google Sheet with test cases: " + sheetURLPrefix + sheetID
	if err := p.sendMessage(ctx, channelID, finalMessage); err != nil {
		return "", fmt.Errorf("failed to send plan link: %w", err)
	}
	return finalMessage, nil
}

// generateCategory produces and writes one category's test cases.
func (p *Planner) generateCategory(ctx context.Context, channelID, sheetID string, category models.TestCategory, in PlanInput, creds models.SessionCredentials) error {
	tabName, ok := category.TabName()
	if !ok {
		return fmt.Errorf("category %q: %w", category, models.ErrUnknownCategory)
	}

	if err := p.sendMessage(ctx, channelID, fmt.Sprintf("Getting test cases for %s tab", tabName)); err != nil {
		slog.Warn("Planner.generateCategory: progress message failed", "error", err, "tab", tabName)
	}

	prompt, err := BuildPrompt(in.FeatureName, in.FeatureDetails, in.FeatureCriteria, category)
	if err != nil {
		return err
	}

	raw, err := p.invokeModel(ctx, prompt, creds)
	if err != nil {
		return fmt.Errorf("model invocation failed: %w", err)
	}

	if err := p.sendMessage(ctx, channelID, fmt.Sprintf("Successfully built test cases for %s tab", tabName)); err != nil {
		slog.Warn("Planner.generateCategory: progress message failed", "error", err, "tab", tabName)
	}

	rows, err := mdtable.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse model reply for %s: %w", tabName, err)
	}

	a1Range := valueRange(tabName, rows)
	if err := p.updateRange(ctx, sheetID, a1Range, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", a1Range, err)
	}

	// Resizing is cosmetic; a failure is not worth aborting the run.
	if err := p.autoResize(ctx, sheetID, tabName, int64(len(rows[0]))); err != nil {
		slog.Warn("Planner.generateCategory: column auto-resize failed", "error", err, "tab", tabName)
	}

	slog.Info("Planner.generateCategory: tab populated", "tab", tabName, "rows", len(rows))
	return nil
}

// valueRange computes the destination range: columns A through the Nth column
// of the parsed header, rows 3 through 2+rowCount. Rows 1-2 hold the header
// the template tab already contains.
func valueRange(tabName string, rows [][]string) string {
	endColumn := rune('A' + len(rows[0]) - 1)
	return fmt.Sprintf("'%s'!A%d:%c%d", tabName, headerReservedRows+1, endColumn, len(rows)+headerReservedRows)
}

func (p *Planner) sendMessage(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	_, err := p.messenger.SendMessage(ctx, channelID, text)
	return err
}

func (p *Planner) issueCredentials(ctx context.Context) (models.SessionCredentials, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.creds.Issue(ctx)
}

func (p *Planner) duplicateTemplate(ctx context.Context, featureName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.sheets.DuplicateTemplate(ctx, p.templateSheetID, featureName)
}

func (p *Planner) invokeModel(ctx context.Context, prompt string, creds models.SessionCredentials) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.model.Invoke(ctx, prompt, creds)
}

func (p *Planner) updateRange(ctx context.Context, sheetID, a1Range string, rows [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.sheets.UpdateRange(ctx, sheetID, a1Range, rows)
}

func (p *Planner) autoResize(ctx context.Context, sheetID, tabName string, columns int64) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.sheets.AutoResizeColumns(ctx, sheetID, tabName, columns)
}
