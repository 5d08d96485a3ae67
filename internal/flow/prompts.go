package flow

import (
	"fmt"
	"strings"

	"github.com/qacraft/testplanbot/internal/models"
)

// Placeholder names used by the per-category prompt templates. Substitution is
// keyed by name, which is why stored feature text has curly-brace pairs
// stripped (see RemoveCurlyBracePairs).
const (
	placeholderFeatureName    = "{feature_name}"
	placeholderFeatureDetails = "{feature_details}"
	placeholderCriteria       = "{acceptance_criteria}"
)

const standardTableInstruction = `The table should only include columns: S.No, Test Case Description, Priority (P0-high, P1-medium, P2-low), Test Steps, and Expected Outcomes.
Do not include any introductory text, explanations, or comments outside of the table.
Start your table immediately after this line and exclude any non-table text.
The response should be in markdown format, starting immediately below a header row like this:
| S.No | Test Case Description | Priority | Test Steps | Expected Outcomes |
| --- | --- | --- | --- | --- |`

const securityTableInstruction = `The table should include columns: S.No, Category, Test Case Description, Priority (P0-high, P1-medium, P2-low), Test Steps, and Expected Outcomes.
Do not include any introductory text, explanations, or comments outside of the table.
Start your table immediately after this line and exclude any non-table text.
The response should be in markdown format, starting immediately below a header row like this:
| S.No | Category | Test Case Description | Priority | Test Steps | Expected Outcomes |
| --- | --- | --- | --- | --- | --- |`

// promptTemplates holds the static per-category prompt templates.
var promptTemplates = map[models.TestCategory]string{
	models.CategoryAcceptanceCriteria: `Generate as many test cases as possible in tabular form for {feature_name} ensuring that all user scenarios are covered.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Do not just limit to 10 test cases, build as many test cases as possible with all possible combinations.
` + standardTableInstruction,

	models.CategoryRegressionTests: `Generate as many test cases as possible for potential regression in tabular form for features that might be impacted by {feature_details}.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Focus on areas of the application that are most likely to be affected and detail the steps required to verify that existing functionality is still working as expected.
` + standardTableInstruction,

	models.CategoryPerformance: `Generate as many test cases as possible to outline performance test scenarios in tabular form that assess the responsiveness, stability, and speed of {feature_details}.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Describe the setup, tools required to measure, expected metrics, and how to simulate load or stress conditions.
` + standardTableInstruction,

	models.CategorySecurity: `Generate as many test cases as possible in tabular form covering comprehensive security verification of {feature_details} including role-based access control, cross-organization data isolation, common attack vectors like XSS, SQL injection, and any potential vulnerabilities related to data exposure.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
` + securityTableInstruction,

	models.CategoryAPI: `If {feature_details} includes API changes, provide API test cases in tabular form that validate both positive paths and error cases. Generate as many test cases as possible.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Include tests for request and response integrity, error handling, and adherence to RESTful principles if applicable. Test cases should also consider boundary conditions and data validation.
Test steps should include the API to be used (if possible).
` + standardTableInstruction,

	models.CategoryBrowserSpecific: `Generate as many browser compatibility test cases as possible in tabular form that ensure {feature_details} works correctly on supported web browsers.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Include steps for checking functionality, layout, and user interactions.
` + standardTableInstruction,

	models.CategoryUsability: `Generate as many usability test cases as possible in tabular form that assess the user experience and interaction flow of {feature_details}.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Focus on intuitiveness, ease of use, and user satisfaction metrics.
` + standardTableInstruction,

	models.CategoryBackwardCompatibility: `Generate as many test cases as possible in tabular form to ensure backward compatibility for {feature_details}, paying special attention to impacts on existing features, customer queries, and data handling.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
Address any potential breaking changes and compatibility with previous versions.
` + standardTableInstruction,

	models.CategoryMigration: `Generate as many test cases as possible in tabular form to validate migration scenarios for {feature_details} including data migration integrity prior and post-migration, performance comparison, and the correctness of the data transformation process.
Feature details: {feature_details}
Acceptance Criteria: {acceptance_criteria}
` + standardTableInstruction,
}

// BuildPrompt fills the category's template with the collected feature fields.
func BuildPrompt(featureName, featureDetails, featureCriteria string, category models.TestCategory) (string, error) {
	tpl, ok := promptTemplates[category]
	if !ok {
		return "", fmt.Errorf("no prompt template for category %q: %w", category, models.ErrUnknownCategory)
	}
	r := strings.NewReplacer(
		placeholderFeatureName, featureName,
		placeholderFeatureDetails, featureDetails,
		placeholderCriteria, featureCriteria,
	)
	return r.Replace(tpl), nil
}
