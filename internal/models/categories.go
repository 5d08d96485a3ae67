package models

// TestCategory is one of the nine fixed test-dimension labels a user can pick.
// Each maps to a tab name in the template spreadsheet.
type TestCategory string

const (
	CategoryAcceptanceCriteria    TestCategory = "acceptance_criteria"
	CategoryRegressionTests       TestCategory = "regression_tests"
	CategoryPerformance           TestCategory = "performance"
	CategorySecurity              TestCategory = "security"
	CategoryAPI                   TestCategory = "api"
	CategoryBrowserSpecific       TestCategory = "browser_specific"
	CategoryUsability             TestCategory = "usability"
	CategoryBackwardCompatibility TestCategory = "backward_compatibility"
	CategoryMigration             TestCategory = "migration"
)

// tabNames maps each category to its sheet tab name in the template spreadsheet.
var tabNames = map[TestCategory]string{
	CategoryAcceptanceCriteria:    "Acceptance Criteria - Use Cases",
	CategoryRegressionTests:       "Regression Tests - Impacted Features",
	CategoryPerformance:           "Performance",
	CategorySecurity:              "Security",
	CategoryAPI:                   "API",
	CategoryBrowserSpecific:       "Browser Specific",
	CategoryUsability:             "Usability",
	CategoryBackwardCompatibility: "Backward Compatibility",
	CategoryMigration:             "Migration",
}

// Categories returns all test categories in their fixed presentation order.
func Categories() []TestCategory {
	return []TestCategory{
		CategoryAcceptanceCriteria,
		CategoryRegressionTests,
		CategoryPerformance,
		CategorySecurity,
		CategoryAPI,
		CategoryBrowserSpecific,
		CategoryUsability,
		CategoryBackwardCompatibility,
		CategoryMigration,
	}
}

// TabName returns the spreadsheet tab name for the category.
func (c TestCategory) TabName() (string, bool) {
	name, ok := tabNames[c]
	return name, ok
}

// Valid reports whether the category is one of the fixed nine.
func (c TestCategory) Valid() bool {
	_, ok := tabNames[c]
	return ok
}
