package enrich

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/runner"
)

// severityRule maps glob patterns over the failure text to a severity.
type severityRule struct {
	field    string // "test" or "error"
	pattern  string
	severity bugstore.Severity
}

// Rules are evaluated in order; first match wins.
var severityRules = []severityRule{
	{"test", "*load*", bugstore.SeverityCritical},
	{"test", "*crash*", bugstore.SeverityCritical},
	{"test", "*security*", bugstore.SeverityCritical},
	{"error", "*timeout*", bugstore.SeverityHigh},
	{"error", "*connection*", bugstore.SeverityHigh},
	{"error", "*network*", bugstore.SeverityHigh},
	{"test", "*login*", bugstore.SeverityHigh},
	{"test", "*payment*", bugstore.SeverityHigh},
	{"test", "*checkout*", bugstore.SeverityHigh},
}

// ClassifySeverity derives a severity from the failure's test name and
// error text when no AI judgment is available.
func ClassifySeverity(failure runner.Failure) bugstore.Severity {
	test := strings.ToLower(failure.Test)
	errText := strings.ToLower(failure.Error)

	for _, rule := range severityRules {
		subject := test
		if rule.field == "error" {
			subject = errText
		}
		if ok, _ := doublestar.Match(rule.pattern, subject); ok {
			return rule.severity
		}
	}

	return bugstore.SeverityMedium
}

// BaselineSteps derives generic reproduction steps from the test name.
func BaselineSteps(failure runner.Failure, jobCtx Context) string {
	steps := []string{
		"1. Open web browser",
		"2. Navigate to " + displayURL(jobCtx),
	}

	test := strings.ToLower(failure.Test)
	switch {
	case strings.Contains(test, "load"):
		steps = append(steps,
			"3. Wait for the page to load completely",
			"4. Observe the loading behavior")
	case strings.Contains(test, "title"):
		steps = append(steps,
			"3. Check the page title in the browser tab",
			"4. Verify the title content")
	case strings.Contains(test, "element"):
		steps = append(steps,
			"3. Inspect the page elements",
			"4. Look for missing or broken elements")
	default:
		steps = append(steps,
			"3. Perform the test action",
			"4. Observe the result")
	}

	return strings.Join(steps, "\n")
}

// BaselineExpectedResult derives a generic expected result from the test name.
func BaselineExpectedResult(failure runner.Failure) string {
	test := strings.ToLower(failure.Test)
	switch {
	case strings.Contains(test, "load"):
		return "Page should load successfully without errors and display content within reasonable time"
	case strings.Contains(test, "title"):
		return "Page should have a meaningful, non-empty title that describes the page content"
	case strings.Contains(test, "element"):
		return "Page should contain basic HTML structure with proper elements"
	default:
		return "Test should pass without errors"
	}
}

func displayURL(jobCtx Context) string {
	if strings.TrimSpace(jobCtx.TestURL) == "" {
		return "the test URL"
	}
	return jobCtx.TestURL
}
