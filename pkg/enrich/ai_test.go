package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/runner"
)

type fakeCompletion struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func testFailure() runner.Failure {
	return runner.Failure{Test: "Page Load", Error: "HTTP 500"}
}

func TestEnrich_NoAPIKey(t *testing.T) {
	e := NewAI(Config{}, nil)

	res := e.Enrich(context.Background(), testFailure(), Context{})
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Equal(t, "AI Analysis Unavailable (No API Key)", res.Report.Summary)
	assert.Equal(t, bugstore.SeverityLow, res.Report.Severity)
}

func TestEnrich_Success(t *testing.T) {
	fake := &fakeCompletion{content: `{
		"summary": "Page returns HTTP 500 on load",
		"environment": "Chrome headless, Linux",
		"preconditions": "Target site deployed",
		"steps": "1. Open the URL",
		"actual_result": "Server error page",
		"expected_result": "Page renders",
		"severity": "High"
	}`}
	e := NewAI(Config{APIKey: "test-key"}, nil)
	e.client = fake

	res := e.Enrich(context.Background(), testFailure(), Context{TestURL: "https://example.com"})
	require.Equal(t, OutcomeEnriched, res.Outcome)
	assert.Equal(t, "Page returns HTTP 500 on load", res.Report.Summary)
	assert.Equal(t, bugstore.SeverityHigh, res.Report.Severity)
	assert.Equal(t, "Server error page", res.Report.ActualResult)
}

func TestEnrich_FencedResponse(t *testing.T) {
	fake := &fakeCompletion{content: "```json\n{\"summary\": \"s\", \"severity\": \"Low\"}\n```"}
	e := NewAI(Config{APIKey: "test-key"}, nil)
	e.client = fake

	res := e.Enrich(context.Background(), testFailure(), Context{})
	require.Equal(t, OutcomeEnriched, res.Outcome)
	assert.Equal(t, "s", res.Report.Summary)
	// Missing fields are backfilled from the heuristic baseline.
	assert.NotEmpty(t, res.Report.Steps)
	assert.Equal(t, "HTTP 500", res.Report.ActualResult)
}

func TestEnrich_CallFailure(t *testing.T) {
	fake := &fakeCompletion{err: errors.New("connection refused")}
	e := NewAI(Config{APIKey: "test-key"}, nil)
	e.client = fake

	res := e.Enrich(context.Background(), testFailure(), Context{})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "AI Analysis Failed", res.Report.Summary)
	assert.Equal(t, bugstore.SeverityMedium, res.Report.Severity)
	assert.Contains(t, res.Report.ActualResult, "connection refused")
	assert.Contains(t, res.Reason, "connection refused")
}

func TestEnrich_MalformedResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Sorry, I cannot help with that."},
		{"missing summary", `{"severity": "Low"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewAI(Config{APIKey: "test-key"}, nil)
			e.client = &fakeCompletion{content: tt.content}

			res := e.Enrich(context.Background(), testFailure(), Context{})
			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Equal(t, "AI Analysis Failed", res.Report.Summary)
			assert.Equal(t, bugstore.SeverityMedium, res.Report.Severity)
		})
	}
}

func TestEnrich_InvalidSeverityFallsBackToHeuristic(t *testing.T) {
	e := NewAI(Config{APIKey: "test-key"}, nil)
	e.client = &fakeCompletion{content: `{"summary": "s", "severity": "Blocker"}`}

	res := e.Enrich(context.Background(), testFailure(), Context{})
	require.Equal(t, OutcomeEnriched, res.Outcome)
	// "Page Load" matches the *load* rule.
	assert.Equal(t, bugstore.SeverityCritical, res.Report.Severity)
}

func TestBuildPrompt_BoundsLogLines(t *testing.T) {
	e := NewAI(Config{APIKey: "test-key", MaxLogLines: 50}, nil)

	var logs []string
	for i := 0; i < 200; i++ {
		logs = append(logs, fmt.Sprintf("line %d", i))
	}

	prompt := e.buildPrompt(testFailure(), Context{Logs: logs})
	assert.NotContains(t, prompt, "line 149\n")
	assert.Contains(t, prompt, "line 150")
	assert.Contains(t, prompt, "line 199")
	assert.Contains(t, prompt, "Test Name: Page Load")
	assert.Contains(t, prompt, "severity (Critical, High, Medium, Low)")
}

func TestBuildPrompt_IncludesCycleContext(t *testing.T) {
	e := NewAI(Config{APIKey: "test-key"}, nil)

	prompt := e.buildPrompt(testFailure(), Context{
		CycleOverview:       "Release 2.4 regression cycle",
		TestingInstructions: "Focus on checkout",
		Provider:            "utest",
	})
	assert.Contains(t, prompt, "Release 2.4 regression cycle")
	assert.Contains(t, prompt, "Focus on checkout")
	assert.Contains(t, prompt, "Target Tracker: utest")
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSON([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		test string
		err  string
		want bugstore.Severity
	}{
		{"Page Load", "HTTP 500", bugstore.SeverityCritical},
		{"Security Headers", "missing CSP", bugstore.SeverityCritical},
		{"Title Check", "timeout waiting for title", bugstore.SeverityHigh},
		{"Login Flow", "button missing", bugstore.SeverityHigh},
		{"Title Check", "title empty", bugstore.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.test+"/"+tt.err, func(t *testing.T) {
			got := ClassifySeverity(runner.Failure{Test: tt.test, Error: tt.err})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaselineSteps(t *testing.T) {
	steps := BaselineSteps(runner.Failure{Test: "Page Load"}, Context{TestURL: "https://example.com"})
	assert.True(t, strings.HasPrefix(steps, "1. Open web browser"))
	assert.Contains(t, steps, "https://example.com")
	assert.Contains(t, steps, "loading behavior")

	generic := BaselineSteps(runner.Failure{Test: "Custom Probe"}, Context{})
	assert.Contains(t, generic, "the test URL")
	assert.Contains(t, generic, "Perform the test action")
}

func TestBaselineExpectedResult(t *testing.T) {
	assert.Contains(t, BaselineExpectedResult(runner.Failure{Test: "Page Load"}), "load successfully")
	assert.Contains(t, BaselineExpectedResult(runner.Failure{Test: "Title Check"}), "non-empty title")
	assert.Equal(t, "Test should pass without errors", BaselineExpectedResult(runner.Failure{Test: "Other"}))
}
