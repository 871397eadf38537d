package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/runner"
)

// Config configures the AI enricher.
type Config struct {
	// APIKey is the OpenAI credential. Empty means enrichment is
	// unconfigured and every call returns the placeholder report.
	APIKey string

	// Model defaults to DefaultModel.
	Model string

	// Timeout bounds one enrichment call. Zero means DefaultCallTimeout.
	Timeout time.Duration

	// MaxLogLines caps how many trailing job log lines are sent.
	// Zero means DefaultMaxLogLines.
	MaxLogLines int
}

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultCallTimeout = 60 * time.Second
	DefaultMaxLogLines = 50
)

// completionClient is the slice of the OpenAI client the enricher uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIEnricher produces bug reports via the OpenAI chat-completions API.
type AIEnricher struct {
	cfg    Config
	client completionClient
	log    *zap.Logger
}

var _ Enricher = (*AIEnricher)(nil)

// NewAI creates an AIEnricher. With no API key the enricher still works,
// returning the fixed "analysis unavailable" placeholder.
func NewAI(cfg Config, log *zap.Logger) *AIEnricher {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.MaxLogLines <= 0 {
		cfg.MaxLogLines = DefaultMaxLogLines
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &AIEnricher{cfg: cfg, log: log}
	if strings.TrimSpace(cfg.APIKey) != "" {
		e.client = openai.NewClient(cfg.APIKey)
	}
	return e
}

// Enrich builds the prompt, calls the model, and parses its JSON response.
// Every failure mode degrades to a fallback report; Enrich never blocks
// past the configured timeout.
func (e *AIEnricher) Enrich(ctx context.Context, failure runner.Failure, jobCtx Context) Result {
	if e.client == nil {
		return Result{Outcome: OutcomeUnavailable, Report: unavailableReport()}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: e.cfg.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: e.buildPrompt(failure, jobCtx)},
		},
	})
	if err != nil {
		e.log.Warn("AI analysis failed", zap.String("test", failure.Test), zap.Error(err))
		return failedResult(failure, err.Error())
	}
	if len(resp.Choices) == 0 {
		return failedResult(failure, "model returned no choices")
	}

	report, err := parseReport([]byte(resp.Choices[0].Message.Content), failure, jobCtx)
	if err != nil {
		e.log.Warn("AI response unparseable", zap.String("test", failure.Test), zap.Error(err))
		return failedResult(failure, err.Error())
	}

	return Result{Outcome: OutcomeEnriched, Report: report}
}

const systemPrompt = "You are a helpful QA assistant that outputs JSON."

// buildPrompt mirrors the uTest bug-report request: test name, bounded log
// tail, and the cycle context, with a strict JSON schema.
func (e *AIEnricher) buildPrompt(failure runner.Failure, jobCtx Context) string {
	logs := jobCtx.Logs
	if len(logs) > e.cfg.MaxLogLines {
		logs = logs[len(logs)-e.cfg.MaxLogLines:]
	}

	var b strings.Builder
	b.WriteString("You are a Senior QA Automation Engineer. Analyze the following browser test failure and generate a professional bug report in uTest standard format.\n\n")
	fmt.Fprintf(&b, "Test Name: %s\n", failure.Test)
	fmt.Fprintf(&b, "Error: %s\n", failure.Error)
	if failure.Traceback != "" {
		fmt.Fprintf(&b, "Traceback:\n%s\n", failure.Traceback)
	}
	fmt.Fprintf(&b, "\nLogs:\n%s\n", strings.Join(logs, "\n"))
	if jobCtx.CycleOverview != "" {
		fmt.Fprintf(&b, "\nCycle Overview: %s\n", jobCtx.CycleOverview)
	}
	if jobCtx.TestingInstructions != "" {
		fmt.Fprintf(&b, "Testing Instructions: %s\n", jobCtx.TestingInstructions)
	}
	if jobCtx.Provider != "" {
		fmt.Fprintf(&b, "Target Tracker: %s\n", jobCtx.Provider)
	}
	b.WriteString("\nReturn the response strictly in JSON format with the following keys:\n")
	b.WriteString("- summary\n- environment\n- preconditions\n- steps\n- actual_result\n- expected_result\n- severity (Critical, High, Medium, Low)\n")
	return b.String()
}

// parseReport unmarshals the model response, tolerating markdown code
// fences, and backfills missing fields from the heuristic baseline.
func parseReport(raw []byte, failure runner.Failure, jobCtx Context) (Report, error) {
	var report Report
	if err := json.Unmarshal(cleanJSON(raw), &report); err != nil {
		return Report{}, fmt.Errorf("parse model response: %w", err)
	}

	if strings.TrimSpace(report.Summary) == "" {
		return Report{}, fmt.Errorf("model response missing summary")
	}
	if !bugstore.ValidSeverity(report.Severity) {
		report.Severity = ClassifySeverity(failure)
	}
	if strings.TrimSpace(report.Steps) == "" {
		report.Steps = BaselineSteps(failure, jobCtx)
	}
	if strings.TrimSpace(report.ActualResult) == "" {
		report.ActualResult = failure.Error
	}
	if strings.TrimSpace(report.ExpectedResult) == "" {
		report.ExpectedResult = BaselineExpectedResult(failure)
	}

	return report, nil
}

// cleanJSON strips markdown code fences and surrounding whitespace. Models
// often wrap JSON in ```json ... ``` blocks even when asked not to.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}

	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	return s
}

func unavailableReport() Report {
	return Report{
		Summary:        "AI Analysis Unavailable (No API Key)",
		Environment:    "Unknown",
		Preconditions:  "Unknown",
		Steps:          "Unknown",
		ActualResult:   "Unknown",
		ExpectedResult: "Unknown",
		Severity:       bugstore.SeverityLow,
	}
}

func failedResult(failure runner.Failure, reason string) Result {
	return Result{
		Outcome: OutcomeFailed,
		Reason:  reason,
		Report: Report{
			Summary:        "AI Analysis Failed",
			Environment:    "Unknown",
			Preconditions:  "Unknown",
			Steps:          "Unknown",
			ActualResult:   fmt.Sprintf("Error: %s", reason),
			ExpectedResult: "Unknown",
			Severity:       bugstore.SeverityMedium,
		},
	}
}
