// Package enrich turns raw test failures into structured bug reports.
//
// Enrichment uses an external AI capability that may be unconfigured, fail,
// or return malformed output. All of those collapse into a typed Result the
// coordinator switches on; enrichment never aborts a job.
package enrich

import (
	"context"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/runner"
)

// Report is the six-field bug schema produced by enrichment.
type Report struct {
	Summary        string            `json:"summary"`
	Environment    string            `json:"environment"`
	Preconditions  string            `json:"preconditions"`
	Steps          string            `json:"steps"`
	ActualResult   string            `json:"actual_result"`
	ExpectedResult string            `json:"expected_result"`
	Severity       bugstore.Severity `json:"severity"`
}

// Outcome classifies how a Report was produced.
type Outcome string

const (
	// OutcomeEnriched means the AI call succeeded and the report carries
	// its parsed response.
	OutcomeEnriched Outcome = "enriched"
	// OutcomeUnavailable means no credential is configured; the report is
	// a fixed placeholder. Degraded, not an error.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeFailed means the AI call or response parsing failed; the
	// report is a fallback embedding the error text.
	OutcomeFailed Outcome = "failed"
)

// Result pairs a report with how it came to be.
type Result struct {
	Outcome Outcome
	Report  Report

	// Reason carries the failure text for OutcomeFailed.
	Reason string
}

// Context is the job-scoped information an enricher may use.
type Context struct {
	TestURL             string
	CycleOverview       string
	TestingInstructions string
	Provider            string

	// Logs are the job's log lines so far; enrichers bound how many they
	// forward.
	Logs []string
}

// Enricher produces a structured bug report for one failure. It must return
// within a bounded time and never needs an error branch: degradation is
// expressed through the Result's Outcome.
type Enricher interface {
	Enrich(ctx context.Context, failure runner.Failure, jobCtx Context) Result
}

// Static is a canned enricher for tests.
type Static struct {
	Result Result
	Calls  int
}

func (s *Static) Enrich(ctx context.Context, failure runner.Failure, jobCtx Context) Result {
	s.Calls++
	return s.Result
}
