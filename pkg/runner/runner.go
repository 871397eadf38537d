// Package runner executes browser test suites against a target URL.
//
// The coordinator consumes runners through the Runner interface and treats
// them as opaque: a runner never returns an error for failing tests, only
// for faults that prevent producing a Result at all.
package runner

import (
	"context"
	"encoding/json"
)

// Status is the overall outcome of one suite execution.
type Status string

const (
	// StatusCompleted means the suite ran and every check passed.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed means the suite ran to completion with at least one
	// failing check, or was cut off by the execution timeout.
	StatusFailed Status = "FAILED"
	// StatusError means the suite could not be executed at all.
	StatusError Status = "ERROR"
)

// Failure describes one failing check.
type Failure struct {
	Test      string `json:"test"`
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
	Stdout    string `json:"stdout,omitempty"`

	// Screenshot is a PNG captured at failure time, when the runner
	// supports it. Not serialized into the raw report.
	Screenshot []byte `json:"-"`
}

// Result is the structured outcome of one suite execution.
type Result struct {
	Status      Status    `json:"status"`
	Logs        []string  `json:"logs"`
	TestsRun    int       `json:"tests_run"`
	TestsPassed int       `json:"tests_passed"`
	TestsFailed int       `json:"tests_failed"`
	Failures    []Failure `json:"failures"`
}

// RawReport returns the result as a machine-readable JSON document.
func (r *Result) RawReport() json.RawMessage {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

// Runner executes a test suite against a URL and produces a structured
// result. Implementations must respect ctx cancellation and report a
// timeout as a FAILED result with an explanatory log line, not an error.
type Runner interface {
	Run(ctx context.Context, url string) (*Result, error)
}

// Stub is a canned runner for tests and dry runs.
type Stub struct {
	Result *Result
	Err    error

	// Calls counts Run invocations.
	Calls int
}

func (s *Stub) Run(ctx context.Context, url string) (*Result, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &Result{
		Status:      StatusCompleted,
		Logs:        []string{"stub run for " + url},
		TestsRun:    1,
		TestsPassed: 1,
	}, nil
}
