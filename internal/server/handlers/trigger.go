package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/coordinator"
	"github.com/triagekit/triagekit/pkg/submit"
)

// TriggerRequest is the body of POST /run-tests.
type TriggerRequest struct {
	TestURL             string `json:"test_url"`
	Provider            string `json:"provider,omitempty"`
	CycleOverview       string `json:"cycle_overview,omitempty"`
	TestingInstructions string `json:"testing_instructions,omitempty"`
}

// Trigger handles POST /run-tests: validate, create the job, and return
// it immediately while workers execute in the background.
func (a *API) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, r, apperrors.CodeValidation, "request body must be valid JSON", nil)
		return
	}

	if reason := validateTestURL(req.TestURL); reason != "" {
		apperrors.WriteError(w, r, apperrors.CodeValidation, reason, map[string]any{
			"field": "test_url",
			"value": req.TestURL,
		})
		return
	}

	if !submit.Known(req.Provider) {
		apperrors.WriteError(w, r, apperrors.CodeValidation,
			fmt.Sprintf("unknown provider %q", req.Provider), map[string]any{
				"field": "provider",
				"value": req.Provider,
			})
		return
	}

	job, err := a.Coordinator.Trigger(r.Context(), bugstore.JobParams{
		TestURL:             req.TestURL,
		Provider:            req.Provider,
		CycleOverview:       req.CycleOverview,
		TestingInstructions: req.TestingInstructions,
	})
	if errors.Is(err, coordinator.ErrQueueBusy) {
		apperrors.WriteError(w, r, apperrors.CodeServiceBusy, "all workers are busy, try again later", nil)
		return
	}
	if err != nil {
		a.Log.Error("trigger job", zap.Error(err))
		apperrors.WriteError(w, r, apperrors.CodeInternal, "could not create job", nil)
		return
	}

	a.writeJSON(w, http.StatusAccepted, job)
}

// validateTestURL returns a rejection reason, or "" when the URL is
// acceptable. Only absolute http/https URLs with a host are run.
func validateTestURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "test_url is required"
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "test_url is not a valid URL"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "test_url must use http or https"
	}
	if parsed.Host == "" {
		return "test_url must be an absolute URL with a host"
	}
	return ""
}
