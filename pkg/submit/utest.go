package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

const (
	// DefaultBaseURL is the uTest platform API root.
	DefaultBaseURL = "https://api.utest.com/v1"

	// DefaultRate and DefaultBurst keep submissions inside the platform's
	// published limits.
	DefaultRate  = 2.0
	DefaultBurst = 4

	defaultRequestTimeout = 30 * time.Second
)

// UTestGateway submits bug reports to the uTest platform over HTTPS with
// bearer authentication. Outbound calls are rate limited.
type UTestGateway struct {
	baseURL string
	apiKey  string
	cycleID string
	limiter *rate.Limiter
	client  *http.Client
	log     *zap.Logger
}

// NewUTest builds a uTest gateway from cfg. A missing API key is not an
// error: every Submit returns a skipped outcome so runs stay usable in
// local setups.
func NewUTest(cfg Config, log *zap.Logger) *UTestGateway {
	if log == nil {
		log = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	return &UTestGateway{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		cycleID: cfg.CycleID,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		log:     log,
	}
}

type utestBugPayload struct {
	Title          string `json:"title"`
	Environment    string `json:"environment"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ActualResult   string `json:"actual_result"`
	ExpectedResult string `json:"expected_result"`
	Severity       string `json:"severity"`
	CycleID        string `json:"cycle_id,omitempty"`
}

type utestBugResponse struct {
	ID string `json:"id"`
}

// Submit posts one bug report. Transport and API faults come back as failed
// outcomes with the reason attached, never as a panic or fatal error.
func (g *UTestGateway) Submit(ctx context.Context, bug bugstore.Bug) Outcome {
	if g.apiKey == "" {
		return Outcome{Status: StatusSkipped, Reason: "uTest API key not configured"}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("rate limiter: %s", err)}
	}

	payload := utestBugPayload{
		Title:          bug.Summary,
		Environment:    bug.Environment,
		Preconditions:  bug.Preconditions,
		Steps:          bug.Steps,
		ActualResult:   bug.ActualResult,
		ExpectedResult: bug.ExpectedResult,
		Severity:       string(bug.Severity),
		CycleID:        g.cycleID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("encode bug payload: %s", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/bugs", bytes.NewReader(body))
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("build request: %s", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("uTest submission failed", zap.String("bug", bug.ID), zap.Error(err))
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.log.Warn("uTest rejected submission",
			zap.String("bug", bug.ID),
			zap.Int("status", resp.StatusCode))
		return Outcome{
			Status: StatusFailed,
			Reason: fmt.Sprintf("uTest API returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	var parsed utestBugResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("decode uTest response: %s", err)}
	}
	if parsed.ID == "" {
		return Outcome{Status: StatusFailed, Reason: "uTest response missing bug id"}
	}

	g.log.Info("bug submitted to uTest",
		zap.String("bug", bug.ID),
		zap.String("external_id", parsed.ID))
	return Outcome{Status: StatusSubmitted, ExternalID: parsed.ID}
}
