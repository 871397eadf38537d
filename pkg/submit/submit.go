// Package submit forwards confirmed bug reports to an external tracker.
//
// A Gateway decides per bug whether the report was submitted, skipped, or
// failed; the caller records the outcome on the bug row and never treats a
// gateway fault as fatal to the job.
package submit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

// Status is the result class of one submission attempt.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusSkipped   Status = "SKIPPED"
	StatusFailed    Status = "FAILED"
)

// Outcome describes what happened to a single bug report.
type Outcome struct {
	Status     Status
	ExternalID string
	Reason     string
}

// Gateway submits a bug report to a tracker. Implementations must be safe
// for concurrent use.
type Gateway interface {
	Submit(ctx context.Context, bug bugstore.Bug) Outcome
}

// Supported provider names.
const (
	ProviderUTest = "utest"
	ProviderLog   = "log"
)

// Config selects and configures a submission provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	CycleID  string

	// RatePerSecond caps outbound submissions. Zero means DefaultRate.
	RatePerSecond float64
	Burst         int
}

// Known reports whether name is a recognized provider. The empty string
// is accepted and means the configured default.
func Known(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderLog, ProviderUTest:
		return true
	}
	return false
}

// New builds the gateway named by cfg.Provider. An empty provider selects
// the log gateway.
func New(cfg Config, log *zap.Logger) (Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLog:
		return NewLog(log), nil
	case ProviderUTest:
		return NewUTest(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown submission provider %q", cfg.Provider)
	}
}

// Selector resolves gateways by provider name so each job can direct its
// reports to a provider other than the configured default. Gateways are
// built once per provider and reused across jobs.
type Selector struct {
	cfg Config
	log *zap.Logger

	mu    sync.Mutex
	cache map[string]Gateway
}

func NewSelector(cfg Config, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{cfg: cfg, log: log, cache: make(map[string]Gateway)}
}

// Gateway returns the gateway for the named provider. An empty name falls
// back to the configured default provider.
func (s *Selector) Gateway(provider string) (Gateway, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(s.cfg.Provider))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gw, ok := s.cache[name]; ok {
		return gw, nil
	}

	cfg := s.cfg
	cfg.Provider = name
	gw, err := New(cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.cache[name] = gw
	return gw, nil
}

// FixedSelector always resolves to one gateway regardless of provider,
// for callers that do not vary providers per job.
type FixedSelector struct {
	G Gateway
}

func (f FixedSelector) Gateway(string) (Gateway, error) { return f.G, nil }
