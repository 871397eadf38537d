package submit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

// LogGateway records bug reports in the process log instead of an external
// tracker. It always succeeds, which makes it the default for local runs.
type LogGateway struct {
	log *zap.Logger

	mu        sync.Mutex
	submitted []bugstore.Bug
}

// NewLog builds a log-only gateway.
func NewLog(log *zap.Logger) *LogGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) Submit(_ context.Context, bug bugstore.Bug) Outcome {
	g.mu.Lock()
	g.submitted = append(g.submitted, bug)
	g.mu.Unlock()

	g.log.Info("bug report recorded",
		zap.String("bug", bug.ID),
		zap.String("test", bug.TestName),
		zap.String("severity", string(bug.Severity)),
		zap.String("summary", bug.Summary))

	return Outcome{Status: StatusSubmitted, ExternalID: fmt.Sprintf("LOG-%s", shortID(bug.ID))}
}

// Submitted returns the bugs recorded so far, in submission order.
func (g *LogGateway) Submitted() []bugstore.Bug {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]bugstore.Bug, len(g.submitted))
	copy(out, g.submitted)
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
