// Package coordinator drives jobs through their lifecycle.
//
// Trigger creates a PENDING job and hands it to a bounded worker pool;
// workers execute the browser run, turn failures into bug reports through
// fingerprinting, duplicate detection, enrichment, and submission, and
// publish every status transition to the notification hub.
package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triagekit/triagekit/pkg/artifact"
	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/enrich"
	"github.com/triagekit/triagekit/pkg/fingerprint"
	"github.com/triagekit/triagekit/pkg/notify"
	"github.com/triagekit/triagekit/pkg/runner"
	"github.com/triagekit/triagekit/pkg/submit"
)

// Defaults for the worker pool.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 32
)

// ErrQueueBusy is returned by Trigger when the job queue is saturated.
var ErrQueueBusy = errors.New("job queue is full")

// Config tunes the coordinator's worker pool.
type Config struct {
	Workers   int
	QueueSize int
}

// Detector reports whether a fingerprint was already recorded. The check
// may race a concurrent insert; the store's unique index is the backstop
// and a conflicting insert is re-classified as a duplicate.
type Detector interface {
	IsDuplicate(ctx context.Context, fp fingerprint.Fingerprint) (bool, error)
}

// GatewayResolver selects the submission gateway for a job's provider.
type GatewayResolver interface {
	Gateway(provider string) (submit.Gateway, error)
}

// Deps are the collaborators a coordinator needs. Artifacts is optional;
// when nil, failure screenshots are discarded.
type Deps struct {
	DB        *sql.DB
	Runner    runner.Runner
	Detector  Detector
	Enricher  enrich.Enricher
	Gateways  GatewayResolver
	Hub       *notify.Hub
	Artifacts artifact.Store
	Log       *zap.Logger
}

// Coordinator owns the job queue and worker pool.
type Coordinator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	queue chan string
	group *errgroup.Group
}

// New builds a coordinator. Start must be called before Trigger will make
// progress.
func New(deps Deps, cfg Config) *Coordinator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	return &Coordinator{
		cfg:   cfg,
		deps:  deps,
		log:   deps.Log,
		queue: make(chan string, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers run until Stop is called or ctx
// is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	c.group = group

	for i := 0; i < c.cfg.Workers; i++ {
		group.Go(func() error {
			for {
				select {
				case jobID, ok := <-c.queue:
					if !ok {
						return nil
					}
					c.execute(groupCtx, jobID)
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
			}
		})
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (c *Coordinator) Stop() error {
	close(c.queue)
	if c.group == nil {
		return nil
	}
	err := c.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Trigger creates a PENDING job and enqueues it for execution, returning
// immediately with the persisted job. A saturated queue rejects the
// trigger with ErrQueueBusy; the job row is marked ERROR so the rejection
// is visible in job history.
func (c *Coordinator) Trigger(ctx context.Context, params bugstore.JobParams) (*bugstore.Job, error) {
	job, err := bugstore.CreateJob(ctx, c.deps.DB, params)
	if err != nil {
		return nil, fmt.Errorf("trigger job: %w", err)
	}

	select {
	case c.queue <- job.ID:
		c.log.Info("job enqueued",
			zap.String("job", job.ID),
			zap.String("url", job.TestURL))
		return job, nil
	default:
	}

	job.Logs = append(job.Logs, "Job rejected: all workers busy and queue full")
	job.Status = bugstore.JobStatusError
	if uerr := bugstore.UpdateJob(ctx, c.deps.DB, job.ID, job.Status, job.Logs); uerr != nil {
		c.log.Error("mark rejected job failed", zap.String("job", job.ID), zap.Error(uerr))
	}
	c.publish(job, "Job queue is full, try again later")
	return nil, ErrQueueBusy
}

// execute runs one job end to end. Infrastructure faults end the job in
// ERROR with the fault text in the log; test failures are expected output
// and end the job in FAILED.
func (c *Coordinator) execute(ctx context.Context, jobID string) {
	job, err := bugstore.GetJob(ctx, c.deps.DB, jobID)
	if err != nil {
		c.log.Error("load job for execution", zap.String("job", jobID), zap.Error(err))
		return
	}
	if job.Status != bugstore.JobStatusPending {
		c.log.Warn("skipping job in unexpected state",
			zap.String("job", jobID),
			zap.String("status", string(job.Status)))
		return
	}

	job.Status = bugstore.JobStatusRunning
	job.Logs = append(job.Logs, fmt.Sprintf("Starting test execution against %s", job.TestURL))
	if err := c.persist(ctx, job); err != nil {
		c.fail(ctx, job, fmt.Sprintf("persist job state: %s", err))
		return
	}
	c.publish(job, "")

	result, err := c.deps.Runner.Run(ctx, job.TestURL)
	if err != nil {
		c.fail(ctx, job, fmt.Sprintf("Test execution error: %s", err))
		return
	}
	job.Logs = append(job.Logs, result.Logs...)

	newBugs, duplicates, err := c.reportFailures(ctx, job, result)
	if err != nil {
		c.fail(ctx, job, fmt.Sprintf("Bug reporting error: %s", err))
		return
	}

	switch result.Status {
	case runner.StatusCompleted:
		job.Status = bugstore.JobStatusCompleted
	case runner.StatusFailed:
		job.Status = bugstore.JobStatusFailed
	default:
		job.Status = bugstore.JobStatusError
	}
	job.Logs = append(job.Logs,
		fmt.Sprintf("Analysis complete: %d new bug(s), %d duplicate(s)", newBugs, duplicates))

	if err := c.persist(ctx, job); err != nil {
		c.fail(ctx, job, fmt.Sprintf("persist job result: %s", err))
		return
	}

	job.Bugs, err = bugstore.ListJobBugs(ctx, c.deps.DB, job.ID)
	if err != nil {
		c.log.Error("list job bugs for notification", zap.String("job", job.ID), zap.Error(err))
	}
	c.publish(job, "")

	c.log.Info("job finished",
		zap.String("job", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("new_bugs", newBugs),
		zap.Int("duplicates", duplicates))
}

// reportFailures turns every runner failure into a bug row. Returns the
// count of newly reported bugs and of duplicates.
func (c *Coordinator) reportFailures(ctx context.Context, job *bugstore.Job, result *runner.Result) (int, int, error) {
	var newBugs, duplicates int

	for _, failure := range result.Failures {
		fp := fingerprint.Compute(failure.Test, failure.Error, failure.Traceback)

		seen, err := c.deps.Detector.IsDuplicate(ctx, fp)
		if err != nil {
			return newBugs, duplicates, fmt.Errorf("duplicate check for %q: %w", failure.Test, err)
		}
		if seen {
			if err := c.recordDuplicate(ctx, job, failure, fp); err != nil {
				return newBugs, duplicates, err
			}
			duplicates++
			continue
		}

		inserted, err := c.recordNewBug(ctx, job, failure, fp)
		if err != nil {
			return newBugs, duplicates, err
		}
		if inserted {
			newBugs++
		} else {
			duplicates++
		}
	}

	return newBugs, duplicates, nil
}

// recordNewBug enriches, persists, and submits one previously unseen
// failure. Returns false when a concurrent writer claimed the fingerprint
// first and the bug was recorded as a duplicate instead.
func (c *Coordinator) recordNewBug(ctx context.Context, job *bugstore.Job, failure runner.Failure, fp fingerprint.Fingerprint) (bool, error) {
	enriched := c.deps.Enricher.Enrich(ctx, failure, enrich.Context{
		TestURL:             job.TestURL,
		Provider:            job.Provider,
		CycleOverview:       job.CycleOverview,
		TestingInstructions: job.TestingInstructions,
		Logs:                job.Logs,
	})
	switch enriched.Outcome {
	case enrich.OutcomeEnriched:
		job.Logs = append(job.Logs, fmt.Sprintf("AI analysis complete for test: %s", failure.Test))
	case enrich.OutcomeUnavailable:
		job.Logs = append(job.Logs, fmt.Sprintf("AI analysis unavailable for test: %s", failure.Test))
	case enrich.OutcomeFailed:
		job.Logs = append(job.Logs, fmt.Sprintf("AI analysis failed for test: %s (%s)", failure.Test, enriched.Reason))
	}

	bug := &bugstore.Bug{
		JobID:          job.ID,
		TestName:       failure.Test,
		Fingerprint:    fp.String(),
		Summary:        enriched.Report.Summary,
		Environment:    enriched.Report.Environment,
		Preconditions:  enriched.Report.Preconditions,
		Steps:          enriched.Report.Steps,
		ActualResult:   enriched.Report.ActualResult,
		ExpectedResult: enriched.Report.ExpectedResult,
		Severity:       enriched.Report.Severity,
		Status:         bugstore.BugStatusNew,
	}

	if path := c.storeScreenshot(ctx, job, failure); path != "" {
		bug.ArtifactPath = &path
	}

	err := bugstore.InsertBug(ctx, c.deps.DB, bug)
	if errors.Is(err, bugstore.ErrDuplicateFingerprint) {
		// A concurrent job reported this fingerprint between the duplicate
		// check and the insert.
		if derr := c.recordDuplicate(ctx, job, failure, fp); derr != nil {
			return false, derr
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert bug for %q: %w", failure.Test, err)
	}
	job.Logs = append(job.Logs, fmt.Sprintf("New bug reported for test: %s [%s]", failure.Test, bug.Severity))

	c.submitBug(ctx, job, bug)
	return true, nil
}

// recordDuplicate inserts a DUPLICATE stub row linking the failure to its
// fingerprint without re-enriching or re-submitting it.
func (c *Coordinator) recordDuplicate(ctx context.Context, job *bugstore.Job, failure runner.Failure, fp fingerprint.Fingerprint) error {
	bug := &bugstore.Bug{
		JobID:       job.ID,
		TestName:    failure.Test,
		Fingerprint: fp.String(),
		Summary:     fmt.Sprintf("Duplicate of previously reported failure (fingerprint %s)", fp.Short()),
		Severity:    bugstore.SeverityLow,
		Status:      bugstore.BugStatusDuplicate,
	}
	if err := bugstore.InsertBug(ctx, c.deps.DB, bug); err != nil {
		return fmt.Errorf("insert duplicate record for %q: %w", failure.Test, err)
	}
	job.Logs = append(job.Logs, fmt.Sprintf("Duplicate failure detected for test: %s", failure.Test))
	return nil
}

// submitBug forwards a NEW bug to the gateway for the job's provider and
// records the outcome. Gateway faults mark the bug SUBMISSION_FAILED;
// they never fail the job.
func (c *Coordinator) submitBug(ctx context.Context, job *bugstore.Job, bug *bugstore.Bug) {
	gw, err := c.deps.Gateways.Gateway(job.Provider)
	if err != nil {
		if uerr := bugstore.UpdateBugStatus(ctx, c.deps.DB, bug.ID, bugstore.BugStatusSubmissionFailed, nil); uerr != nil {
			c.log.Error("record submission failure", zap.String("bug", bug.ID), zap.Error(uerr))
		}
		job.Logs = append(job.Logs, fmt.Sprintf("Bug submission failed for test: %s (%s)", bug.TestName, err))
		return
	}

	outcome := gw.Submit(ctx, *bug)
	switch outcome.Status {
	case submit.StatusSubmitted:
		externalID := outcome.ExternalID
		if err := bugstore.UpdateBugStatus(ctx, c.deps.DB, bug.ID, bugstore.BugStatusSubmitted, &externalID); err != nil {
			c.log.Error("record submission", zap.String("bug", bug.ID), zap.Error(err))
			return
		}
		job.Logs = append(job.Logs, fmt.Sprintf("Bug submitted for test: %s (external id %s)", bug.TestName, externalID))
	case submit.StatusSkipped:
		job.Logs = append(job.Logs, fmt.Sprintf("Bug submission skipped for test: %s (%s)", bug.TestName, outcome.Reason))
	case submit.StatusFailed:
		if err := bugstore.UpdateBugStatus(ctx, c.deps.DB, bug.ID, bugstore.BugStatusSubmissionFailed, nil); err != nil {
			c.log.Error("record submission failure", zap.String("bug", bug.ID), zap.Error(err))
		}
		job.Logs = append(job.Logs, fmt.Sprintf("Bug submission failed for test: %s (%s)", bug.TestName, outcome.Reason))
	}
}

// storeScreenshot persists a failure screenshot when an artifact store is
// configured. Best effort only.
func (c *Coordinator) storeScreenshot(ctx context.Context, job *bugstore.Job, failure runner.Failure) string {
	if c.deps.Artifacts == nil || len(failure.Screenshot) == 0 {
		return ""
	}

	key := artifact.ScreenshotKey(job.ID, failure.Test, time.Now())
	path, err := c.deps.Artifacts.Put(ctx, key, failure.Screenshot, "image/png")
	if err != nil {
		c.log.Warn("store failure screenshot",
			zap.String("job", job.ID),
			zap.String("test", failure.Test),
			zap.Error(err))
		return ""
	}
	return path
}

// fail moves a job to ERROR with the fault text in its log.
func (c *Coordinator) fail(ctx context.Context, job *bugstore.Job, reason string) {
	job.Status = bugstore.JobStatusError
	job.Logs = append(job.Logs, reason)

	if err := bugstore.UpdateJob(ctx, c.deps.DB, job.ID, job.Status, job.Logs); err != nil {
		c.log.Error("persist job error state", zap.String("job", job.ID), zap.Error(err))
	}
	c.publish(job, reason)
	c.log.Warn("job errored", zap.String("job", job.ID), zap.String("reason", reason))
}

// persist writes the job's current status and logs.
func (c *Coordinator) persist(ctx context.Context, job *bugstore.Job) error {
	return bugstore.UpdateJob(ctx, c.deps.DB, job.ID, job.Status, job.Logs)
}

// publish pushes the job's current state to realtime subscribers.
func (c *Coordinator) publish(job *bugstore.Job, message string) {
	if c.deps.Hub == nil {
		return
	}
	c.deps.Hub.Publish(notify.Event{
		JobID:   job.ID,
		Status:  job.Status,
		Logs:    job.Logs,
		Bugs:    job.Bugs,
		Message: message,
	})
}
