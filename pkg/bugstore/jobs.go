package bugstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job.
//
// Transitions are monotonic: PENDING -> RUNNING -> {COMPLETED|FAILED|ERROR}.
// There is no transition out of a terminal state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusError     JobStatus = "ERROR"
)

// Terminal reports whether no further transition may occur from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusError:
		return true
	}
	return false
}

// Job is one end-to-end test-execution-and-analysis run.
type Job struct {
	ID                  string    `json:"id"`
	Status              JobStatus `json:"status"`
	TestURL             string    `json:"test_url"`
	Provider            string    `json:"provider,omitempty"`
	CycleOverview       string    `json:"cycle_overview,omitempty"`
	TestingInstructions string    `json:"testing_instructions,omitempty"`
	Logs                []string  `json:"logs"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Bugs produced by this job. Populated by GetJob.
	Bugs []Bug `json:"bugs,omitempty"`
}

// JobParams describes a new job to create.
type JobParams struct {
	TestURL             string
	Provider            string
	CycleOverview       string
	TestingInstructions string
}

// ErrJobNotFound is returned when a job id has no row.
var ErrJobNotFound = errors.New("job not found")

// timeLayout is fixed-width so stored timestamps sort lexicographically
// in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CreateJob inserts a new job in PENDING status and returns it.
func CreateJob(ctx context.Context, db *sql.DB, params JobParams) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	job := &Job{
		ID:                  uuid.New().String(),
		Status:              JobStatusPending,
		TestURL:             params.TestURL,
		Provider:            params.Provider,
		CycleOverview:       params.CycleOverview,
		TestingInstructions: params.TestingInstructions,
		Logs:                []string{"Job created"},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	logsJSON, err := json.Marshal(job.Logs)
	if err != nil {
		return nil, fmt.Errorf("marshal job logs: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO jobs
		 (job_id, status, test_url, provider, cycle_overview, testing_instructions,
		  logs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.TestURL, job.Provider,
		job.CycleOverview, job.TestingInstructions,
		string(logsJSON), job.CreatedAt.Format(timeLayout),
		job.UpdatedAt.Format(timeLayout))

	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	return job, nil
}

// GetJob retrieves a job by id, including its bugs.
func GetJob(ctx context.Context, db *sql.DB, jobID string) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var job Job
	var status, logsJSON, createdAt, updatedAt string

	err := db.QueryRowContext(ctx,
		`SELECT job_id, status, test_url, provider, cycle_overview,
		        testing_instructions, logs, created_at, updated_at
		 FROM jobs WHERE job_id = ?`,
		jobID).Scan(
		&job.ID, &status, &job.TestURL, &job.Provider, &job.CycleOverview,
		&job.TestingInstructions, &logsJSON, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	job.Status = JobStatus(status)
	if err := json.Unmarshal([]byte(logsJSON), &job.Logs); err != nil {
		return nil, fmt.Errorf("parse job logs: %w", err)
	}
	if job.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse job created_at: %w", err)
	}
	if job.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse job updated_at: %w", err)
	}

	bugs, err := ListJobBugs(ctx, db, jobID)
	if err != nil {
		return nil, err
	}
	job.Bugs = bugs

	return &job, nil
}

// UpdateJob persists a job's status and full log sequence.
//
// Only the single background unit driving the job may call this, so a plain
// UPDATE is race-free per job row.
func UpdateJob(ctx context.Context, db *sql.DB, jobID string, status JobStatus, logs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal job logs: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, logs = ?, updated_at = ? WHERE job_id = ?`,
		string(status), string(logsJSON),
		time.Now().UTC().Format(timeLayout), jobID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return nil
}

// ListJobs lists all jobs, most recent first, without their bugs.
func ListJobs(ctx context.Context, db *sql.DB) ([]Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := db.QueryContext(ctx,
		`SELECT job_id, status, test_url, provider, cycle_overview,
		        testing_instructions, logs, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var job Job
		var status, logsJSON, createdAt, updatedAt string

		err := rows.Scan(
			&job.ID, &status, &job.TestURL, &job.Provider, &job.CycleOverview,
			&job.TestingInstructions, &logsJSON, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		job.Status = JobStatus(status)
		if err := json.Unmarshal([]byte(logsJSON), &job.Logs); err != nil {
			return nil, fmt.Errorf("parse job logs: %w", err)
		}
		if job.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse job created_at: %w", err)
		}
		if job.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse job updated_at: %w", err)
		}

		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
