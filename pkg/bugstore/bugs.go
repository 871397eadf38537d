package bugstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BugStatus is the lifecycle state of a bug report.
//
// A bug is immutable after creation except for the status transitions
// NEW -> SUBMITTED and NEW -> SUBMISSION_FAILED.
type BugStatus string

const (
	BugStatusNew              BugStatus = "NEW"
	BugStatusDuplicate        BugStatus = "DUPLICATE"
	BugStatusSubmitted        BugStatus = "SUBMITTED"
	BugStatusSubmissionFailed BugStatus = "SUBMISSION_FAILED"
)

// Severity classifies a bug's impact.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ValidSeverity reports whether s is one of the four known severities.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Bug is a persisted, enriched description of one distinct failure.
type Bug struct {
	ID             string    `json:"id"`
	JobID          string    `json:"job_id"`
	TestName       string    `json:"test_name"`
	Fingerprint    string    `json:"fingerprint"`
	Summary        string    `json:"summary"`
	Environment    string    `json:"environment,omitempty"`
	Preconditions  string    `json:"preconditions,omitempty"`
	Steps          string    `json:"steps,omitempty"`
	ActualResult   string    `json:"actual_result,omitempty"`
	ExpectedResult string    `json:"expected_result,omitempty"`
	Severity       Severity  `json:"severity"`
	Status         BugStatus `json:"status"`
	ExternalID     *string   `json:"external_id,omitempty"`
	ArtifactPath   *string   `json:"artifact_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrDuplicateFingerprint is returned by InsertBug when another non-duplicate
// bug already holds the fingerprint. The caller must re-classify its report
// as a late-detected duplicate.
var ErrDuplicateFingerprint = errors.New("fingerprint already reported")

// InsertBug persists a bug. The bug's ID and CreatedAt are assigned here.
//
// A unique-index conflict on the fingerprint is mapped to
// ErrDuplicateFingerprint rather than surfaced as a raw driver error.
func InsertBug(ctx context.Context, db *sql.DB, bug *Bug) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if bug == nil {
		return fmt.Errorf("bug is nil")
	}

	bug.ID = uuid.New().String()
	bug.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO bugs
		 (bug_id, job_id, test_name, fingerprint, summary, environment,
		  preconditions, steps, actual_result, expected_result, severity,
		  status, external_id, artifact_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bug.ID, bug.JobID, bug.TestName, bug.Fingerprint, bug.Summary,
		bug.Environment, bug.Preconditions, bug.Steps, bug.ActualResult,
		bug.ExpectedResult, string(bug.Severity), string(bug.Status),
		bug.ExternalID, bug.ArtifactPath,
		bug.CreatedAt.Format(timeLayout))

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, bug.Fingerprint)
		}
		return fmt.Errorf("insert bug: %w", err)
	}

	return nil
}

// isUniqueViolation detects a SQLite unique-index conflict.
//
// modernc.org/sqlite surfaces constraint failures with the standard
// "UNIQUE constraint failed" message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// HasFingerprint reports whether a non-duplicate bug already holds fp.
//
// Read-only; under concurrent jobs a false answer may be stale by the time
// the caller inserts, which is why InsertBug treats the unique index as the
// backstop.
func HasFingerprint(ctx context.Context, db *sql.DB, fp string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM bugs WHERE fingerprint = ? AND status != 'DUPLICATE' LIMIT 1`,
		fp).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}

	return true, nil
}

// UpdateBugStatus records the submission outcome for a bug.
func UpdateBugStatus(ctx context.Context, db *sql.DB, bugID string, status BugStatus, externalID *string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := db.ExecContext(ctx,
		`UPDATE bugs SET status = ?, external_id = ? WHERE bug_id = ?`,
		string(status), externalID, bugID)
	if err != nil {
		return fmt.Errorf("update bug status: %w", err)
	}

	return nil
}

// ListBugs lists all bugs across all jobs, most recent first.
func ListBugs(ctx context.Context, db *sql.DB) ([]Bug, error) {
	return queryBugs(ctx, db,
		`SELECT bug_id, job_id, test_name, fingerprint, summary, environment,
		        preconditions, steps, actual_result, expected_result, severity,
		        status, external_id, artifact_path, created_at
		 FROM bugs
		 ORDER BY created_at DESC`)
}

// ListJobBugs lists the bugs owned by one job in creation order.
func ListJobBugs(ctx context.Context, db *sql.DB, jobID string) ([]Bug, error) {
	return queryBugs(ctx, db,
		`SELECT bug_id, job_id, test_name, fingerprint, summary, environment,
		        preconditions, steps, actual_result, expected_result, severity,
		        status, external_id, artifact_path, created_at
		 FROM bugs
		 WHERE job_id = ?
		 ORDER BY created_at ASC`, jobID)
}

func queryBugs(ctx context.Context, db *sql.DB, query string, args ...any) ([]Bug, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bugs []Bug
	for rows.Next() {
		var b Bug
		var severity, status, createdAt string
		var externalID, artifactPath sql.NullString

		err := rows.Scan(
			&b.ID, &b.JobID, &b.TestName, &b.Fingerprint, &b.Summary,
			&b.Environment, &b.Preconditions, &b.Steps, &b.ActualResult,
			&b.ExpectedResult, &severity, &status, &externalID, &artifactPath,
			&createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}

		b.Severity = Severity(severity)
		b.Status = BugStatus(status)
		if externalID.Valid {
			b.ExternalID = &externalID.String
		}
		if artifactPath.Valid {
			b.ArtifactPath = &artifactPath.String
		}
		if b.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse bug created_at: %w", err)
		}

		bugs = append(bugs, b)
	}

	return bugs, rows.Err()
}
