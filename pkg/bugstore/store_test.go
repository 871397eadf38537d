package bugstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "triagekit.db")

	db, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var version int
	err = db.QueryRowContext(ctx,
		`SELECT schema_version FROM schema_meta WHERE id = 1`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, Migrate(ctx, db))

	job, err := CreateJob(ctx, db, JobParams{
		TestURL:       "https://example.com",
		Provider:      "uTest",
		CycleOverview: "smoke cycle",
	})
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, []string{"Job created"}, job.Logs)

	t.Run("get returns stored fields", func(t *testing.T) {
		got, err := GetJob(ctx, db, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, "https://example.com", got.TestURL)
		assert.Equal(t, "uTest", got.Provider)
		assert.Equal(t, "smoke cycle", got.CycleOverview)
		assert.Empty(t, got.Bugs)
	})

	t.Run("update status and logs", func(t *testing.T) {
		logs := append(job.Logs, "Starting test execution")
		require.NoError(t, UpdateJob(ctx, db, job.ID, JobStatusRunning, logs))

		got, err := GetJob(ctx, db, job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobStatusRunning, got.Status)
		assert.Equal(t, logs, got.Logs)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
	})

	t.Run("unknown job id", func(t *testing.T) {
		_, err := GetJob(ctx, db, "no-such-job")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrJobNotFound))

		err = UpdateJob(ctx, db, "no-such-job", JobStatusError, nil)
		assert.True(t, errors.Is(err, ErrJobNotFound))
	})
}

func TestListJobs_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, Migrate(ctx, db))

	first, err := CreateJob(ctx, db, JobParams{TestURL: "https://a.example.com"})
	require.NoError(t, err)
	second, err := CreateJob(ctx, db, JobParams{TestURL: "https://b.example.com"})
	require.NoError(t, err)

	jobs, err := ListJobs(ctx, db)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusError.Terminal())
}
