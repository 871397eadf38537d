package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshotKey(t *testing.T) {
	taken := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	key := ScreenshotKey("job-1", "Basic Elements Check", taken)
	assert.Equal(t, "jobs/job-1/basic-elements-check-20260314T092653.png", key)

	key = ScreenshotKey("job-1", "  Page Load!! ", taken)
	assert.Equal(t, "jobs/job-1/page-load-20260314T092653.png", key)
}

func TestFileStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	data := []byte{0x89, 'P', 'N', 'G'}
	path, err := store.Put(context.Background(), "jobs/j1/shot.png", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jobs", "j1", "shot.png"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.png", []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the store root")
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestS3Config_Validate(t *testing.T) {
	err := (&S3Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")

	err = (&S3Config{Bucket: "b", AccessKeyID: "only-id"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provided together")

	assert.NoError(t, (&S3Config{Bucket: "b"}).Validate())
}
