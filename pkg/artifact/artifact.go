// Package artifact stores run artifacts such as failure screenshots.
//
// Stores are keyed by job and test so artifacts from the same run group
// together. The local filesystem store is the default; an S3-compatible
// store is available for shared deployments.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store persists one artifact and returns a stable reference to it (a
// filesystem path or an object URI). Implementations must be safe for
// concurrent use.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Sentinel errors for store faults callers may want to branch on.
var (
	ErrAccessDenied = errors.New("artifact store access denied")
	ErrUnavailable  = errors.New("artifact store unavailable")
)

// ScreenshotKey builds the canonical object key for a failure screenshot.
func ScreenshotKey(jobID, testName string, taken time.Time) string {
	return fmt.Sprintf("jobs/%s/%s-%s.png", jobID, slug(testName), taken.UTC().Format("20060102T150405"))
}

// slug lowercases a test name and collapses everything outside [a-z0-9]
// into single hyphens.
func slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
