// Package dedup decides whether a failure fingerprint was already reported.
package dedup

import (
	"context"
	"database/sql"

	"github.com/triagekit/triagekit/pkg/bugstore"
	"github.com/triagekit/triagekit/pkg/fingerprint"
)

// Detector checks fingerprints against all previously recorded bugs.
//
// Scope is global: duplicates are detected across the whole history, not
// just within one run. The check is read-only and may race with a
// concurrent insert; bugstore's unique index is the backstop.
type Detector struct {
	db *sql.DB
}

func New(db *sql.DB) *Detector {
	return &Detector{db: db}
}

// IsDuplicate reports whether fp already identifies a recorded bug.
func (d *Detector) IsDuplicate(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	return bugstore.HasFingerprint(ctx, d.db, fp.String())
}
