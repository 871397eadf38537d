// Package fingerprint derives stable identities for test failures.
//
// A fingerprint is the deduplication key for the bug store: two failures
// with the same test name, error message, and traceback (modulo incidental
// whitespace) always produce the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint is a hex-encoded digest identifying a failure's root cause.
type Fingerprint string

// String returns the fingerprint as a plain string.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a truncated prefix suitable for log lines and summaries.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Compute derives a fingerprint from a failure's test name, error message,
// and raw traceback text.
//
// All whitespace is removed before hashing so that re-runs with different
// line wrapping, indentation, or trailing spaces still collide. Distinct
// failures colliding is a known, accepted false-duplicate risk: the digest
// space is large relative to expected failure volume.
func Compute(testName, errorMessage, traceback string) Fingerprint {
	raw := stripWhitespace(testName) + "|" + stripWhitespace(errorMessage) + "|" + stripWhitespace(traceback)
	sum := sha256.Sum256([]byte(raw))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// stripWhitespace removes every unicode whitespace rune, not just ASCII
// spaces, so tabs, newlines, and NBSP variants normalize identically.
func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
