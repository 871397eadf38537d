package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Deterministic(t *testing.T) {
	a := Compute("Page Load", "HTTP 500", "goto: net::ERR_FAILED")
	b := Compute("Page Load", "HTTP 500", "goto: net::ERR_FAILED")
	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
}

func TestCompute_WhitespaceInvariant(t *testing.T) {
	tests := []struct {
		name  string
		left  [3]string
		right [3]string
	}{
		{
			name:  "trailing spaces",
			left:  [3]string{"Title Check", "title empty", "trace line"},
			right: [3]string{"Title Check ", "title empty  ", "trace line "},
		},
		{
			name:  "line wrapping",
			left:  [3]string{"Page Load", "timeout after 10s", "at goto\nat run"},
			right: [3]string{"Page Load", "timeout after 10s", "at goto at run"},
		},
		{
			name:  "tabs vs spaces",
			left:  [3]string{"Elements", "no body", "\tframe 1\n\tframe 2"},
			right: [3]string{"Elements", "no body", " frame 1\n frame 2"},
		},
		{
			name:  "interior whitespace collapsed",
			left:  [3]string{"Console", "ReferenceError:  x is not defined", ""},
			right: [3]string{"Console", "ReferenceError: x is not defined", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Compute(tt.left[0], tt.left[1], tt.left[2])
			b := Compute(tt.right[0], tt.right[1], tt.right[2])
			assert.Equal(t, a, b)
		})
	}
}

func TestCompute_DistinctFailuresDiffer(t *testing.T) {
	base := Compute("Page Load", "HTTP 500", "")

	assert.NotEqual(t, base, Compute("Page Load", "HTTP 404", ""))
	assert.NotEqual(t, base, Compute("Title Check", "HTTP 500", ""))
	assert.NotEqual(t, base, Compute("Page Load", "HTTP 500", "stack"))
}

func TestCompute_FieldBoundaries(t *testing.T) {
	// The separator must keep field contents from bleeding into each other.
	a := Compute("ab", "c", "")
	b := Compute("a", "bc", "")
	assert.NotEqual(t, a, b)
}

func TestShort(t *testing.T) {
	fp := Compute("t", "e", "tb")
	require.Len(t, string(fp), 64)
	assert.Len(t, fp.Short(), 12)
	assert.Equal(t, string(fp)[:12], fp.Short())

	assert.Equal(t, "abc", Fingerprint("abc").Short())
}
