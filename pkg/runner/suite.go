package runner

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CheckKind selects the probe a suite check performs.
type CheckKind string

const (
	// CheckNavigate loads the page and fails on navigation errors or
	// HTTP status >= 400.
	CheckNavigate CheckKind = "navigate"
	// CheckTitle fails when the document title is empty.
	CheckTitle CheckKind = "title"
	// CheckSelector fails when the given CSS selector matches nothing.
	CheckSelector CheckKind = "selector"
)

// Check is one probe within a suite.
type Check struct {
	Name     string    `yaml:"name"`
	Kind     CheckKind `yaml:"kind"`
	Selector string    `yaml:"selector,omitempty"`
}

// Viewport is the browser window size used for the suite.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Suite describes the checks one execution runs against the target URL.
type Suite struct {
	Viewport Viewport `yaml:"viewport"`
	Checks   []Check  `yaml:"checks"`
}

// DefaultSuite mirrors the baseline smoke checks: page load, title, and
// basic document structure.
func DefaultSuite() Suite {
	return Suite{
		Viewport: Viewport{Width: 1280, Height: 720},
		Checks: []Check{
			{Name: "Page Load", Kind: CheckNavigate},
			{Name: "Title Check", Kind: CheckTitle},
			{Name: "Basic Elements Check", Kind: CheckSelector, Selector: "body"},
		},
	}
}

// LoadSuite reads a suite manifest from a YAML file.
func LoadSuite(path string) (Suite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite manifest: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Suite{}, fmt.Errorf("parse suite manifest: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Suite{}, err
	}
	return s, nil
}

// Validate checks the suite for structural problems.
func (s *Suite) Validate() error {
	if len(s.Checks) == 0 {
		return fmt.Errorf("suite manifest has no checks")
	}
	for i, c := range s.Checks {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("check %d: name is required", i)
		}
		switch c.Kind {
		case CheckNavigate, CheckTitle:
		case CheckSelector:
			if strings.TrimSpace(c.Selector) == "" {
				return fmt.Errorf("check %q: selector is required", c.Name)
			}
		default:
			return fmt.Errorf("check %q: unknown kind %q", c.Name, c.Kind)
		}
	}
	if s.Viewport.Width <= 0 || s.Viewport.Height <= 0 {
		s.Viewport = Viewport{Width: 1280, Height: 720}
	}
	return nil
}
