package apps

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule is one vetting check applied to a bundle's file tree. Patterns use
// path.Match syntax against slash-separated relative paths; a pattern
// ending in "/" matches the whole subtree.
type Rule struct {
	ID       string   `yaml:"id"`
	Severity Severity `yaml:"severity"`
	Message  string   `yaml:"message"`
	// Forbid flags any matching path.
	Forbid []string `yaml:"forbid,omitempty"`
	// Require flags the bundle when no file matches.
	Require []string `yaml:"require,omitempty"`
	// Exclude silently drops matching paths from packaging.
	Exclude []string `yaml:"exclude,omitempty"`
}

type Ruleset struct {
	Rules []Rule `yaml:"rules"`
}

//go:embed ruleset.yaml
var defaultRulesetYAML []byte

// DefaultRuleset is the embedded baseline: deployment hygiene checks every
// bundle gets unless a custom ruleset file overrides them.
func DefaultRuleset() Ruleset {
	ruleset, err := ParseRuleset(defaultRulesetYAML)
	if err != nil {
		// the embedded document is covered by tests; an error here is a
		// build defect, not a runtime condition
		panic(fmt.Sprintf("apps: embedded ruleset invalid: %v", err))
	}
	return ruleset
}

func ParseRuleset(data []byte) (Ruleset, error) {
	ruleset := Ruleset{}
	if err := yaml.Unmarshal(data, &ruleset); err != nil {
		return Ruleset{}, fmt.Errorf("apps: parse ruleset: %w", err)
	}
	for index, rule := range ruleset.Rules {
		if strings.TrimSpace(rule.ID) == "" {
			return Ruleset{}, fmt.Errorf("apps: ruleset rule %d has no id", index)
		}
		switch rule.Severity {
		case SeverityError, SeverityWarning, "":
		default:
			return Ruleset{}, fmt.Errorf("apps: rule %s has unknown severity %q", rule.ID, rule.Severity)
		}
	}
	return ruleset, nil
}

// LoadRuleset reads a ruleset file, falling back to the default when the
// path is empty.
func LoadRuleset(path string) (Ruleset, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRuleset(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("apps: read ruleset %q: %w", path, err)
	}
	return ParseRuleset(data)
}

// Excluded reports whether a relative path is dropped from packaging.
func (r Ruleset) Excluded(relative string) bool {
	relative = filepath.ToSlash(relative)
	for _, rule := range r.Rules {
		for _, pattern := range rule.Exclude {
			if matchPath(pattern, relative) {
				return true
			}
		}
	}
	return false
}

// Finding is one rule violation discovered during vetting.
type Finding struct {
	Rule     string
	Severity Severity
	File     string
	Message  string
}

// Vet walks the bundle tree and applies every rule.
func (m *Manager) Vet(app App) ([]Finding, error) {
	var files []string
	err := filepath.Walk(app.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(app.Path, path)
		if err != nil {
			return err
		}
		if relative == "." {
			return nil
		}
		files = append(files, filepath.ToSlash(relative))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apps: walk %q: %w", app.Name, err)
	}

	var findings []Finding
	for _, rule := range m.ruleset.Rules {
		severity := rule.Severity
		if severity == "" {
			severity = SeverityWarning
		}
		for _, pattern := range rule.Forbid {
			for _, file := range files {
				if m.ruleset.Excluded(file) {
					continue
				}
				if matchPath(pattern, file) {
					findings = append(findings, Finding{
						Rule:     rule.ID,
						Severity: severity,
						File:     file,
						Message:  rule.Message,
					})
				}
			}
		}
		for _, pattern := range rule.Require {
			if !anyMatch(pattern, files) {
				findings = append(findings, Finding{
					Rule:     rule.ID,
					Severity: severity,
					File:     pattern,
					Message:  rule.Message,
				})
			}
		}
	}
	return findings, nil
}

func anyMatch(pattern string, files []string) bool {
	for _, file := range files {
		if matchPath(pattern, file) {
			return true
		}
	}
	return false
}

// matchPath matches one slash path against a pattern. A trailing slash
// means "this directory and everything under it"; otherwise path.Match
// applies per segment count.
func matchPath(pattern, relative string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/") {
		prefix := strings.TrimSuffix(pattern, "/")
		return relative == prefix || strings.HasPrefix(relative, prefix+"/")
	}
	if matched, err := filepath.Match(pattern, relative); err == nil && matched {
		return true
	}
	// also match against the basename so "*.pyc" covers nested files
	if matched, err := filepath.Match(pattern, filepath.Base(relative)); err == nil && matched {
		return true
	}
	return false
}
