// Package config loads the run-scoped principal and rights sets. The sets
// are regex fragments in YAML (embedded defaults, overridable from a file),
// compiled once into immutable matchers that every detector and scorer call
// receives explicitly.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed safe_sets.yaml
var defaultSetsYAML []byte

// Mode selects how much remediation handling is applied after detection.
type Mode int

const (
	// ModeReport only populates Fix/Revert text on findings.
	ModeReport Mode = iota
	// ModeRemediate additionally runs the registered customization hook on
	// ESC1/ESC4 findings before scoring.
	ModeRemediate
)

// setsFile is the YAML shape of a sets file.
type setsFile struct {
	SafeOwners      []string `yaml:"safe_owners"`
	SafeUsers       []string `yaml:"safe_users"`
	UnsafeUsers     []string `yaml:"unsafe_users"`
	DangerousRights []string `yaml:"dangerous_rights"`
	SafeObjectTypes []string `yaml:"safe_object_types"`
}

// Config holds the compiled, immutable run configuration.
type Config struct {
	safeOwners      *regexp.Regexp
	safeUsers       *regexp.Regexp
	unsafeUsers     *regexp.Regexp
	dangerousRights *regexp.Regexp
	safeObjectTypes *regexp.Regexp

	Mode Mode
}

// Load builds a Config from the embedded defaults, or from path if non-empty.
// Every set must be non-empty and every fragment must compile; a violation is
// a fatal configuration error raised before any detector runs.
func Load(path string, mode Mode) (*Config, error) {
	data := defaultSetsYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sets file: %w", err)
		}
	}

	var f setsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sets file: %w", err)
	}

	cfg := &Config{Mode: mode}
	for _, s := range []struct {
		name      string
		fragments []string
		dst       **regexp.Regexp
	}{
		{"safe_owners", f.SafeOwners, &cfg.safeOwners},
		{"safe_users", f.SafeUsers, &cfg.safeUsers},
		{"unsafe_users", f.UnsafeUsers, &cfg.unsafeUsers},
		{"dangerous_rights", f.DangerousRights, &cfg.dangerousRights},
		{"safe_object_types", f.SafeObjectTypes, &cfg.safeObjectTypes},
	} {
		re, err := compileSet(s.name, s.fragments)
		if err != nil {
			return nil, err
		}
		*s.dst = re
	}
	return cfg, nil
}

// compileSet ORs the fragments of one set into a single case-insensitive
// matcher.
func compileSet(name string, fragments []string) (*regexp.Regexp, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("configured set %q is empty", name)
	}
	for i, frag := range fragments {
		if strings.TrimSpace(frag) == "" {
			return nil, fmt.Errorf("configured set %q has an empty fragment at index %d", name, i)
		}
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(fragments, "|") + ")")
	if err != nil {
		return nil, fmt.Errorf("configured set %q does not compile: %w", name, err)
	}
	return re, nil
}

// IsSafeOwner reports whether the SID belongs to the trusted owner set.
func (c *Config) IsSafeOwner(sid string) bool { return c.safeOwners.MatchString(sid) }

// IsSafeUser reports whether the SID belongs to the trusted user set.
func (c *Config) IsSafeUser(sid string) bool { return c.safeUsers.MatchString(sid) }

// IsUnsafeUser reports whether the SID matches a large/ambient principal.
func (c *Config) IsUnsafeUser(sid string) bool { return c.unsafeUsers.MatchString(sid) }

// IsDangerousRight reports whether the named right allows object takeover.
func (c *Config) IsDangerousRight(right string) bool { return c.dangerousRights.MatchString(right) }

// IsSafeObjectType reports whether the ACE scoping GUID is benign.
func (c *Config) IsSafeObjectType(guid string) bool {
	if guid == "" {
		return false
	}
	return c.safeObjectTypes.MatchString(guid)
}
