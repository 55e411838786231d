// Package catalog loads the list of library checks to register and run.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Entry describes a single check to register
type Entry struct {
	ID       string        `yaml:"id" toml:"id"`
	Name     string        `yaml:"name" toml:"name"`
	Category string        `yaml:"category" toml:"category"`
	Enabled  *bool         `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// Module is the Go module path of the library under check, if any
	Module string `yaml:"module,omitempty" toml:"module,omitempty"`
	// Version constrains the linked version of Module, see ParseConstraint
	Version string `yaml:"version,omitempty" toml:"version,omitempty"`
}

// IsEnabled reports whether the entry should be registered. Entries are enabled unless disabled explicitly.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Catalog is an ordered list of check entries
type Catalog struct {
	Checks []Entry `yaml:"checks" toml:"checks"`
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return parse("default.yaml", defaultCatalog)
}

// Load reads a catalog file. The format is chosen by extension: .yaml, .yml or .toml.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return parse(path, data)
}

// LoadGlob loads every file matching pattern in lexical order and merges them.
// An entry in a later file replaces an earlier entry with the same id.
func LoadGlob(pattern string) (*Catalog, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no catalog files match %q", pattern)
	}
	sort.Strings(matches)

	merged := &Catalog{}
	for _, path := range matches {
		c, err := Load(path)
		if err != nil {
			return nil, err
		}
		merged.Merge(c)
	}
	return merged, nil
}

// Merge appends other's entries, replacing entries whose id already exists in place
func (c *Catalog) Merge(other *Catalog) {
	index := make(map[string]int, len(c.Checks))
	for i, e := range c.Checks {
		index[e.ID] = i
	}
	for _, e := range other.Checks {
		if i, ok := index[e.ID]; ok {
			c.Checks[i] = e
			continue
		}
		index[e.ID] = len(c.Checks)
		c.Checks = append(c.Checks, e)
	}
}

// Enabled returns the entries that should be registered
func (c *Catalog) Enabled() []Entry {
	var out []Entry
	for _, e := range c.Checks {
		if e.IsEnabled() {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that every entry has an id, name and category, and that ids are unique
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, e := range c.Checks {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("check at index %d has no id", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("duplicate check id %q", e.ID))
		}
		seen[e.ID] = true
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("check %q has no name", e.ID))
		}
		if e.Category == "" {
			errs = append(errs, fmt.Errorf("check %q has no category", e.ID))
		}
		if e.Timeout < 0 {
			errs = append(errs, fmt.Errorf("check %q has a negative timeout", e.ID))
		}
		if e.Version != "" && e.Module == "" {
			errs = append(errs, fmt.Errorf("check %q has a version but no module", e.ID))
		}
		if _, err := ParseConstraint(e.Version); err != nil {
			errs = append(errs, fmt.Errorf("check %q: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}

func parse(name string, data []byte) (*Catalog, error) {
	c := &Catalog{}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", name, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q for %s", ext, name)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", name, err)
	}
	return c, nil
}
