// Package catalog holds the versioned registry of metric definitions. The
// catalog is loaded once at process start and treated as read-only for the
// lifetime of an evaluation run; both the extractor and the grading engine
// consume it by reference.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/halverson/dockeval/internal/domain/model"
)

//go:embed catalog.yaml
var defaultDocument []byte

// Scope controls which phase variants a metric family expands to.
type Scope string

const (
	// ScopePerPhase expands to Align/Appr/FA keys plus a _Total aggregate.
	ScopePerPhase Scope = "per-phase"
	// ScopeTotalOnly expands to a single _Total key.
	ScopeTotalOnly Scope = "total-only"
)

// Family is one catalog document entry before phase expansion.
type Family struct {
	Key         string `yaml:"key"`
	AltName     string `yaml:"alt_name,omitempty"`
	Unit        string `yaml:"unit,omitempty"`
	Description string `yaml:"description,omitempty"`
	Scope       Scope  `yaml:"scope"`
	Optional    bool   `yaml:"optional,omitempty"`
}

// Definition describes one concrete metric key after phase expansion.
// Definitions are immutable after load.
type Definition struct {
	Key         string
	Base        string
	Phase       model.Phase
	AltName     string
	Unit        string
	Description string
	Optional    bool
}

type document struct {
	Version  string   `yaml:"version"`
	Families []Family `yaml:"metrics"`
}

// Catalog is the expanded, ordered metric registry.
type Catalog struct {
	version  string
	keys     []string
	defs     map[string]Definition
	families []Family
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidDocument)
	}
	if len(doc.Families) == 0 {
		return nil, fmt.Errorf("%w: no metric families", ErrInvalidDocument)
	}

	c := &Catalog{
		version:  doc.Version,
		defs:     make(map[string]Definition),
		families: doc.Families,
	}

	for _, f := range doc.Families {
		if f.Key == "" {
			return nil, fmt.Errorf("%w: family with empty key", ErrInvalidDocument)
		}
		switch f.Scope {
		case ScopePerPhase:
			for _, p := range model.Phases() {
				c.add(f, p)
			}
			c.add(f, model.PhaseTotal)
		case ScopeTotalOnly:
			c.add(f, model.PhaseTotal)
		default:
			return nil, fmt.Errorf("%w: family %q has unknown scope %q",
				ErrInvalidDocument, f.Key, f.Scope)
		}
	}
	return c, nil
}

func (c *Catalog) add(f Family, p model.Phase) {
	key := Key(f.Key, p)
	if _, dup := c.defs[key]; dup {
		return
	}
	c.keys = append(c.keys, key)
	c.defs[key] = Definition{
		Key:         key,
		Base:        f.Key,
		Phase:       p,
		AltName:     f.AltName,
		Unit:        f.Unit,
		Description: f.Description,
		Optional:    f.Optional,
	}
}

// Load reads and parses a catalog document from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Parse(data)
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultDocument)
	if err != nil {
		// The embedded document is covered by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(err)
	}
	return c
}

// Key joins a metric family with a phase suffix, e.g. Duration+FA ->
// "Duration_FA".
func Key(base string, phase model.Phase) string {
	return base + "_" + string(phase)
}

// Version reports the catalog document version. Records created under
// different versions are not comparable without an explicit policy.
func (c *Catalog) Version() string { return c.version }

// Keys returns the expanded metric keys in document order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Families returns the unexpanded document entries in order.
func (c *Catalog) Families() []Family {
	return append([]Family(nil), c.families...)
}

// Resolve looks up one expanded metric definition.
func (c *Catalog) Resolve(key string) (Definition, error) {
	d, ok := c.defs[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownMetric, key)
	}
	return d, nil
}

// Len reports the number of expanded metric keys.
func (c *Catalog) Len() int { return len(c.keys) }
