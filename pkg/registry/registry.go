// pkg/registry/registry.go
package registry

import (
	"sort"

	"github.com/edulake/pipeline/pkg/dq"
	"github.com/edulake/pipeline/pkg/standardize"
)

// Entity declares one recognized input entity: its canonical name and the
// data-quality rules applied to it per stage. The rule sets are the single
// source of truth for critical columns and composite keys.
type Entity struct {
	Name        string
	SilverRules []dq.Rule // Applied during the silver transform
	GateRules   []dq.Rule // Applied by the quality gate over snapshots
}

// Dimension declares a gold dimension derived from a silver entity.
type Dimension struct {
	Name       string   // Output table name, e.g. dim_student
	Source     string   // Source entity name
	KeyColumn  string   // Surrogate key column, e.g. student_key
	NaturalKey string   // Natural key column on the source entity
	Columns    []string // Source columns carried into the dimension
}

// FactJoin declares one natural-key relationship between a fact's source
// rows and a dimension. Optional joins keep unresolved rows with a nil
// surrogate key; required joins drop them.
type FactJoin struct {
	Dimension  string // Dimension name
	NaturalKey string // Join column present on the fact source
	Optional   bool   // Left-join semantics when true
}

// Fact declares a gold fact table built from a transactional entity.
type Fact struct {
	Name      string   // Output table name
	Source    string   // Source entity name
	KeyColumn string   // Fact surrogate key column
	Joins     []FactJoin
	Measures  []string // Source columns carried alongside the keys
}

// Registry is the static mapping from raw input labels to entities plus
// the declared rule sets and star-schema layout. It is immutable after
// construction.
type Registry struct {
	entities   map[string]Entity
	aliases    map[string]string
	gateRules  map[string][]dq.Rule // Extra gate rule sets for non-entity datasets (facts)
	dimensions []Dimension
	facts      []Fact
}

// New builds a registry from explicit declarations. Every entity name is
// registered as its own alias; extra aliases map additional normalized
// labels onto canonical names.
func New(entities []Entity, aliases map[string]string, dimensions []Dimension, facts []Fact) *Registry {
	r := &Registry{
		entities:   make(map[string]Entity, len(entities)),
		aliases:    make(map[string]string, len(entities)+len(aliases)),
		gateRules:  make(map[string][]dq.Rule),
		dimensions: dimensions,
		facts:      facts,
	}
	for _, e := range entities {
		r.entities[e.Name] = e
		r.aliases[standardize.NormalizeLabel(e.Name)] = e.Name
	}
	for label, name := range aliases {
		r.aliases[standardize.NormalizeLabel(label)] = name
	}
	return r
}

// WithGateRules declares a gate rule set for a dataset that is not an
// input entity (a materialized fact) and returns the modified registry.
func (r *Registry) WithGateRules(dataset string, rules []dq.Rule) *Registry {
	r.gateRules[dataset] = rules
	return r
}

// Resolve maps a raw label onto a canonical entity name. Lookup is
// case-insensitive and whitespace-normalized. The second return is false
// for unmapped labels; callers skip those with a warning.
func (r *Registry) Resolve(label string) (string, bool) {
	name, ok := r.aliases[standardize.NormalizeLabel(label)]
	return name, ok
}

// Entity returns the declaration for a canonical entity name.
func (r *Registry) Entity(name string) (Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entities returns all declared entities sorted by name.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GateRules returns the gate rule set for a dataset: the entity's declared
// gate rules, or the extra rule set registered for fact datasets.
func (r *Registry) GateRules(dataset string) []dq.Rule {
	if e, ok := r.entities[dataset]; ok {
		return e.GateRules
	}
	return r.gateRules[dataset]
}

// GateDatasets returns every dataset the quality gate inspects: all
// entities plus the datasets registered through WithGateRules, sorted.
func (r *Registry) GateDatasets() []string {
	out := make([]string, 0, len(r.entities)+len(r.gateRules))
	for name := range r.entities {
		out = append(out, name)
	}
	for name := range r.gateRules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dimensions returns the declared dimensions in declaration order.
func (r *Registry) Dimensions() []Dimension {
	return r.dimensions
}

// Facts returns the declared facts in declaration order.
func (r *Registry) Facts() []Fact {
	return r.facts
}
