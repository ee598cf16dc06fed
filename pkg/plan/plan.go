// Package plan turns feature-resolution output into build descriptors.
//
// A Plan is the downstream artifact of one resolution: per package, the single
// merged feature set its artifact is compiled with, plus the ordered edge
// records needed to reconstruct which dependency edges require which target.
// Plans serialize to JSON for file output and are persisted by a Store in
// serve mode.
package plan

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/resolve"
)

// Descriptor is the build configuration for one package: the union of every
// feature set the package was activated with anywhere in the graph.
type Descriptor struct {
	Package  crate.ID `json:"package" bson:"package"`
	Name     string   `json:"name,omitempty" bson:"name,omitempty"`
	Features []string `json:"features" bson:"features"`
}

// Plan is a complete build plan derived from one resolution call.
type Plan struct {
	ID        string           `json:"id" bson:"_id"`
	Root      crate.ID         `json:"root" bson:"root"`
	Requested []string         `json:"requested" bson:"requested"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
	Packages  []Descriptor     `json:"packages" bson:"packages"`
	Edges     []resolve.Record `json:"edges" bson:"edges"`
}

// New builds a plan from the engine's two outputs. Descriptors are sorted by
// package ID for deterministic output; edges keep traversal order.
func New(g crate.Graph, root crate.ID, requested []string, list resolve.ActivationList, merged resolve.MergedMap) *Plan {
	packages := make([]Descriptor, 0, len(merged))
	for id, features := range merged {
		d := Descriptor{Package: id, Features: features}
		if c, ok := g.Crate(id); ok {
			d.Name = c.Name
		}
		packages = append(packages, d)
	}
	slices.SortFunc(packages, func(a, b Descriptor) int {
		if a.Package < b.Package {
			return -1
		}
		if a.Package > b.Package {
			return 1
		}
		return 0
	})

	return &Plan{
		ID:        uuid.NewString(),
		Root:      root,
		Requested: slices.Clone(requested),
		CreatedAt: time.Now().UTC(),
		Packages:  packages,
		Edges:     list,
	}
}

// Descriptor returns the build descriptor for id, if present.
func (p *Plan) Descriptor(id crate.ID) (Descriptor, bool) {
	for _, d := range p.Packages {
		if d.Package == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// PackageIDs returns the IDs of all packages in the plan, in descriptor order.
func (p *Plan) PackageIDs() []crate.ID {
	ids := make([]crate.ID, len(p.Packages))
	for i, d := range p.Packages {
		ids[i] = d.Package
	}
	return ids
}

// Encode serializes the plan to indented JSON.
func (p *Plan) Encode() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Decode parses a JSON-encoded plan.
func Decode(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
