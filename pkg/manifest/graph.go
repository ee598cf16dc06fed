// Package manifest loads crate graphs from lockfile-derived inputs.
//
// Two input shapes are supported: the JSON interchange format produced by
// `cargo metadata` post-processing (the canonical graph source, also used by
// the HTTP API and the cache), and Cargo.lock files used to verify package
// identities and to seed the source-hash ledger. The loader normalizes the
// bare-ID dependency shorthand into full records, so the resolution engine
// never branches on representation.
//
// Version resolution never happens here: the lockfile already fixes package
// identities, and a graph that references an unknown package is rejected.
package manifest

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

// wireGraph is the JSON interchange format for a crate graph.
type wireGraph struct {
	Crates map[string]wireCrate `json:"crates"`
}

type wireCrate struct {
	Name              string                     `json:"name,omitempty"`
	Features          map[string][]string        `json:"features,omitempty"`
	Dependencies      map[string]json.RawMessage `json:"dependencies,omitempty"`
	BuildDependencies map[string]json.RawMessage `json:"build_dependencies,omitempty"`
	DevDependencies   map[string]json.RawMessage `json:"dev_dependencies,omitempty"`
}

// wireDep is the full-record form of a dependency. The shorthand form is a
// bare JSON string holding the target package ID.
type wireDep struct {
	Package         crate.ID `json:"package"`
	Optional        bool     `json:"optional,omitempty"`
	DefaultFeatures *bool    `json:"default_features,omitempty"`
	Features        []string `json:"features,omitempty"`
}

// LoadGraph reads and parses a graph JSON file.
func LoadGraph(path string) (crate.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "graph file %s", path)
		}
		return nil, err
	}
	g, err := ParseGraph(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "parse %s", path)
	}
	return g, nil
}

// ParseGraph decodes the JSON interchange format into a crate.Graph and
// validates referential integrity. JSON objects are unordered, so each
// dependency group is normalized to name order; that fixed order is the
// declaration order the resolution engine sees.
func ParseGraph(data []byte) (crate.Graph, error) {
	g, err := DecodeGraph(data)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// parseDeps normalizes one dependency group: shorthand strings become full
// records with defaults (non-optional, default features on, no extras).
func parseDeps(raw map[string]json.RawMessage) ([]crate.Dependency, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]crate.Dependency, 0, len(names))
	for _, name := range names {
		msg := raw[name]

		var id crate.ID
		if err := json.Unmarshal(msg, &id); err == nil {
			deps = append(deps, crate.Dependency{
				Name:            name,
				Package:         id,
				DefaultFeatures: true,
			})
			continue
		}

		var wd wireDep
		if err := json.Unmarshal(msg, &wd); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "dependency %q", name)
		}
		if wd.Package == "" {
			return nil, errors.New(errors.ErrCodeInvalidGraph, "dependency %q has no package", name)
		}
		dep := crate.Dependency{
			Name:            name,
			Package:         wd.Package,
			Optional:        wd.Optional,
			DefaultFeatures: true,
			Features:        wd.Features,
		}
		if wd.DefaultFeatures != nil {
			dep.DefaultFeatures = *wd.DefaultFeatures
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// DecodeGraph decodes the JSON interchange format without the
// referential-integrity check. It exists for re-reading graphs this code
// wrote itself (EncodeGraph output in the cache, already validated once);
// external input goes through ParseGraph.
func DecodeGraph(data []byte) (crate.Graph, error) {
	var wire wireGraph
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode graph")
	}

	g := make(crate.Graph, len(wire.Crates))
	for id, wc := range wire.Crates {
		c := &crate.Crate{
			Name:     wc.Name,
			Features: wc.Features,
		}
		if c.Features == nil {
			c.Features = map[string][]string{}
		}
		var err error
		if c.Dependencies, err = parseDeps(wc.Dependencies); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "crate %s", id)
		}
		if c.BuildDependencies, err = parseDeps(wc.BuildDependencies); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "crate %s", id)
		}
		if c.DevDependencies, err = parseDeps(wc.DevDependencies); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "crate %s", id)
		}
		g[crate.ID(id)] = c
	}
	return g, nil
}

// EncodeGraph serializes a graph to the JSON interchange format.
// Dependencies are written in full-record form; output is deterministic
// (encoding/json sorts map keys).
func EncodeGraph(g crate.Graph) ([]byte, error) {
	wire := wireGraph{Crates: make(map[string]wireCrate, len(g))}
	for id, c := range g {
		wc := wireCrate{
			Name:              c.Name,
			Features:          c.Features,
			Dependencies:      encodeDeps(c.Dependencies),
			BuildDependencies: encodeDeps(c.BuildDependencies),
			DevDependencies:   encodeDeps(c.DevDependencies),
		}
		wire.Crates[string(id)] = wc
	}
	return json.MarshalIndent(wire, "", "  ")
}

func encodeDeps(deps []crate.Dependency) map[string]json.RawMessage {
	if len(deps) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(deps))
	for _, d := range deps {
		df := d.DefaultFeatures
		msg, err := json.Marshal(wireDep{
			Package:         d.Package,
			Optional:        d.Optional,
			DefaultFeatures: &df,
			Features:        d.Features,
		})
		if err != nil {
			continue // wireDep marshal cannot fail
		}
		out[d.Name] = msg
	}
	return out
}
