// Package resolve implements feature resolution over a crate graph.
//
// Given a root package and a set of requested features, Resolve computes the
// ordered sequence of dependency-edge traversals together with the feature set
// active at each traversal, and a deduplicated per-package union of all
// feature sets encountered anywhere in the graph. The two outputs feed the
// build-descriptor writer: the merged map decides the single feature set each
// package is compiled with, the activation list reconstructs which edges
// require which target.
//
// Resolution is a pure function over the graph: no I/O, no shared state.
// Concurrent resolutions against the same Graph are safe as long as the graph
// itself is not mutated.
package resolve

import (
	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

// DefaultMaxDepth bounds recursion for externally supplied graphs.
// Real crate graphs are far shallower; hitting the bound means the input is
// pathological, not that the limit should be raised.
const DefaultMaxDepth = 256

// Options configures resolution behavior.
type Options struct {
	// Kinds is the dependency-kind order. Each group is processed in full
	// before the next. Defaults to crate.DefaultKinds (normal, then build).
	Kinds []crate.Kind

	// MaxDepth bounds the dependency recursion depth (default 256).
	MaxDepth int

	// Logger receives progress messages (optional).
	Logger func(string, ...any)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if len(opts.Kinds) == 0 {
		opts.Kinds = crate.DefaultKinds
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Record is one dependency-edge traversal: a package together with the
// feature set requested at that activation site.
type Record struct {
	Package  crate.ID `json:"package"`
	Features []string `json:"features"`
}

// ActivationList is the ordered sequence of edge traversals, starting with the
// root itself. It is deliberately not deduplicated: the same package recurs
// with different feature sets when reached via distinct dependency-kind edges
// or distinct optional-activation paths.
type ActivationList []Record

// MergedMap maps each package that appears in the activation list to the
// order-preserving deduplicated union of every feature set attached to it.
type MergedMap map[crate.ID][]string

// Resolve walks the dependency graph from root, computing the activation list
// and merged map for the given requested features.
//
// The only failure modes are structural: a dependency pointing at a package
// absent from the graph (DANGLING_REFERENCE) or recursion deeper than
// Options.MaxDepth (DEPTH_EXCEEDED). Unknown feature names, unreferenced
// optional dependencies and empty feature requests are all valid data.
func Resolve(g crate.Graph, root crate.ID, features []string, opts Options) (ActivationList, MergedMap, error) {
	w := &walker{
		graph:  g,
		opts:   opts.WithDefaults(),
		merged: make(MergedMap),
	}
	if _, ok := g[root]; !ok {
		return nil, nil, errors.New(errors.ErrCodePackageNotFound,
			"root package %s not in graph", root)
	}
	if err := w.walk(root, features, 0); err != nil {
		return nil, nil, err
	}
	return w.list, w.merged, nil
}

// walker accumulates resolution state for one Resolve call.
// The graph is borrowed and never mutated; list and merged are owned.
type walker struct {
	graph  crate.Graph
	opts   Options
	list   ActivationList
	merged MergedMap
}

// walk resolves one activation site: records the traversal, expands the
// feature closure, recurses into activated dependencies and finally folds the
// requested features into the merged map.
func (w *walker) walk(id crate.ID, requested []string, depth int) error {
	if depth > w.opts.MaxDepth {
		return errors.New(errors.ErrCodeDepthExceeded,
			"dependency chain at %s exceeds depth limit %d", id, w.opts.MaxDepth)
	}
	c := w.graph[id]

	w.list = append(w.list, Record{Package: id, Features: cloneFeatures(requested)})
	w.opts.Logger("resolve %s %v", id, requested)

	ex := expand(c, requested)

	for _, kind := range w.opts.Kinds {
		deps := c.Deps(kind)

		// Non-optional dependencies are walked before optional ones,
		// regardless of declaration order; each class keeps its own
		// declaration order.
		for _, optionalPass := range []bool{false, true} {
			for _, d := range deps {
				if d.Optional != optionalPass {
					continue
				}
				if d.Optional && !ex.active.Contains(d.Name) {
					continue
				}
				child, ok := w.graph[d.Package]
				if !ok || child == nil {
					return errors.New(errors.ErrCodeDanglingReference,
						"crate %s: %s dependency %q points at unknown package %s",
						id, kind, d.Name, d.Package)
				}
				req := childRequest(d, ex.extras[d.Name])
				if err := w.walk(d.Package, req, depth+1); err != nil {
					return err
				}
			}
		}
	}

	w.fold(id, requested)
	return nil
}

// childRequest builds the feature request for one activated edge:
// "default" when the edge has not opted out, then the explicitly declared
// features, then any "dep/feat" extras discovered during the owner's
// expansion, in discovery order.
func childRequest(d crate.Dependency, extras []string) []string {
	req := make([]string, 0, 1+len(d.Features)+len(extras))
	if d.DefaultFeatures {
		req = append(req, crate.DefaultFeature)
	}
	req = append(req, d.Features...)
	req = append(req, extras...)
	return req
}

// fold merges the requested features into the per-package union, preserving
// first-seen order across the whole resolution. Folding happens after the
// site's recursion completes so nested activations of the same package land
// in traversal order.
func (w *walker) fold(id crate.ID, requested []string) {
	merged, ok := w.merged[id]
	if !ok {
		merged = []string{}
	}
	for _, f := range requested {
		if !contains(merged, f) {
			merged = append(merged, f)
		}
	}
	w.merged[id] = merged
}

func cloneFeatures(features []string) []string {
	out := make([]string, len(features))
	copy(out, features)
	return out
}
