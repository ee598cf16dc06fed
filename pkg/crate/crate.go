// Package crate defines the data model for a lockfile-resolved crate
// dependency graph.
//
// A Graph maps opaque package IDs to crate configurations. Each crate declares
// a feature table (feature name -> ordered reference list) and one ordered
// dependency group per dependency kind. The graph is the immutable input to
// feature resolution; it is never mutated after loading.
package crate

import "strings"

// ID is an opaque unique identifier for one resolved package+version in the
// graph. IDs come from the lockfile loader; the engine never interprets them.
type ID string

// DefaultFeature is the implicit feature requested on a dependency edge unless
// the edge opts out via DefaultFeatures=false.
const DefaultFeature = "default"

// Kind identifies a dependency group on a crate.
type Kind string

const (
	// KindNormal holds regular dependencies compiled into the crate.
	KindNormal Kind = "normal"
	// KindBuild holds build-script dependencies, compiled for the host.
	KindBuild Kind = "build"
	// KindDev holds test/bench-only dependencies. Not resolved by default.
	KindDev Kind = "dev"
)

// DefaultKinds is the dependency-kind order used when resolution options do
// not override it. Groups are processed in full, in this order.
var DefaultKinds = []Kind{KindNormal, KindBuild}

// Crate is the configuration of one resolved package in the graph.
// The zero value is a crate with no features and no dependencies.
type Crate struct {
	// Name is the display name. It is not used for identity; two distinct
	// IDs may share a name (different versions of the same crate).
	Name string

	// Features maps a local feature name to its ordered reference list.
	// A reference is another local feature name, a bare dependency name
	// (activating an optional dependency), or "dep/feat" (requesting feat
	// on dep if and when dep is activated).
	Features map[string][]string

	// Dependencies, BuildDependencies and DevDependencies are the ordered
	// dependency groups, one per Kind. Order is declaration order and is
	// significant for resolution output.
	Dependencies      []Dependency
	BuildDependencies []Dependency
	DevDependencies   []Dependency
}

// Deps returns the dependency group for the given kind.
// Unknown kinds yield nil, which resolves as an empty group.
func (c *Crate) Deps(kind Kind) []Dependency {
	switch kind {
	case KindNormal:
		return c.Dependencies
	case KindBuild:
		return c.BuildDependencies
	case KindDev:
		return c.DevDependencies
	default:
		return nil
	}
}

// Dependency is one edge declaration: a local name bound to a target package.
// Loaders normalize the bare-ID shorthand into this full record, so resolution
// never branches on representation.
type Dependency struct {
	// Name is the local dependency name. Feature references use this name,
	// not the target crate's display name.
	Name string

	// Package is the target package ID. It must exist in the graph;
	// a missing target is a fatal configuration error at resolution time.
	Package ID

	// Optional marks a dependency that is only activated when its local
	// name appears in the owner's expanded feature set.
	Optional bool

	// DefaultFeatures controls whether "default" is requested on the
	// target. Loaders set it to true unless the manifest opts out.
	DefaultFeatures bool

	// Features lists extra feature names requested on the target,
	// independent of what the target's "default" expands to.
	Features []string
}

// SplitRef splits a transitive feature reference of the form "dep/feat" into
// its dependency and feature parts. ok is false for plain references.
func SplitRef(ref string) (dep, feat string, ok bool) {
	i := strings.IndexByte(ref, '/')
	if i < 0 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}
