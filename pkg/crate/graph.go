package crate

import (
	"slices"

	"github.com/crateplan/crateplan/pkg/errors"
)

// Graph maps package IDs to crate configurations. It is the read-only input
// to feature resolution: callers may run many resolutions against the same
// Graph concurrently as long as nobody mutates it.
type Graph map[ID]*Crate

// Crate returns the configuration for id and whether it exists.
func (g Graph) Crate(id ID) (*Crate, bool) {
	c, ok := g[id]
	return c, ok
}

// IDs returns all package IDs in sorted order.
// Sorting makes iteration deterministic; Graph itself is an unordered map.
func (g Graph) IDs() []ID {
	ids := make([]ID, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Validate checks referential integrity: every dependency of every crate must
// point at a package present in the graph. Returns a DANGLING_REFERENCE error
// identifying the owner, the local dependency name and the missing target.
//
// Resolution performs the same check lazily on the edges it actually walks;
// Validate is for loaders that want to reject a broken graph up front.
func (g Graph) Validate() error {
	for _, id := range g.IDs() {
		c := g[id]
		for _, kind := range []Kind{KindNormal, KindBuild, KindDev} {
			for _, d := range c.Deps(kind) {
				if _, ok := g[d.Package]; !ok {
					return errors.New(errors.ErrCodeDanglingReference,
						"crate %s: %s dependency %q points at unknown package %s",
						id, kind, d.Name, d.Package)
				}
			}
		}
	}
	return nil
}
