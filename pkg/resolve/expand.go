package resolve

import "github.com/crateplan/crateplan/pkg/crate"

// expansion is the result of expanding one crate's requested features.
type expansion struct {
	// active is the feature closure in first-insertion order.
	active *FeatureSet
	// extras maps a local dependency name to the right-hand sides of every
	// "dep/feat" reference discovered during expansion, in discovery order.
	// The walker appends them to the child request when it takes the edge.
	extras map[string][]string
}

// Expand computes the feature closure for one crate: the full set of local
// feature names that are on, given the requested names.
//
// Every requested name ends up in the result, whether or not the crate's
// feature table defines it - undefined names stay as leaf markers, which is
// how optional dependencies become visible as activation markers. "default"
// receives no special treatment here; requesting it is edge policy and lives
// in the walker. Expansion never fails: cyclic feature definitions terminate
// because each name is expanded at most once per call.
func Expand(c *crate.Crate, requested []string) *FeatureSet {
	return expand(c, requested).active
}

// expand runs the worklist expansion and additionally collects "dep/feat"
// right-hand sides for the walker.
func expand(c *crate.Crate, requested []string) expansion {
	ex := expansion{
		active: NewFeatureSet(),
		extras: make(map[string][]string),
	}

	queue := make([]string, len(requested))
	copy(queue, requested)

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		if dep, feat, ok := crate.SplitRef(ref); ok {
			// Only the dependency name becomes an activation marker;
			// the feature is deferred until the edge is taken.
			ex.active.Add(dep)
			if !contains(ex.extras[dep], feat) {
				ex.extras[dep] = append(ex.extras[dep], feat)
			}
			continue
		}

		if !ex.active.Add(ref) {
			continue // already expanded
		}
		if refs, ok := c.Features[ref]; ok {
			queue = append(queue, refs...)
		}
	}

	return ex
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
