// Package render exports activation graphs for inspection.
//
// The activation list is a pre-order traversal of the dependency tree, so the
// parent of each record is recoverable from the walk itself; rendering instead
// works edge-by-edge from the graph, labeling each node with its merged
// feature set. Output formats are Graphviz DOT text and SVG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/resolve"
)

// Options configures activation-graph rendering.
type Options struct {
	// Features includes each package's merged feature set in its label.
	Features bool
}

// ToDOT converts a resolution result to Graphviz DOT format. Nodes are the
// packages of the merged map; edges are the graph's activated dependency
// edges, deduplicated. The resulting DOT string can be rendered with
// [RenderSVG].
func ToDOT(g crate.Graph, merged resolve.MergedMap, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph activation {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	ids := sortedIDs(merged)
	for _, id := range ids {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, fmtLabel(g, id, merged[id], opts))
	}

	buf.WriteString("\n")
	seen := make(map[string]bool)
	for _, id := range ids {
		c, ok := g.Crate(id)
		if !ok {
			continue
		}
		for _, kind := range []crate.Kind{crate.KindNormal, crate.KindBuild, crate.KindDev} {
			for _, d := range c.Deps(kind) {
				if _, active := merged[d.Package]; !active {
					continue
				}
				key := string(id) + "->" + string(d.Package)
				if seen[key] {
					continue
				}
				seen[key] = true
				fmt.Fprintf(&buf, "  %q -> %q;\n", id, d.Package)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(g crate.Graph, id crate.ID, features []string, opts Options) string {
	label := string(id)
	if c, ok := g.Crate(id); ok && c.Name != "" {
		label = c.Name
	}
	if opts.Features && len(features) > 0 {
		label += "\n" + strings.Join(features, ", ")
	}
	return label
}

func sortedIDs(merged resolve.MergedMap) []crate.ID {
	ids := make([]crate.ID, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	// lexical order keeps the DOT output deterministic
	slices.Sort(ids)
	return ids
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
