package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/render"
)

// graphCommand creates the graph rendering command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		opts     resolveOpts
		output   string
		format   string
		features bool
	)

	cmd := &cobra.Command{
		Use:   "graph <graph.json> <root-id>",
		Short: "Render the activation graph as DOT or SVG",
		Long: `Render the activated subgraph.

Only packages the resolution actually activates appear in the output; edges to
inactive optional dependencies are omitted. With --features each node is
labeled with its merged feature set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "svg" {
				return fmt.Errorf("unknown format: %q (available: dot, svg)", format)
			}
			return c.runGraph(cmd.Context(), args[0], crate.ID(args[1]), &opts, output, format, features)
		},
	}

	registerResolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot (default), svg")
	cmd.Flags().BoolVar(&features, "features-labels", false, "label nodes with their merged feature sets")

	return cmd
}

// runGraph resolves features and renders the activated subgraph.
func (c *CLI) runGraph(ctx context.Context, graphPath string, root crate.ID, opts *resolveOpts, output, format string, features bool) error {
	cch, err := newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cch.Close()

	g, sourceHash, err := loadGraph(ctx, cch, graphPath, opts.lockfile)
	if err != nil {
		return err
	}

	engineOpts, err := opts.engineOptions(loggerFromContext(ctx))
	if err != nil {
		return err
	}

	result, cached, err := resolveCached(ctx, cch, sourceHash, g, root, opts.features, engineOpts)
	if err != nil {
		return err
	}

	dot := render.ToDOT(g, result.Merged, render.Options{Features: features})
	out := []byte(dot)
	if format == "svg" {
		out, err = render.RenderSVG(dot)
		if err != nil {
			return err
		}
	}

	if output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Rendered %s graph", format)
	printFile(output)
	printStats(len(result.Merged), len(result.Activations), cached)
	return nil
}
