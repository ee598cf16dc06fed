package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/manifest"
	"github.com/crateplan/crateplan/pkg/observability"
	"github.com/crateplan/crateplan/pkg/plan"
	"github.com/crateplan/crateplan/pkg/prefetch"
)

// planCommand creates the plan command.
func (c *CLI) planCommand() *cobra.Command {
	var (
		opts   resolveOpts
		output string
		ledger string
	)

	cmd := &cobra.Command{
		Use:   "plan <graph.json> <root-id>",
		Short: "Write a build plan with per-package descriptors",
		Long: `Resolve features and write a build plan.

The plan contains one descriptor per activated package (its identity and the
full set of features it must be compiled with) plus the ordered activation
edges. Descriptors are sorted by package ID so the file is diffable.

With --ledger, the source hash ledger is updated alongside the plan: checksums
from the lockfile are merged in, entries for packages outside the plan are
pruned, and packages still missing a hash are reported.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd.Context(), args[0], crate.ID(args[1]), &opts, output, ledger)
		},
	}

	registerResolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "plan.json", "plan output file")
	cmd.Flags().StringVar(&ledger, "ledger", "", "hash ledger file to update (requires --lockfile for new checksums)")

	return cmd
}

// runPlan resolves features, writes the plan file, and updates the ledger.
func (c *CLI) runPlan(ctx context.Context, graphPath string, root crate.ID, opts *resolveOpts, output, ledgerPath string) error {
	cch, err := newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cch.Close()

	g, sourceHash, err := loadGraph(ctx, cch, graphPath, opts.lockfile)
	if err != nil {
		return err
	}

	logger := loggerFromContext(ctx)
	engineOpts, err := opts.engineOptions(logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	result, cached, err := resolveCached(ctx, cch, sourceHash, g, root, opts.features, engineOpts)
	if err != nil {
		return err
	}

	p := plan.New(g, root, opts.features, result.Activations, result.Merged)
	data, err := p.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	observability.Resolve().OnPlanWritten(ctx, p.ID, len(p.Packages))
	prog.done(fmt.Sprintf("Planned %d packages", len(p.Packages)))

	printSuccess("Wrote plan %s", StyleHighlight.Render(p.ID))
	printFile(output)
	printStats(len(p.Packages), len(p.Edges), cached)

	if ledgerPath != "" {
		if err := c.updateLedger(ledgerPath, opts.lockfile, p); err != nil {
			return err
		}
	}
	return nil
}

// updateLedger merges lockfile checksums into the hash ledger, drops entries
// for packages the plan no longer uses, and saves the result. Packages in the
// plan that still have no hash are reported but do not fail the command.
func (c *CLI) updateLedger(path, lockfilePath string, p *plan.Plan) error {
	ledger, err := prefetch.Load(path)
	if err != nil {
		return err
	}

	if lockfilePath != "" {
		lock, err := manifest.LoadLockfile(lockfilePath)
		if err != nil {
			return err
		}
		ledger.Merge(lock.Checksums())
	}

	used := p.PackageIDs()
	dropped := ledger.Prune(used)
	if err := ledger.Save(); err != nil {
		return err
	}

	printInfo("Ledger %s: %d hashes (%d pruned)", path, ledger.Len(), dropped)
	for _, id := range ledger.Missing(used) {
		printWarning("no source hash for %s", id)
	}
	return nil
}
