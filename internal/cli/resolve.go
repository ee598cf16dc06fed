package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateplan/crateplan/pkg/cache"
	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/manifest"
	"github.com/crateplan/crateplan/pkg/observability"
	"github.com/crateplan/crateplan/pkg/resolve"
)

// resolveOpts holds the command-line flags shared by the resolution commands.
type resolveOpts struct {
	features []string // requested features for the root package
	lockfile string   // optional Cargo.lock to verify the graph against
	kinds    string   // dependency kinds to walk, comma-separated
	maxDepth int      // recursion depth limit
	noCache  bool     // bypass the result cache
	pick     bool     // interactive feature selection
}

// registerResolveFlags wires the shared resolution flags onto cmd.
func registerResolveFlags(cmd *cobra.Command, opts *resolveOpts) {
	cmd.Flags().StringSliceVarP(&opts.features, "features", "F", nil, "features to request on the root package")
	cmd.Flags().StringVar(&opts.lockfile, "lockfile", "", "Cargo.lock to verify the graph against")
	cmd.Flags().StringVar(&opts.kinds, "kinds", "", "dependency kinds to walk: normal,build,dev (default normal,build)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", resolve.DefaultMaxDepth, "maximum dependency depth")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable result caching")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "pick features interactively")
}

// engineOptions converts resolveOpts into resolve.Options.
func (o *resolveOpts) engineOptions(logger interface{ Debugf(string, ...any) }) (resolve.Options, error) {
	kinds, err := parseKinds(o.kinds)
	if err != nil {
		return resolve.Options{}, err
	}
	return resolve.Options{
		Kinds:    kinds,
		MaxDepth: o.maxDepth,
		Logger:   func(msg string, args ...any) { logger.Debugf(msg, args...) },
	}, nil
}

// parseKinds parses a comma-separated kind list. An empty string selects the
// engine defaults (normal, then build).
func parseKinds(s string) ([]crate.Kind, error) {
	if s == "" {
		return nil, nil
	}
	var kinds []crate.Kind
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "normal":
			kinds = append(kinds, crate.KindNormal)
		case "build":
			kinds = append(kinds, crate.KindBuild)
		case "dev":
			kinds = append(kinds, crate.KindDev)
		default:
			return nil, fmt.Errorf("unknown dependency kind: %q (available: normal, build, dev)", part)
		}
	}
	return kinds, nil
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		opts   resolveOpts
		output string
	)

	cmd := &cobra.Command{
		Use:   "resolve <graph.json> <root-id>",
		Short: "Compute the activation list and merged feature map",
		Long: `Compute which features are active for every package reachable from a root.

The graph file describes each package's feature table and dependency edges.
Resolution expands the requested features on the root, walks its dependencies
in declaration order (non-optional before optional within each kind), and
repeats for every activated package. The output is the ordered activation
list plus the merged per-package feature map.

Results are cached locally keyed by graph content and request, so repeated
runs over an unchanged graph are instant.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), args[0], crate.ID(args[1]), &opts, output)
		},
	}

	registerResolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result as JSON (stdout summary if empty)")

	return cmd
}

// runResolve loads the graph, resolves features, and reports the result.
func (c *CLI) runResolve(ctx context.Context, graphPath string, root crate.ID, opts *resolveOpts, output string) error {
	cch, err := newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cch.Close()

	g, sourceHash, err := loadGraph(ctx, cch, graphPath, opts.lockfile)
	if err != nil {
		return err
	}

	features := opts.features
	if opts.pick {
		features, err = pickFeatures(g, root, features)
		if err != nil {
			return err
		}
	}

	logger := loggerFromContext(ctx)
	engineOpts, err := opts.engineOptions(logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	result, cached, err := resolveCached(ctx, cch, sourceHash, g, root, features, engineOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d packages", len(result.Merged)))

	if output != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printSuccess("Resolved %s", StyleHighlight.Render(string(root)))
		printFile(output)
		printStats(len(result.Merged), len(result.Activations), cached)
		return nil
	}

	printSuccess("Resolved %s", StyleHighlight.Render(string(root)))
	printStats(len(result.Merged), len(result.Activations), cached)
	printNewline()
	for _, rec := range result.Activations {
		feats := strings.Join(rec.Features, ", ")
		if feats == "" {
			feats = StyleDim.Render("(no features)")
		}
		fmt.Println("  " + StyleValue.Render(string(rec.Package)) + " " + StyleDim.Render(feats))
	}
	printNewline()
	printNextStep("Write a build plan", fmt.Sprintf("crateplan plan %s %s", graphPath, root))
	return nil
}

// resolveResult is the cacheable resolution output.
type resolveResult struct {
	Activations resolve.ActivationList `json:"activations"`
	Merged      resolve.MergedMap      `json:"merged"`
}

// resolveCached runs the engine through the result cache. The cache key covers
// the graph content hash, the root, and the requested features; option changes
// bust the cache by being folded into the feature list key.
func resolveCached(ctx context.Context, cch cache.Cache, sourceHash string, g crate.Graph, root crate.ID, features []string, engineOpts resolve.Options) (*resolveResult, bool, error) {
	keyer := cache.NewDefaultKeyer()
	key := keyer.PlanKey(sourceHash, string(root), cacheRequest(features, engineOpts))

	if data, hit, err := cch.Get(ctx, key); err == nil && hit {
		var result resolveResult
		if err := json.Unmarshal(data, &result); err == nil {
			return &result, true, nil
		}
		// Corrupt entry, drop it and recompute.
		_ = cch.Delete(ctx, key)
	}

	observability.Resolve().OnResolveStart(ctx, string(root), features)
	start := time.Now()
	list, merged, err := resolve.Resolve(g, root, features, engineOpts)
	observability.Resolve().OnResolveComplete(ctx, string(root), len(list), time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	result := &resolveResult{Activations: list, Merged: merged}
	if data, err := json.Marshal(result); err == nil {
		_ = cch.Set(ctx, key, data, cache.DefaultTTL)
	}
	return result, false, nil
}

// cacheRequest widens the feature list with the non-default engine options so
// that a different kind order or depth limit never reuses a stale entry.
func cacheRequest(features []string, opts resolve.Options) []string {
	req := make([]string, 0, len(features)+2)
	req = append(req, features...)
	for _, k := range opts.Kinds {
		req = append(req, "kind="+string(k))
	}
	if opts.MaxDepth != 0 && opts.MaxDepth != resolve.DefaultMaxDepth {
		req = append(req, fmt.Sprintf("depth=%d", opts.MaxDepth))
	}
	return req
}

// loadGraph reads a graph file through the cache, optionally verifying every
// package against a lockfile. It returns the graph and the content hash of
// its source.
//
// Parsed graphs are cached under the source content hash in their normalized
// encoding, so a repeated load of an unchanged file skips the shorthand
// normalization and validation done on first parse.
func loadGraph(ctx context.Context, cch cache.Cache, graphPath, lockfilePath string) (crate.Graph, string, error) {
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", graphPath, err)
	}
	sourceHash := cache.Hash(data)
	key := cache.NewDefaultKeyer().GraphKey(sourceHash)

	g := cachedGraph(ctx, cch, key)
	if g == nil {
		g, err = manifest.ParseGraph(data)
		observability.Resolve().OnGraphLoad(ctx, graphPath, len(g), err)
		if err != nil {
			return nil, "", err
		}
		if normalized, err := manifest.EncodeGraph(g); err == nil {
			_ = cch.Set(ctx, key, normalized, cache.DefaultTTL)
		}
	}

	if lockfilePath != "" {
		lock, err := manifest.LoadLockfile(lockfilePath)
		if err != nil {
			return nil, "", err
		}
		if err := lock.VerifyGraph(g); err != nil {
			return nil, "", err
		}
	}
	return g, sourceHash, nil
}

// cachedGraph decodes a previously cached normalized graph, or returns nil on
// miss. Undecodable entries are dropped so the next load re-parses the file.
func cachedGraph(ctx context.Context, cch cache.Cache, key string) crate.Graph {
	data, hit, err := cch.Get(ctx, key)
	if err != nil || !hit {
		return nil
	}
	g, err := manifest.DecodeGraph(data)
	if err != nil {
		_ = cch.Delete(ctx, key)
		return nil
	}
	return g
}
