package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateplan/crateplan/internal/api"
	"github.com/crateplan/crateplan/pkg/plan"
	"github.com/crateplan/crateplan/pkg/resolve"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		opts     resolveOpts
		mongoURI string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolution HTTP API",
		Long: `Run the HTTP API.

The API accepts graphs inline and resolves them on demand:

  POST /api/v1/resolve      resolve and return activations + merged features
  POST /api/v1/plan         resolve, store the plan, return it with its ID
  GET  /api/v1/plan/{id}    fetch a stored plan
  GET  /healthz             liveness check

Plans are stored in MongoDB when --mongo (or MONGO_URI) is set, otherwise in
process memory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, mongoURI, &opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr(), "listen address")
	cmd.Flags().StringVar(&mongoURI, "mongo", os.Getenv("MONGO_URI"), "MongoDB connection URI for plan storage")
	cmd.Flags().StringVar(&opts.kinds, "kinds", "", "dependency kinds to walk: normal,build,dev (default normal,build)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", resolve.DefaultMaxDepth, "maximum dependency depth")

	return cmd
}

// runServe starts the HTTP server and blocks until ctx is canceled.
func (c *CLI) runServe(ctx context.Context, addr, mongoURI string, opts *resolveOpts) error {
	logger := loggerFromContext(ctx)

	store, err := newStore(ctx, mongoURI)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	engineOpts, err := opts.engineOptions(logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(logger, store, engineOpts).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// defaultAddr returns the listen address from CRATEPLAN_ADDR, or ":8080".
func defaultAddr() string {
	if addr := os.Getenv("CRATEPLAN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

// newStore selects the plan store backend.
func newStore(ctx context.Context, mongoURI string) (plan.Store, error) {
	logger := loggerFromContext(ctx)
	if mongoURI == "" {
		logger.Debug("Using in-memory plan store")
		return plan.NewMemoryStore(), nil
	}
	logger.Debugf("Connecting to MongoDB at %s", mongoURI)
	return plan.NewMongoStore(ctx, mongoURI)
}
