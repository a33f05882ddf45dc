package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/oukeidos/fictra/internal/cleanup"
	"github.com/oukeidos/fictra/internal/credentials"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/rpc"
	"github.com/oukeidos/fictra/internal/store"
	"github.com/oukeidos/fictra/internal/version"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC on stdin/stdout for the desktop host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root)
		},
	}
	cmd.Example = `  echo '{"jsonrpc":"2.0","id":1,"method":"health.check"}' | fictra serve`
	return cmd
}

// runServe blocks until stdin closes or the process is interrupted. Keys
// found in the environment are preloaded; the host may replace them with
// config.set_keys.
func runServe(cmd *cobra.Command, root *rootOptions) error {
	cfg, err := root.setup()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	cleanup.Register("store", st.Close)

	keys := credentials.NewStore()
	if stored := keys.Set(envKeys()); len(stored) > 0 {
		logger.Info("Provider keys preloaded", "providers", stored)
	}

	server := rpc.NewServer(cmd.OutOrStdout())
	app := rpc.NewApp(rpc.Deps{
		Store:     st,
		Keys:      keys,
		Factory:   newFactory(cfg),
		ExportDir: cfg.ExportDir,
		MaxRuns:   cfg.MaxConcurrentRuns,
	}, server)

	ctx, stop := signalContext(nil)
	defer stop()
	logger.Info("Sidecar ready", "version", version.Version, "db", st.Path(), "methods", len(server.Methods()))

	err = server.Serve(ctx, cmd.InOrStdin())
	app.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Sidecar stopped by signal")
		return nil
	}
	logger.Info("Sidecar stopped")
	return err
}
