package cli

import (
	"fmt"

	"recroai/internal/config"
	"recroai/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing job, candidate, scoring run, shortlist,
analytics and notification endpoints.

Available endpoints:
- PUT  /jobs/{jobID}: Define a job and its rubric
- POST /jobs/{jobID}/candidates: Submit candidates
- POST /jobs/{jobID}/runs: Start a scoring run (?async=true to not wait)
- GET  /runs/{runID}: Run status; DELETE cancels it
- GET  /jobs/{jobID}/shortlist and /jobs/{jobID}/analytics
- POST /jobs/{jobID}/notifications: Compose decision messages
- GET  /health and /stats

Use --port and --host to override the configured listen address.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	// Flags override the loaded configuration
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.close()
	e.watchJobs(ctx)

	deps := server.Dependencies{
		Scoring:       e.scoring,
		Jobs:          e.jobs,
		Composer:      e.composer,
		Delegate:      e.delegate,
		Observability: e.observability,
	}

	vaultClient, err := config.NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	if vaultClient != nil {
		deps.Vault = vaultClient
	}

	return server.NewServer(cfg, server.ConfigFrom(cfg, Version), deps, logger).Start(ctx)
}
