package cli

import (
	"recroai/internal/analytics"
	"recroai/internal/common"
	"recroai/internal/formatters"

	"github.com/spf13/cobra"
)

var shortlistCmd = &cobra.Command{
	Use:   "shortlist [job-id]",
	Short: "Show the ranked candidates of a job",
	Long: `Show the current score records of a job in rank order: highest total
first, disqualified candidates last, ties broken by candidate id. Records
scored against an older rubric version are counted but not ranked.

The job is looked up in the jobs directory and records are read from the
configured store.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: formatPreRun(&shortlistConfig.CommandConfig),
	RunE:    runShortlist,
}

var shortlistConfig struct {
	common.CommandConfig
	Limit int
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics [job-id]",
	Short: "Summarise the score records of a job",
	Long: `Summarise the current score records of a job: score distribution,
average, authenticity statistics, category averages and top candidates.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: formatPreRun(&analyticsConfig),
	RunE:    runAnalytics,
}

var analyticsConfig common.CommandConfig

func init() {
	addOutputFlags(shortlistCmd, &shortlistConfig.CommandConfig)
	shortlistCmd.Flags().IntVarP(&shortlistConfig.Limit, "limit", "n", 0, "Show only the first N candidates (0 for all)")
	addOutputFlags(analyticsCmd, &analyticsConfig)
}

func runShortlist(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := getLoggerFromContext(ctx)
	shortlistConfig.Stdout = cmd.OutOrStdout()

	e, err := newEngine(ctx, getConfigFromContext(ctx), logger)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.scoring.Results(ctx, args[0])
	if err != nil {
		return err
	}
	_, ranked, err := e.scoring.Ranked(ctx, args[0])
	if err != nil {
		return err
	}
	if shortlistConfig.Limit > 0 && shortlistConfig.Limit < len(ranked) {
		ranked = ranked[:shortlistConfig.Limit]
	}

	list := formatters.Shortlist{Job: res.Job, Candidates: ranked, Stale: len(res.Stale)}
	return common.NewOutputHandler(logger).HandleOutput(list, shortlistConfig.CommandConfig)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := getLoggerFromContext(ctx)
	analyticsConfig.Stdout = cmd.OutOrStdout()

	e, err := newEngine(ctx, getConfigFromContext(ctx), logger)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.scoring.Results(ctx, args[0])
	if err != nil {
		return err
	}
	return common.NewOutputHandler(logger).HandleOutput(analytics.Summarize(res.Current), analyticsConfig)
}
