package cli

import (
	"recroai/internal/common"
	"recroai/internal/notify"
	"recroai/internal/types"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [job-id]",
	Short: "Compose decision messages for a job's shortlist",
	Long: `Suggest an interview for the top N passing candidates of a job and a
rejection for everyone else, and render the message for each. Messages are
printed, not sent. Candidates without an email address are listed with
the reason their message could not be composed.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: formatPreRun(&notifyConfig.CommandConfig),
	RunE:    runNotify,
}

var notifyConfig struct {
	common.CommandConfig
	TopN    int
	Details types.InterviewDetails
}

func init() {
	addOutputFlags(notifyCmd, &notifyConfig.CommandConfig)
	notifyCmd.Flags().IntVar(&notifyConfig.TopN, "top", 0, "Number of candidates to invite (default from app.interviewTopN)")
	notifyCmd.Flags().StringVar(&notifyConfig.Details.Date, "date", "", "Interview date")
	notifyCmd.Flags().StringVar(&notifyConfig.Details.Time, "time", "", "Interview time")
	notifyCmd.Flags().StringVar(&notifyConfig.Details.Location, "location", "", "Interview location")
	notifyCmd.Flags().StringVar(&notifyConfig.Details.AdditionalInfo, "info", "", "Additional information for invited candidates")
}

func runNotify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)
	notifyConfig.Stdout = cmd.OutOrStdout()

	topN := notifyConfig.TopN
	if topN <= 0 {
		topN = cfg.App.InterviewTopN
	}

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.close()

	job, ranked, err := e.scoring.Ranked(ctx, args[0])
	if err != nil {
		return err
	}
	profiles, err := e.scoring.Profiles(ctx, args[0])
	if err != nil {
		return err
	}

	var details *types.InterviewDetails
	if notifyConfig.Details != (types.InterviewDetails{}) {
		details = &notifyConfig.Details
	}
	decisions := notify.DecisionsFromShortlist(job, ranked, topN, notify.ContactsOf(profiles), details)
	logger.Info("Composing decision messages", "job_id", job.ID, "candidates", len(decisions), "top_n", topN)

	return common.NewOutputHandler(logger).HandleOutput(e.composer.ComposeAll(decisions), notifyConfig.CommandConfig)
}
