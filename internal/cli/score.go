package cli

import (
	stderrors "errors"
	"fmt"

	"recroai/internal/common"
	"recroai/internal/errors"
	"recroai/internal/jobs"
	"recroai/internal/profile"
	"recroai/internal/types"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	promptYes = "Yes, rescore everything"
	promptNo  = "No"
)

var errAborted = stderrors.New("aborted by user")

var scoreCmd = &cobra.Command{
	Use:   "score [job-file] [candidates-file]",
	Short: "Score candidates for a job",
	Long: `Score the candidates of a JSON file against the rubric of a job
definition file. Candidates are stored and scored in one run; the run
report lists every candidate in file order.

Candidates already scored against the current rubric version are skipped
unless --force is given. --force asks for confirmation unless --yes is set.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: formatPreRun(&scoreConfig.CommandConfig),
	RunE:    runScore,
}

var scoreConfig struct {
	common.CommandConfig
	Force bool
	Yes   bool
	IDs   []string
}

func init() {
	addOutputFlags(scoreCmd, &scoreConfig.CommandConfig)
	scoreCmd.Flags().BoolVarP(&scoreConfig.Force, "force", "f", false, "Rescore candidates even when their record is current")
	scoreCmd.Flags().BoolVarP(&scoreConfig.Yes, "yes", "y", false, "Do not ask for confirmation")
	scoreCmd.Flags().StringSliceVar(&scoreConfig.IDs, "ids", nil, "Score only these candidate ids")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)
	scoreConfig.Stdout = cmd.OutOrStdout()

	if scoreConfig.Force && !scoreConfig.Yes {
		if err := confirmForce(); err != nil {
			return err
		}
	}

	contents, err := common.NewFileProcessor(logger).ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}
	def, err := jobs.ParseDefinition(args[0], contents[0])
	if err != nil {
		return err
	}
	candidates, err := profile.DecodeCandidates(contents[1])
	if err != nil {
		return err
	}

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.close()

	job, err := e.jobs.Put(def)
	if err != nil {
		return err
	}
	for i := range candidates {
		candidates[i].JobID = job.ID
	}
	if err := e.scoring.SubmitCandidates(ctx, job.ID, candidates); err != nil {
		return err
	}

	ids := scoreConfig.IDs
	if ids == nil {
		ids = make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
	}

	logger.Info("Starting scoring run",
		"job_id", job.ID,
		"rubric_version", job.Rubric.Version,
		"candidates", len(ids),
		"force", scoreConfig.Force,
		"output_format", scoreConfig.OutputFormat)

	report, runErr := e.scoring.RunScoring(ctx, job.ID, ids, scoreConfig.Force)
	if report.RunID == "" {
		return runErr
	}

	if err := common.NewOutputHandler(logger).HandleOutput(report, scoreConfig.CommandConfig); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if report.Status == types.RunPartiallyCompleted {
		logger.Warn("Scoring run completed with failures", "run_id", report.RunID, "failed", len(report.Failed))
		return errors.NewDelegateError(errors.ErrCodeDelegateFailed,
			fmt.Sprintf("%d of %d candidates could not be scored", len(report.Failed), len(ids)), nil)
	}
	logger.Info("Scoring run completed", "run_id", report.RunID, "status", report.Status)
	return nil
}

func confirmForce() error {
	prompt := promptui.Select{
		Label: "Rescore candidates whose records are already current?",
		Items: []string{promptYes, promptNo},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if choice != promptYes {
		return errAborted
	}
	return nil
}
