package cli

import (
	"context"

	"recroai/internal/common"
	"recroai/internal/jobs"
	"recroai/internal/types"

	"github.com/spf13/cobra"
)

var validateRubricCmd = &cobra.Command{
	Use:   "validate-rubric [job-file]",
	Short: "Validate a job's rubric and print its normalised form",
	Long: `Validate the rubric of a job definition file (YAML) without scoring
anything. Weighted categories that do not sum to 100 are rescaled and the
adjustment is reported. No AI credentials are needed.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: formatPreRun(&validateConfig),
	RunE:    runValidateRubric,
}

var validateConfig common.CommandConfig

func init() {
	addOutputFlags(validateRubricCmd, &validateConfig)
}

func runValidateRubric(cmd *cobra.Command, args []string) error {
	logger := getLoggerFromContext(cmd.Context())
	validateConfig.Stdout = cmd.OutOrStdout()

	createInput := func(paths []string, contents [][]byte) (jobs.Definition, error) {
		return jobs.ParseDefinition(paths[0], contents[0])
	}
	validate := func(_ context.Context, def jobs.Definition) (types.Job, error) {
		return def.Build()
	}
	logDetails := func(def jobs.Definition, cfg common.CommandConfig) {
		logger.Debug("Validating rubric", "job_id", def.ID, "categories", len(def.Rubric.Categories))
	}

	return common.RunFileCommand(cmd.Context(), logger, validateConfig, args, createInput, validate, logDetails)
}

// formatPreRun applies the default output format and checks it against the
// configured formats.
func formatPreRun(cc *common.CommandConfig) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if cc.OutputFormat == "" {
			cc.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateOutputFormat(cc.OutputFormat, cfg.App.SupportedFormats)
	}
}

func addOutputFlags(cmd *cobra.Command, cc *common.CommandConfig) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cc.OutputFormat, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}
