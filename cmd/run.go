package cmd

import (
	"context"
	"errors"
	"fmt"

	"api-testgen/internal/reporter"
	"api-testgen/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type RunOptions struct {
	BaseURL   string
	OutputDir string
	Formats   []string
	Suggest   bool
}

var allRunOptions RunOptions

// errTestsFailed makes the command exit non-zero when any case did not pass
var errTestsFailed = errors.New("some test cases failed")

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate test cases, run them against the API and write reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.close()

		report, paths, err := runCases(cmd.Context(), a, specArg, allRunOptions)
		for _, path := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d passed, %d failed of %d\n", report.PassedTests, report.FailedTests, report.TotalTests)
		if report.FailedTests > 0 {
			return errTestsFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&allRunOptions.BaseURL, "base-url", "", "base URL of the API under test (default is environment.base_url)")
	runCmd.Flags().StringVar(&allRunOptions.OutputDir, "output", "", "report directory (default is reporting.output_dir)")
	runCmd.Flags().StringSliceVar(&allRunOptions.Formats, "format", nil, "report formats: json, sarif (default is reporting.format)")
	runCmd.Flags().BoolVar(&allRunOptions.Suggest, "suggest", false, "add model suggested relations before generating")
}

// runCases drives the workflow through all four steps, runs every case and
// writes the reports
func runCases(ctx context.Context, a *app, source string, opts RunOptions) (reporter.Report, []string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.BaseURL != "" {
		a.config.Environment.BaseURL = opts.BaseURL
	}
	if opts.OutputDir != "" {
		a.config.Reporting.OutputDir = opts.OutputDir
	}
	if len(opts.Formats) > 0 {
		a.config.Reporting.Format = opts.Formats
	}
	if a.config.Environment.BaseURL == "" {
		return reporter.Report{}, nil, fmt.Errorf("no base URL: pass --base-url or set environment.base_url")
	}

	raw, hint, err := a.readDocument(ctx, source)
	if err != nil {
		return reporter.Report{}, nil, err
	}
	controller, err := a.newController()
	if err != nil {
		return reporter.Report{}, nil, err
	}
	if err := advance(controller, raw, hint, workflow.StepAnalyze); err != nil {
		return reporter.Report{}, nil, err
	}
	if opts.Suggest {
		addSuggestions(ctx, a, controller)
	}
	for controller.CurrentStep() < workflow.StepExecute {
		if err := controller.Next(); err != nil {
			return reporter.Report{}, nil, err
		}
	}

	var ids []string
	for _, tc := range controller.State().TestCases {
		ids = append(ids, tc.ID)
	}
	results, err := a.newCoordinator(controller).RunAll(ctx, ids)
	if err != nil {
		a.logger.Warn("some test cases could not start", zap.Error(err))
	}

	r := reporter.NewReporter(reporter.ReportingConfig{
		Format:    a.config.Reporting.Format,
		OutputDir: a.config.Reporting.OutputDir,
		Detailed:  a.config.Reporting.Detailed,
	})
	cases := controller.State().TestCases
	paths, err := r.GenerateReport(results, cases)
	if err != nil {
		return reporter.Report{}, paths, fmt.Errorf("failed to generate report: %w", err)
	}
	return r.BuildReport(results, cases), paths, nil
}

// addSuggestions stores model suggested relations as custom relations. The
// run goes on without them when the model is unavailable.
func addSuggestions(ctx context.Context, a *app, controller *workflow.Controller) {
	suggester, err := a.newSuggester()
	if err != nil {
		a.logger.Warn("relation suggestions disabled", zap.Error(err))
		return
	}
	suggestions, err := suggester.Suggest(ctx, controller.State().Endpoints)
	if err != nil {
		a.logger.Warn("relation suggestion failed", zap.Error(err))
		return
	}
	for _, relation := range suggestions {
		if _, err := controller.AddRelation(relation); err != nil {
			a.logger.Debug("suggested relation rejected", zap.Error(err))
		}
	}
}
