package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"api-testgen/internal/generator"
	"api-testgen/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type GenerateOptions struct {
	OutputDir string
	Template  bool
}

var allGenerateOptions GenerateOptions

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate test cases and write them to the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.close()

		paths, err := generateCases(cmd.Context(), a, specArg, allGenerateOptions)
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&allGenerateOptions.OutputDir, "output", "generated", "directory for the generated files")
	generateCmd.Flags().BoolVar(&allGenerateOptions.Template, "template", false, "also write a request data template to fill in")
}

// generateCases drives the workflow to step 3 and writes the state and,
// optionally, a request data template. It returns the written paths.
func generateCases(ctx context.Context, a *app, source string, opts GenerateOptions) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	raw, hint, err := a.readDocument(ctx, source)
	if err != nil {
		return nil, err
	}
	controller, err := a.newController()
	if err != nil {
		return nil, err
	}
	if err := advance(controller, raw, hint, workflow.StepGenerate); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	state := controller.State()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal test cases: %w", err)
	}
	casesPath := filepath.Join(opts.OutputDir, "testcases.json")
	if err := os.WriteFile(casesPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write test cases: %w", err)
	}
	paths := []string{casesPath}

	if opts.Template {
		templatePath := filepath.Join(opts.OutputDir, "request_data.json")
		if err := generator.Template(state.Endpoints).Save(templatePath); err != nil {
			return paths, err
		}
		paths = append(paths, templatePath)
	}

	a.logger.Info("test cases generated",
		zap.Int("endpoints", len(state.Endpoints)),
		zap.Int("test_cases", len(state.TestCases)),
		zap.String("output", opts.OutputDir))
	return paths, nil
}
