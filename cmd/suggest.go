package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"api-testgen/internal/workflow"

	"github.com/spf13/cobra"
)

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Print relations between operations suggested by a language model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		raw, hint, err := a.readDocument(ctx, specArg)
		if err != nil {
			return err
		}
		controller, err := a.newController()
		if err != nil {
			return err
		}
		if err := advance(controller, raw, hint, workflow.StepAnalyze); err != nil {
			return err
		}

		suggester, err := a.newSuggester()
		if err != nil {
			return err
		}
		relations, err := suggester.Suggest(ctx, controller.State().Endpoints)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(relations, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
