// Package cmd implements the api-testgen command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	specArg string
	rootCmd = &cobra.Command{
		Use:                   "api-testgen [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Generate and run API tests from an OpenAPI document.",
		Long: `api-testgen reads an OpenAPI 3.0 document, infers business scenarios and
	relations between its operations, generates test cases and runs them against a live API.
	`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+defaultConfigHint+")")
	rootCmd.PersistentFlags().StringVar(&specArg, "spec", "", "OpenAPI document: a file path or URL (default discovers it under environment.base_url)")

	rootCmd.AddCommand(serveCmd, generateCmd, runCmd, suggestCmd)
}

func Execute() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
