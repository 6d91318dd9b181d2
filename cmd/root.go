// Package cmd wires the CLI surface: check (local analysis), server
// (webhook service) and action (single-event CI processing).
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "typst-package-check",
	Short: "Static checks for Typst packages before they reach the registry",
	Long: `Checks Typst packages for common problems before publication:
manifest validity, import resolution, naming conventions, forbidden files.

Usage modes:
  typst-package-check check                    Check the package in the current directory
  typst-package-check check @preview/pkg:1.0.0 Check a package inside a local registry clone
  typst-package-check server                   Serve GitHub webhooks and report check runs on PRs
  typst-package-check action                   Check a single commit from within a CI workflow`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// .env keeps local development credentials out of the shell history.
		_ = godotenv.Load()

		logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
		if verbose || os.Getenv("DEBUG") == "true" {
			logger.SetLevel(logger.DebugLevel)
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}
