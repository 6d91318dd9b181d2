package cmd

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/typst/package-check/internal/checks"
	"github.com/typst/package-check/internal/config"
	"github.com/typst/package-check/internal/gitrepo"
	"github.com/typst/package-check/internal/report"
	"github.com/typst/package-check/internal/sources"
)

var checkCmd = &cobra.Command{
	Use:   "check [PACKAGE:VERSION]",
	Short: "Check a local package",
	Long: `Check the package in the current directory, or a named version inside a
local clone of the package registry (set PACKAGES_DIR to the clone root,
it defaults to the parent directory).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := config.LoadCheck()

	var rep report.Report
	if len(args) == 1 {
		spec, err := sources.ParseSpec(args[0])
		if err != nil {
			return err
		}

		analyzer := &checks.Analyzer{
			Registry: sources.NewRegistry(cfg.PackagesDir),
			Disabled: cfg.Disabled(),
		}
		// Author history is a bonus: a clone without git metadata still gets
		// every other check.
		if repo, openErr := gitrepo.Open(cfg.PackagesDir); openErr == nil {
			analyzer.History = repo
		} else {
			logger.Debugf("no git history available: %v", openErr)
		}

		rep, err = analyzer.AnalyzeSpec(spec)
		if err != nil {
			return err
		}
	} else {
		analyzer := &checks.Analyzer{Disabled: cfg.Disabled()}
		var err error
		rep, err = analyzer.AnalyzeDir(".")
		if err != nil {
			return err
		}
	}

	report.Print(cmd.OutOrStdout(), rep)
	if !rep.Passed() {
		return fmt.Errorf("found %d error(s)", rep.Errors())
	}
	return nil
}
