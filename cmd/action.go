package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typst/package-check/internal/config"
	"github.com/typst/package-check/internal/github"
	"github.com/typst/package-check/internal/gitrepo"
	"github.com/typst/package-check/internal/server"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Check a single commit from within a CI workflow",
	Long: `Process one commit the way the webhook server would, driven by the
environment a CI workflow provides: GITHUB_INSTALLATION, GITHUB_REPOSITORY,
GITHUB_SHA and optionally GITHUB_REF_NAME (to resolve the pull request).`,
	RunE: runAction,
}

func init() {
	rootCmd.AddCommand(actionCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadAction()
	if err != nil {
		return err
	}

	installation, err := strconv.ParseInt(os.Getenv("GITHUB_INSTALLATION"), 10, 64)
	if err != nil {
		return fmt.Errorf("GITHUB_INSTALLATION must be a numeric installation id: %w", err)
	}
	sha := os.Getenv("GITHUB_SHA")
	if sha == "" {
		return fmt.Errorf("GITHUB_SHA is not set; this command should run in a CI workflow")
	}

	repository := os.Getenv("GITHUB_REPOSITORY")
	if repository == "" {
		repository = "typst/packages"
	}
	owner, name, ok := strings.Cut(repository, "/")
	if !ok {
		return fmt.Errorf("invalid GITHUB_REPOSITORY %q", repository)
	}

	repo, err := gitrepo.Open(cfg.PackagesDir)
	if err != nil {
		return err
	}
	auth, err := github.NewAppAuth(cfg.AppID, cfg.PrivateKey)
	if err != nil {
		return err
	}

	orch := server.NewOrchestrator(cfg, repo, github.NewTokenCache(auth))
	return orch.Process(cmd.Context(), server.Event{
		Owner:        owner,
		Repo:         name,
		HeadSHA:      sha,
		Installation: installation,
		PRNumber:     pullRequestNumber(os.Getenv("GITHUB_REF_NAME")),
		Force:        true,
	})
}

// pullRequestNumber extracts the PR number from a "123/merge" ref name.
// Returns 0 when the ref is not a PR merge ref; the orchestrator then diffs
// the commit against its parent instead.
func pullRequestNumber(refName string) int {
	number, err := strconv.Atoi(strings.TrimSuffix(refName, "/merge"))
	if err != nil {
		return 0
	}
	return number
}
