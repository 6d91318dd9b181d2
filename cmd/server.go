package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/typst/package-check/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve GitHub webhooks and report check runs on pull requests",
	Long: `Start an HTTP server that authenticates as a GitHub App, receives
pull request webhooks, runs the package checks against the changed
packages and reports the results as check runs with inline annotations.

Requires PACKAGES_DIR, GITHUB_APP_IDENTIFIER, GITHUB_WEBHOOK_SECRET and
GITHUB_PRIVATE_KEY (a .env file is honored).`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := buildServerContainer(ctx)
	if err != nil {
		return err
	}

	return container.Invoke(func(s *server.Server) error {
		return s.ListenAndServe(ctx)
	})
}
