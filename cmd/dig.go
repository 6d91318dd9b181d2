package cmd

import (
	"context"

	"go.uber.org/dig"

	"github.com/typst/package-check/internal/config"
	"github.com/typst/package-check/internal/github"
	"github.com/typst/package-check/internal/gitrepo"
	"github.com/typst/package-check/internal/server"
)

// buildServerContainer assembles the server-mode object graph: configuration,
// the registry clone, App authentication, the orchestrator and the HTTP
// front end.
func buildServerContainer(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		config.LoadServer,
		func(cfg *config.Config) (*gitrepo.Repo, error) {
			return gitrepo.CloneIfNeeded(ctx, cfg.PackagesDir, cfg.CloneURL)
		},
		func(cfg *config.Config) (*github.AppAuth, error) {
			return github.NewAppAuth(cfg.AppID, cfg.PrivateKey)
		},
		github.NewTokenCache,
		server.NewOrchestrator,
		server.New,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}
	return container, nil
}
