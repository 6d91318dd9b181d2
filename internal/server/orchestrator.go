package server

import (
	"context"
	"fmt"
	"sort"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/checks"
	"github.com/typst/package-check/internal/config"
	"github.com/typst/package-check/internal/github"
	"github.com/typst/package-check/internal/gitrepo"
	"github.com/typst/package-check/internal/sources"
)

// Event is one unit of work: evaluate a head commit of a repository.
type Event struct {
	Owner        string
	Repo         string
	HeadSHA      string
	Installation int64
	// PRNumber is the pull request to list changed files for; when zero the
	// commit is diffed against its parent instead (action and force modes).
	PRNumber int
	// CheckRuns carries existing run ids from a rerequested payload, so the
	// run is updated rather than recreated.
	CheckRuns map[string]int64
	// Force re-runs a key that already completed.
	Force bool
}

// Key returns the idempotency key of the event.
func (ev Event) Key() Key {
	return Key{Repository: ev.Owner + "/" + ev.Repo, HeadSHA: ev.HeadSHA}
}

// API is the slice of the GitHub client the orchestrator drives. Narrowed to
// an interface so tests can run deliveries against a fake.
type API interface {
	ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]string, error)
	CreateCheckRun(ctx context.Context, owner, repo, name, headSHA string) (int64, error)
	CompleteCheckRun(ctx context.Context, owner, repo string, id int64, name string, outcome github.Outcome) error
}

var _ API = (*github.Client)(nil)

// tokenSource mints installation tokens. Satisfied by *github.TokenCache;
// narrowed to an interface so tests can stub authentication out.
type tokenSource interface {
	Token(ctx context.Context, installation int64) (string, error)
}

// Orchestrator runs the delivery state machine. Deliveries for distinct
// (repository, head SHA) keys run concurrently; the only shared mutable
// state is the token cache and the state store, both synchronized.
type Orchestrator struct {
	cfg    *config.Config
	repo   *gitrepo.Repo
	tokens tokenSource
	store  *Store

	// newAPI builds an authenticated client from an installation token.
	// Swapped out in tests.
	newAPI func(token string) API
}

// NewOrchestrator wires the orchestrator onto the shared clone and token
// cache.
func NewOrchestrator(cfg *config.Config, repo *gitrepo.Repo, tokens *github.TokenCache) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		repo:   repo,
		tokens: tokens,
		store:  NewStore(),
		newAPI: func(token string) API { return github.NewClient(token) },
	}
}

// Store exposes the state store, mainly for tests and the status endpoint.
func (o *Orchestrator) Store() *Store { return o.store }

// Process drives one event through the state machine. Duplicate deliveries
// for a key that is done or still running return immediately without any
// credential use or API call.
func (o *Orchestrator) Process(ctx context.Context, ev Event) error {
	key := ev.Key()
	if !o.store.Begin(key, ev.Force) {
		logger.Infof("duplicate delivery for %s@%s, ignoring", key.Repository, shortSHA(key.HeadSHA))
		return nil
	}
	for name, id := range ev.CheckRuns {
		o.store.RecordCheckRun(key, name, id)
	}

	o.store.SetPhase(key, PhaseAuthenticating)
	token, err := o.tokens.Token(ctx, ev.Installation)
	if err != nil {
		o.store.Fail(key, err.Error())
		return fmt.Errorf("authenticating installation %d: %w", ev.Installation, err)
	}
	api := o.newAPI(token)

	if err := o.run(ctx, key, ev, api); err != nil {
		o.store.Fail(key, err.Error())
		o.reportFailure(ctx, key, ev, api)
		return err
	}

	o.store.SetPhase(key, PhaseDone)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, key Key, ev Event, api API) error {
	o.store.SetPhase(key, PhaseFetching)

	if !o.repo.HasCommit(ev.HeadSHA) {
		if err := o.repo.FetchCommit(ctx, ev.HeadSHA); err != nil {
			return err
		}
	}

	var (
		files []string
		err   error
	)
	if ev.PRNumber > 0 {
		files, err = api.ListPullRequestFiles(ctx, ev.Owner, ev.Repo, ev.PRNumber)
	} else {
		files, err = o.repo.ChangedFiles(ev.HeadSHA)
	}
	if err != nil {
		return err
	}

	touched, outside := touchedPackages(files)
	if len(touched) == 0 {
		logger.Infof("%s@%s touches no packages, nothing to do", key.Repository, shortSHA(ev.HeadSHA))
		return nil
	}

	for _, spec := range touched {
		if err := o.evaluate(ctx, key, ev, api, spec, outside); err != nil {
			return err
		}
	}
	return nil
}

// evaluate runs the check pipeline for one touched package and publishes the
// result as a check run.
func (o *Orchestrator) evaluate(ctx context.Context, key Key, ev Event, api API, spec *sources.PackageSpec, outside bool) error {
	name := spec.String()

	id, ok := o.store.CheckRun(key, name)
	if !ok {
		var err error
		id, err = api.CreateCheckRun(ctx, ev.Owner, ev.Repo, name, ev.HeadSHA)
		if err != nil {
			return err
		}
		o.store.RecordCheckRun(key, name, id)
	}

	if outside {
		// Mixing package changes with repository changes makes review
		// impossible; fail fast without analyzing.
		return api.CompleteCheckRun(ctx, ev.Owner, ev.Repo, id, name, github.Outcome{
			Conclusion: "failure",
			Title:      "This PR does too many things",
			Summary: "A PR should either change packages/, or the rest of " +
				"the repository, but not both.",
		})
	}

	o.store.SetPhase(key, PhaseAnalyzing)
	tree, err := o.repo.TreeAt(ev.HeadSHA, spec.RegistryPath())
	if err != nil {
		// The PR may delete the package; that is not an infrastructure
		// failure, so report it on the run and move on.
		return api.CompleteCheckRun(ctx, ev.Owner, ev.Repo, id, name, github.Outcome{
			Conclusion: "neutral",
			Title:      "Package directory not found",
			Summary:    fmt.Sprintf("No %s directory exists at this commit.", spec.RegistryPath()),
		})
	}

	analyzer := &checks.Analyzer{
		Registry: sources.NewRegistry(o.cfg.PackagesDir),
		History:  o.repo,
		Disabled: o.cfg.Disabled(),
	}
	rep := analyzer.AnalyzeTree(spec, tree)

	o.store.SetPhase(key, PhaseReporting)
	return api.CompleteCheckRun(ctx, ev.Owner, ev.Repo, id, name,
		github.OutcomeFromReport(rep, spec.RegistryPath()))
}

// reportFailure makes a best-effort attempt to complete every created check
// run after an unrecoverable error, so the PR author never stares at an
// eternally in-progress check.
func (o *Orchestrator) reportFailure(ctx context.Context, key Key, ev Event, api API) {
	for name, id := range o.store.CheckRuns(key) {
		err := api.CompleteCheckRun(ctx, ev.Owner, ev.Repo, id, name, github.Outcome{
			Conclusion: "failure",
			Title:      "Fatal error",
			Summary:    "The package checker encountered an internal error. This is not your fault; try re-running the check.",
		})
		if err != nil {
			logger.Warnf("could not close check run %s after failure: %v", name, err)
		}
	}
}

// touchedPackages maps changed file paths onto registry package specs.
// Paths outside packages/ set the outside flag instead.
func touchedPackages(files []string) ([]*sources.PackageSpec, bool) {
	outside := false
	seen := make(map[string]*sources.PackageSpec)
	for _, file := range files {
		parts := strings.Split(file, "/")
		if len(parts) < 5 || parts[0] != "packages" {
			outside = true
			continue
		}
		spec, err := sources.ParseSpec(fmt.Sprintf("@%s/%s:%s", parts[1], parts[2], parts[3]))
		if err != nil {
			// Not a package directory layout (docs, helper scripts, ...).
			outside = true
			continue
		}
		seen[spec.String()] = spec
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]*sources.PackageSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, seen[name])
	}
	return specs, outside
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
