package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v66/github"
	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/config"
)

// deliveryTimeout bounds one delivery end to end, fetch and API calls
// included.
const deliveryTimeout = 10 * time.Minute

// Server is the webhook HTTP front end.
type Server struct {
	cfg  *config.Config
	orch *Orchestrator
}

// New builds the server over an orchestrator.
func New(cfg *config.Config, orch *Orchestrator) *Server {
	return &Server{cfg: cfg, orch: orch}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /github-hook", s.handleHook)
	mux.HandleFunc("GET /force-review/{installation}/{sha}", s.handleForce)
	return mux
}

// ListenAndServe runs the HTTP listener until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", s.cfg.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleIndex exists so deployments can probe that the service is up.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintln(w, "typst-package-check is running")
}

// handleHook is the webhook endpoint. The signature is verified before
// anything else happens; a request that fails verification is rejected
// without minting any credential.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	payload, err := gogithub.ValidatePayload(r, []byte(s.cfg.WebhookSecret))
	if err != nil {
		logger.Warnf("rejected webhook delivery: %v", err)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	webhook, err := gogithub.ParseWebHook(gogithub.WebHookType(r), payload)
	if err != nil {
		http.Error(w, "unparsable payload", http.StatusBadRequest)
		return
	}

	ev, ok := eventFromWebhook(webhook)
	if !ok {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ignored")
		return
	}

	s.dispatch(ev)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "accepted")
}

// handleForce re-runs the checks for a commit without a webhook, which is
// handy when debugging a deployment.
func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	installation, err := strconv.ParseInt(r.PathValue("installation"), 10, 64)
	if err != nil {
		http.Error(w, "invalid installation id", http.StatusBadRequest)
		return
	}
	owner, repo := registryRepository(s.cfg.CloneURL)

	s.dispatch(Event{
		Owner:        owner,
		Repo:         repo,
		HeadSHA:      r.PathValue("sha"),
		Installation: installation,
		Force:        true,
	})
	fmt.Fprintln(w, "accepted")
}

// dispatch runs the delivery detached from the HTTP request, with its own
// timeout. Webhook senders only need the acknowledgment.
func (s *Server) dispatch(ev Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := s.orch.Process(ctx, ev); err != nil {
			logger.Errorf("delivery for %s/%s@%s failed: %v", ev.Owner, ev.Repo, shortSHA(ev.HeadSHA), err)
		}
	}()
}

// eventFromWebhook maps the webhook payloads this service reacts to onto an
// Event. Everything else is acknowledged and dropped.
func eventFromWebhook(webhook any) (Event, bool) {
	switch e := webhook.(type) {
	case *gogithub.PullRequestEvent:
		switch e.GetAction() {
		case "opened", "synchronize", "reopened", "ready_for_review":
		default:
			return Event{}, false
		}
		return Event{
			Owner:        e.GetRepo().GetOwner().GetLogin(),
			Repo:         e.GetRepo().GetName(),
			HeadSHA:      e.GetPullRequest().GetHead().GetSHA(),
			Installation: e.GetInstallation().GetID(),
			PRNumber:     e.GetPullRequest().GetNumber(),
		}, true

	case *gogithub.CheckSuiteEvent:
		switch e.GetAction() {
		case "requested", "rerequested":
		default:
			return Event{}, false
		}
		ev := Event{
			Owner:        e.GetRepo().GetOwner().GetLogin(),
			Repo:         e.GetRepo().GetName(),
			HeadSHA:      e.GetCheckSuite().GetHeadSHA(),
			Installation: e.GetInstallation().GetID(),
			Force:        e.GetAction() == "rerequested",
		}
		if prs := e.GetCheckSuite().PullRequests; len(prs) > 0 {
			ev.PRNumber = prs[0].GetNumber()
		}
		return ev, true

	case *gogithub.CheckRunEvent:
		if e.GetAction() != "rerequested" {
			return Event{}, false
		}
		run := e.GetCheckRun()
		ev := Event{
			Owner:        e.GetRepo().GetOwner().GetLogin(),
			Repo:         e.GetRepo().GetName(),
			HeadSHA:      run.GetHeadSHA(),
			Installation: e.GetInstallation().GetID(),
			CheckRuns:    map[string]int64{run.GetName(): run.GetID()},
			Force:        true,
		}
		if prs := run.PullRequests; len(prs) > 0 {
			ev.PRNumber = prs[0].GetNumber()
		}
		return ev, true
	}

	return Event{}, false
}

// registryRepository derives "owner/repo" from the configured clone URL.
func registryRepository(cloneURL string) (owner, repo string) {
	trimmed := strings.TrimSuffix(cloneURL, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "typst", "packages"
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
