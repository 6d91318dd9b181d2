package github

import (
	"context"
	"fmt"
	"time"

	gogithub "github.com/google/go-github/v66/github"
	logger "github.com/sirupsen/logrus"
)

const (
	perPage = 100

	// getRetries bounds retries of idempotent reads. Check run creation is
	// never retried: a duplicated POST would leave two runs on the commit.
	getRetries = 3
	retryDelay = 2 * time.Second

	// annotationsPerRequest is GitHub's hard limit per check-run update.
	annotationsPerRequest = 50
	// maxAnnotations caps the total annotations attached to one run; the
	// report notes when diagnostics had to be dropped.
	maxAnnotations = 200
)

// Client is a thin wrapper over go-github, authenticated with an
// installation token.
type Client struct {
	gh *gogithub.Client
}

// NewClient builds a client from an installation token.
func NewClient(token string) *Client {
	return &Client{gh: gogithub.NewClient(nil).WithAuthToken(token)}
}

// NewFromGitHub wraps an existing go-github client. Used by tests to point
// at a local server.
func NewFromGitHub(gh *gogithub.Client) *Client {
	return &Client{gh: gh}
}

// ListPullRequestFiles returns the paths changed by a pull request,
// repository-relative.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	var paths []string
	opts := &gogithub.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.listFilesPage(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			paths = append(paths, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return paths, nil
}

// listFilesPage fetches one page with bounded retries; listing files is
// idempotent so retrying is safe.
func (c *Client) listFilesPage(ctx context.Context, owner, repo string, number int, opts *gogithub.ListOptions) ([]*gogithub.CommitFile, *gogithub.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= getRetries; attempt++ {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err == nil {
			return files, resp, nil
		}
		lastErr = err
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break // client errors will not get better on retry
		}
		logger.Warnf("listing PR files for %s/%s#%d failed (attempt %d): %v", owner, repo, number, attempt, err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryDelay):
		}
	}
	return nil, nil, fmt.Errorf("listing files of %s/%s#%d: %w", owner, repo, number, lastErr)
}

// CreateCheckRun creates a new in-progress check run on the head commit and
// returns its id. Not retried.
func (c *Client) CreateCheckRun(ctx context.Context, owner, repo, name, headSHA string) (int64, error) {
	run, _, err := c.gh.Checks.CreateCheckRun(ctx, owner, repo, gogithub.CreateCheckRunOptions{
		Name:    name,
		HeadSHA: headSHA,
		Status:  gogithub.String("in_progress"),
	})
	if err != nil {
		return 0, fmt.Errorf("creating check run %q on %s: %w", name, headSHA, err)
	}
	return run.GetID(), nil
}

// Annotation is one inline finding attached to a check run.
type Annotation struct {
	Path        string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
	Level       string // "notice", "warning" or "failure"
	Message     string
}

// Outcome is the terminal state of a check run.
type Outcome struct {
	Conclusion  string // "success", "neutral" or "failure"
	Title       string
	Summary     string
	Annotations []Annotation
}

// CompleteCheckRun marks a run completed with the given outcome. Annotations
// are chunked to the platform's per-request limit and spread across several
// update calls; the final call carries the conclusion.
func (c *Client) CompleteCheckRun(ctx context.Context, owner, repo string, id int64, name string, outcome Outcome) error {
	annotations := outcome.Annotations
	summary := outcome.Summary
	if len(annotations) > maxAnnotations {
		annotations = annotations[:maxAnnotations]
		summary += fmt.Sprintf("\n\nThe annotation list was truncated to the first %d findings.", maxAnnotations)
	}

	chunks := chunkAnnotations(annotations, annotationsPerRequest)
	if len(chunks) == 0 {
		chunks = [][]Annotation{nil}
	}

	for i, chunk := range chunks {
		opts := gogithub.UpdateCheckRunOptions{
			Name: name,
			Output: &gogithub.CheckRunOutput{
				Title:       gogithub.String(outcome.Title),
				Summary:     gogithub.String(summary),
				Annotations: toAPIAnnotations(chunk),
			},
		}
		if i == len(chunks)-1 {
			opts.Status = gogithub.String("completed")
			opts.Conclusion = gogithub.String(outcome.Conclusion)
		}
		if _, _, err := c.gh.Checks.UpdateCheckRun(ctx, owner, repo, id, opts); err != nil {
			return fmt.Errorf("updating check run %d on %s/%s: %w", id, owner, repo, err)
		}
	}
	return nil
}

func chunkAnnotations(annotations []Annotation, size int) [][]Annotation {
	var chunks [][]Annotation
	for len(annotations) > size {
		chunks = append(chunks, annotations[:size])
		annotations = annotations[size:]
	}
	if len(annotations) > 0 {
		chunks = append(chunks, annotations)
	}
	return chunks
}

func toAPIAnnotations(annotations []Annotation) []*gogithub.CheckRunAnnotation {
	out := make([]*gogithub.CheckRunAnnotation, 0, len(annotations))
	for _, a := range annotations {
		api := &gogithub.CheckRunAnnotation{
			Path:            gogithub.String(a.Path),
			StartLine:       gogithub.Int(a.StartLine),
			EndLine:         gogithub.Int(a.EndLine),
			AnnotationLevel: gogithub.String(a.Level),
			Message:         gogithub.String(a.Message),
		}
		// GitHub rejects columns on multi-line annotations.
		if a.StartLine == a.EndLine && a.StartColumn > 0 && a.EndColumn > 0 {
			api.StartColumn = gogithub.Int(a.StartColumn)
			api.EndColumn = gogithub.Int(a.EndColumn)
		}
		out = append(out, api)
	}
	return out
}
