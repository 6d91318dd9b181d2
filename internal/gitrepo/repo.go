// Package gitrepo gives read-only access to the local clone of the package
// registry through go-git: fetching pull request head commits, reading file
// trees at a commit without touching the working tree, and author history.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	logger "github.com/sirupsen/logrus"

	"github.com/typst/package-check/internal/sources"
)

// Repo wraps an opened git repository. All operations are read-only with
// respect to the working tree; analyses running concurrently share one clone
// and must never see it change underneath them.
type Repo struct {
	dir  string
	repo *git.Repository
}

// Open opens an existing clone.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %q: %w", dir, err)
	}
	return &Repo{dir: dir, repo: repo}, nil
}

// CloneIfNeeded opens dir, cloning url into it first when no repository
// exists there yet.
func CloneIfNeeded(ctx context.Context, dir, url string) (*Repo, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		logger.Infof("cloning %s into %s", url, dir)
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url})
	}
	if err != nil {
		return nil, fmt.Errorf("preparing clone at %q: %w", dir, err)
	}
	return &Repo{dir: dir, repo: repo}, nil
}

// Dir returns the clone's directory.
func (r *Repo) Dir() string { return r.dir }

// FetchCommit fetches a single commit from origin under a private ref, so
// pull request heads become readable without checking anything out.
func (r *Repo) FetchCommit(ctx context.Context, sha string) error {
	refspec := gitconfig.RefSpec(fmt.Sprintf("+%s:refs/package-check/%s", sha, sha))
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Tags:       git.NoTags,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching commit %s: %w", sha, err)
	}
	return nil
}

// HasCommit reports whether a commit is already present locally, making a
// fetch unnecessary.
func (r *Repo) HasCommit(sha string) bool {
	_, err := r.repo.CommitObject(plumbing.NewHash(sha))
	return err == nil
}

// TreeAt materializes the files under subdir at the given commit into an
// in-memory source tree. Paths in the result are relative to subdir.
func (r *Repo) TreeAt(sha, subdir string) (*sources.Tree, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("resolving commit %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree of %s: %w", sha, err)
	}
	if subdir != "" {
		tree, err = tree.Tree(subdir)
		if err != nil {
			return nil, fmt.Errorf("no directory %q at commit %s: %w", subdir, sha, err)
		}
	}

	result := sources.NewTree(subdir)
	err = tree.Files().ForEach(func(f *object.File) error {
		contents, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading %q at %s: %w", f.Name, sha, err)
		}
		result.Add(f.Name, []byte(contents))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangedFiles lists the paths a commit touches relative to its first
// parent. For a root commit every file counts as changed.
func (r *Repo) ChangedFiles(sha string) ([]string, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("resolving commit %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	if commit.NumParents() == 0 {
		var paths []string
		err := tree.Files().ForEach(func(f *object.File) error {
			paths = append(paths, f.Name)
			return nil
		})
		return paths, err
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s against its parent: %w", sha, err)
	}

	seen := make(map[string]struct{}, len(changes))
	var paths []string
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths, nil
}

// FileAuthors returns the distinct author emails over a file's commit log,
// sorted. Implements checks.History.
func (r *Repo) FileAuthors(path string) ([]string, error) {
	iter, err := r.repo.Log(&git.LogOptions{FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("reading log for %q: %w", path, err)
	}
	defer iter.Close()

	seen := make(map[string]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Author.Email] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	authors := make([]string, 0, len(seen))
	for email := range seen {
		authors = append(authors, email)
	}
	sort.Strings(authors)
	return authors, nil
}
