// Package gitops records generated files as commits in the project's own
// git repository, one commit per pipeline stage.
package gitops

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	defaultAuthorName  = "crewgen"
	defaultAuthorEmail = "crewgen@localhost"
)

// Repo wraps the repository of a generated project.
type Repo struct {
	Dir         string
	AuthorName  string
	AuthorEmail string

	repo *git.Repository
}

// Open opens the repository at dir, initializing one if none exists.
func Open(dir, authorName, authorEmail string) (*Repo, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("gitops: failed to init repo: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("gitops: failed to open repo: %w", err)
	}

	if authorName == "" {
		authorName = defaultAuthorName
	}
	if authorEmail == "" {
		authorEmail = defaultAuthorEmail
	}
	return &Repo{Dir: dir, AuthorName: authorName, AuthorEmail: authorEmail, repo: repo}, nil
}

// Snapshot stages paths and commits them with message. It returns the new
// commit hash, or "" when none of the paths changed.
func (r *Repo) Snapshot(message string, paths []string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("gitops: failed to open worktree: %w", err)
	}

	for _, p := range paths {
		if _, err := wt.Add(filepath.ToSlash(filepath.Clean(p))); err != nil {
			return "", fmt.Errorf("gitops: failed to stage %s: %w", p, err)
		}
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("gitops: failed to read status: %w", err)
	}
	staged := false
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return "", nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.AuthorName,
			Email: r.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("gitops: failed to commit: %w", err)
	}
	return hash.String(), nil
}

// Log returns commit messages from HEAD backwards.
func (r *Repo) Log() ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("gitops: failed to resolve HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("gitops: failed to read log: %w", err)
	}
	defer iter.Close()

	var messages []string
	err = iter.ForEach(func(c *object.Commit) error {
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gitops: failed to walk log: %w", err)
	}
	return messages, nil
}
