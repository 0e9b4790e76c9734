// Package gitrepo wraps a go-git working tree with the single primitive
// the registry's write path needs: stage one file and commit it with a
// fixed identity.
package gitrepo

import (
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/onelson/estuary-go/internal/apperrors"
)

// author is the fixed identity every index commit is attributed to.
var author = object.Signature{
	Name:  "estuary",
	Email: "admin@localhost",
}

// Repository owns the on-disk working tree backing the index.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing repository at path, or bootstraps a fresh one
// with an empty initial commit ("init empty repo") if the directory is not
// yet a git repository.
func Open(path string) (*Repository, apperrors.Envelope) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apperrors.WrapError(apperrors.CodeIO, "failed to create index directory", err)
	}

	repo, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(path, false)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.CodeGit, "failed to init index repository", err)
		}
		r := &Repository{repo: repo, path: path}
		if env := r.commitEmpty("init empty repo"); env.Code != "" {
			return nil, env
		}
		return r, apperrors.Envelope{}
	}
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeGit, "failed to open index repository", err)
	}
	return &Repository{repo: repo, path: path}, apperrors.Envelope{}
}

// Path returns the repository's working tree root.
func (r *Repository) Path() string { return r.path }

func (r *Repository) commitEmpty(message string) apperrors.Envelope {
	wt, err := r.repo.Worktree()
	if err != nil {
		return apperrors.WrapError(apperrors.CodeGit, "failed to open worktree", err)
	}
	now := time.Now()
	_, err = wt.Commit(message, &git.CommitOptions{
		Author:            &object.Signature{Name: author.Name, Email: author.Email, When: now},
		Committer:         &object.Signature{Name: author.Name, Email: author.Email, When: now},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return apperrors.WrapError(apperrors.CodeGit, "failed to create bootstrap commit", err)
	}
	return apperrors.Envelope{}
}

// AddAndCommit stages relativePath (relative to the working tree root)
// and commits it with the fixed registry identity and the given message.
func (r *Repository) AddAndCommit(relativePath, message string) apperrors.Envelope {
	wt, err := r.repo.Worktree()
	if err != nil {
		return apperrors.WrapError(apperrors.CodeGit, "failed to open worktree", err)
	}
	if _, err := wt.Add(relativePath); err != nil {
		return apperrors.WrapError(apperrors.CodeGit, "failed to stage file", err)
	}
	now := time.Now()
	_, err = wt.Commit(message, &git.CommitOptions{
		Author:    &object.Signature{Name: author.Name, Email: author.Email, When: now},
		Committer: &object.Signature{Name: author.Name, Email: author.Email, When: now},
	})
	if err != nil {
		return apperrors.WrapError(apperrors.CodeGit, "failed to commit", err)
	}
	return apperrors.Envelope{}
}

// Log returns commit messages from HEAD backwards, newest first.
func (r *Repository) Log() ([]string, apperrors.Envelope) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeGit, "failed to resolve HEAD", err)
	}
	commitIter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeGit, "failed to read commit log", err)
	}
	var messages []string
	err = commitIter.ForEach(func(c *object.Commit) error {
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		return nil, apperrors.WrapError(apperrors.CodeGit, "failed to walk commit log", err)
	}
	return messages, apperrors.Envelope{}
}
