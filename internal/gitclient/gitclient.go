package gitclient

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies the author of commits.
type Author struct {
	Name  string
	Email string
}

var DefaultAuthor = Author{
	Name:  "apicsync",
	Email: "apicsync@localhost",
}

// Committer records the state of a local working tree in git.
type Committer struct {
	repo   *git.Repository
	author Author
	now    func() time.Time
}

// Open opens the git repository in dir, initializing a new one if dir
// is not a repository yet.
func Open(dir string, author Author) (*Committer, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository in %s: %w", dir, err)
	}
	return &Committer{repo: repo, author: author, now: time.Now}, nil
}

// CommitAll stages all changes of the working tree, including deletions,
// and commits them. It returns the hash of the new commit, or the empty
// string if the working tree was clean.
func (c *Committer) CommitAll(message string) (string, error) {
	w, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.author.Name,
			Email: c.author.Email,
			When:  c.now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

func (c *Committer) headTree(revision string) (*object.Tree, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("revision %q not found: %w", revision, err)
	}
	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed: %w", err)
	}
	return commit.Tree()
}

// readFile reads filePath as of the given revision.
func (c *Committer) readFile(revision, filePath string) ([]byte, error) {
	tree, err := c.headTree(revision)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(filePath)
	if err != nil {
		return nil, err // object.ErrFileNotFound if missing
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// ListFiles lists all files committed in the given revision, relative
// to the repository root.
func (c *Committer) ListFiles(revision string) ([]string, error) {
	tree, err := c.headTree(revision)
	if err != nil {
		return nil, err
	}
	var paths []string
	files := tree.Files()
	defer files.Close()
	err = files.ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}
	return paths, nil
}
