package sink

import (
	"context"
	"fmt"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/gitclient"
	"github.com/dnswlt/apicsync/internal/store"
)

// StoreSink writes each entity to its own YAML file in a store.
type StoreSink struct {
	st store.Store
}

func NewStoreSink(st store.Store) *StoreSink {
	return &StoreSink{st: st}
}

func (s *StoreSink) ApplyMutation(ctx context.Context, m *Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Type == Full {
		if err := s.removeLocation(m.LocationKey); err != nil {
			return err
		}
	}
	for _, d := range m.Upserts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := store.WriteEntity(s.st, d.Entity); err != nil {
			return fmt.Errorf("failed to write %s: %w", d.Entity.GetRef(), err)
		}
	}
	for _, r := range m.Removed {
		p, err := store.EntityRefPath(r)
		if err != nil {
			return err
		}
		if err := s.st.RemoveFile(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", r, err)
		}
	}
	return nil
}

// removeLocation removes all entity files whose entities are managed by
// the given location key, or all entity files if key is empty.
func (s *StoreSink) removeLocation(key string) error {
	files, err := store.EntityFiles(s.st, "")
	if err != nil {
		return fmt.Errorf("failed to list entity files: %w", err)
	}
	for _, f := range files {
		if key != "" {
			managed, err := managedBy(s.st, f, key)
			if err != nil {
				return err
			}
			if !managed {
				continue
			}
		}
		if err := s.st.RemoveFile(f); err != nil {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}

func managedBy(st store.Store, path, key string) (bool, error) {
	entities, err := store.ReadEntities(st, path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, e := range entities {
		if e.GetMetadata().Annotation(api.AnnotManagedByLocation) == key {
			return true, nil
		}
	}
	return false, nil
}

// GitSink is a StoreSink on a git working tree that commits all changes on Flush.
type GitSink struct {
	*StoreSink
	committer *gitclient.Committer
}

// NewGitSink returns a sink writing to dir, which is initialized as a
// git repository if necessary.
func NewGitSink(dir string, author gitclient.Author) (*GitSink, error) {
	c, err := gitclient.Open(dir, author)
	if err != nil {
		return nil, err
	}
	return &GitSink{
		StoreSink: NewStoreSink(store.NewDiskStore(dir)),
		committer: c,
	}, nil
}

// Flush commits all changes since the last Flush.
func (s *GitSink) Flush(ctx context.Context, message string) error {
	if _, err := s.committer.CommitAll(message); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}

// Committer returns the committer of the sink's working tree.
func (s *GitSink) Committer() *gitclient.Committer {
	return s.committer
}
