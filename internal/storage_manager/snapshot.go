package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Snapshot maps a file path to a hash of its content.
type Snapshot map[string]string

// Snapshotter produces the current Snapshot of a store.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Syncer pulls remote changes into a store.
type Syncer interface {
	Sync(ctx context.Context) error
}

// ContentSnapshotter snapshots any FileProvider by hashing every file. It
// uses git blob hashes so snapshots compare equal across backends.
type ContentSnapshotter struct {
	provider FileProvider
}

// NewContentSnapshotter wraps provider.
func NewContentSnapshotter(provider FileProvider) *ContentSnapshotter {
	return &ContentSnapshotter{provider: provider}
}

// Snapshot reads every file in the store.
func (s *ContentSnapshotter) Snapshot(ctx context.Context) (Snapshot, error) {
	files, err := s.provider.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	snap := make(Snapshot, len(files))
	for _, name := range files {
		data, err := s.provider.Read(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		snap[name] = plumbing.ComputeHash(plumbing.BlobObject, data).String()
	}
	return snap, nil
}
