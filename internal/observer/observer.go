// Package observer watches the snippet store for changes made outside the
// application, such as commits pulled from the git remote.
package observer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lewisedginton/brainoverflow/internal/events"
	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// EventStoreUpdates is published with a []Change payload.
const EventStoreUpdates = "store-updates"

// DefaultInterval is the polling period.
const DefaultInterval = 10 * time.Second

// ChangeType classifies a Change.
type ChangeType string

const (
	Added    ChangeType = "Added"
	Modified ChangeType = "Modified"
	Deleted  ChangeType = "Deleted"
)

// Change is one file that differs between two snapshots.
type Change struct {
	ChangeType ChangeType `json:"changeType"`
	Path       string     `json:"path"`
}

// Store is the part of the storage manager the observer needs.
type Store interface {
	Sync(ctx context.Context) error
	Snapshotter() storage_manager.Snapshotter
}

// Observer is a hosted service that polls the store.
type Observer struct {
	store     Store
	publisher events.Publisher
	interval  time.Duration
	log       logger.Logger

	last storage_manager.Snapshot
}

// New creates an Observer. A non-positive interval uses DefaultInterval.
func New(store Store, publisher events.Publisher, interval time.Duration, log logger.Logger) *Observer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Observer{
		store:     store,
		publisher: publisher,
		interval:  interval,
		log:       log.WithFields(logger.StringField("component", "observer")),
	}
}

// Name implements app.HostedService.
func (o *Observer) Name() string { return "store-observer" }

// Start takes the baseline snapshot.
func (o *Observer) Start(ctx context.Context) error {
	snap, err := o.store.Snapshotter().Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot store: %w", err)
	}
	o.last = snap
	o.log.Info("Store observer started",
		logger.IntField("files", len(snap)),
		logger.DurationField("interval", o.interval))
	return nil
}

// Run polls until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.Poll(ctx)
		}
	}
}

// Poll syncs the store once and publishes what changed. Failures are
// logged and retried on the next tick.
func (o *Observer) Poll(ctx context.Context) []Change {
	if err := o.store.Sync(ctx); err != nil {
		o.log.Warn("Failed to sync store", logger.ErrorField(err))
	}

	snap, err := o.store.Snapshotter().Snapshot(ctx)
	if err != nil {
		o.log.Error("Failed to snapshot store", logger.ErrorField(err))
		return nil
	}

	changes := Diff(o.last, snap)
	o.last = snap
	if len(changes) == 0 {
		return nil
	}

	o.log.Info("Store changed", logger.IntField("changes", len(changes)))
	o.publisher.Publish(EventStoreUpdates, changes)
	return changes
}

// Diff lists the changes from before to after, ordered by path.
func Diff(before, after storage_manager.Snapshot) []Change {
	var changes []Change
	for path, hash := range after {
		old, ok := before[path]
		switch {
		case !ok:
			changes = append(changes, Change{ChangeType: Added, Path: path})
		case old != hash:
			changes = append(changes, Change{ChangeType: Modified, Path: path})
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			changes = append(changes, Change{ChangeType: Deleted, Path: path})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}
