// Package state defines the StateStore contract: the persistence
// boundary for snapshots, environments, intervals, and the schema version
// record, per spec §4.3. Concrete backends (sqlitestate, memstate) are
// interchangeable implementations of Store.
package state

import (
	"context"

	"github.com/untoldecay/modeldag/internal/interval"
	"github.com/untoldecay/modeldag/internal/snapshot"
)

// NameVersion pairs a model name with a version, used to fetch every
// snapshot sharing a physical table.
type NameVersion struct {
	Name    string
	Version string
}

// Store is the StateStore contract. Implementations MUST make
// PushSnapshots, interval writes, and Promote each atomic with respect to
// concurrent readers: readers may see old-or-new but never partial state.
type Store interface {
	// Read operations.

	GetSnapshots(ctx context.Context, ids []snapshot.ID) (map[snapshot.ID]snapshot.Snapshot, error)
	GetSnapshotsWithSameVersion(ctx context.Context, pairs []NameVersion) ([]snapshot.Snapshot, error)
	SnapshotsExist(ctx context.Context, ids []snapshot.ID) (map[snapshot.ID]bool, error)
	GetEnvironment(ctx context.Context, name string) (*snapshot.Environment, error)
	GetEnvironments(ctx context.Context) ([]snapshot.Environment, error)
	GetSnapshotsByModels(ctx context.Context, names ...string) ([]snapshot.Snapshot, error)
	GetVersions(ctx context.Context, validate bool) (snapshot.Versions, error)
	GetIntervals(ctx context.Context, version string, dev bool) (interval.Set, error)

	// Write operations.

	PushSnapshots(ctx context.Context, snapshots []snapshot.Snapshot) error
	DeleteSnapshots(ctx context.Context, ids []snapshot.ID) error
	DeleteExpiredSnapshots(ctx context.Context, nowMillis int64) ([]snapshot.ID, error)
	DeleteExpiredEnvironments(ctx context.Context, nowMillis int64) ([]string, error)
	AddInterval(ctx context.Context, id snapshot.ID, start, end int64, isDev bool) error
	// RemoveInterval invalidates [start, end) on every snapshot sharing a
	// version with any of ids. When allSnapshots is false the caller has
	// already restricted ids to the exact set that should be touched
	// (e.g. a dev-mode restatement).
	RemoveInterval(ctx context.Context, ids []snapshot.ID, start, end int64, allSnapshots bool) error
	// Promote atomically replaces the environment's snapshot set,
	// returning the models added and removed relative to the prior cut.
	// When noGaps is set, Promote validates that every added snapshot
	// whose model already existed in the environment has full coverage
	// over [env.StartAt, env.EndOrNow(now)), failing with a
	// modelerr.ConflictError otherwise.
	Promote(ctx context.Context, env snapshot.Environment, noGaps bool, nowMillis int64) (added, removed []snapshot.SnapshotTableInfo, err error)
	UnpauseSnapshots(ctx context.Context, ids []snapshot.ID, unpausedAtMillis int64) error
	Migrate(ctx context.Context) error
}
