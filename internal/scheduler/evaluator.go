package scheduler

import (
	"context"

	"github.com/untoldecay/modeldag/internal/snapshot"
)

// SnapshotEvaluator is the external collaborator that performs physical
// DDL/DML in the warehouse, per spec §6. The core never implements a
// dialect or adapter itself; it only calls through this interface.
type SnapshotEvaluator interface {
	// Create issues DDL for new_snapshots' physical tables; a no-op for
	// any snapshot whose version already has a table from a reused
	// sibling.
	Create(ctx context.Context, newSnapshots []snapshot.Snapshot, allByID map[snapshot.ID]snapshot.Snapshot) error
	// Evaluate computes one batch into snap's physical table. Must be
	// idempotent over overlapping re-invocation of the same interval.
	Evaluate(ctx context.Context, snap snapshot.Snapshot, start, end, latest int64, byID map[snapshot.ID]snapshot.Snapshot) error
	// Promote creates or repoints the per-environment views for infos.
	Promote(ctx context.Context, infos []snapshot.SnapshotTableInfo, environment string, isDev bool) error
	// Demote drops the per-environment views for infos.
	Demote(ctx context.Context, infos []snapshot.SnapshotTableInfo, environment string) error
	// Migrate applies non-breaking schema alterations to reused
	// physical tables.
	Migrate(ctx context.Context, infos []snapshot.SnapshotTableInfo) error
}
