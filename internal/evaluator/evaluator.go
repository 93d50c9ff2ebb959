// Package evaluator implements the PlanEvaluator: the orchestrator that
// takes a built Plan and executes it against a state.Store and a
// scheduler.SnapshotEvaluator in four phases — Push, Restate, Backfill,
// Promote — per spec §4.5. The core never talks to a warehouse directly;
// every physical side effect goes through the SnapshotEvaluator interface.
package evaluator

import (
	"context"
	"log/slog"

	"github.com/untoldecay/modeldag/internal/console"
	"github.com/untoldecay/modeldag/internal/modelerr"
	"github.com/untoldecay/modeldag/internal/plan"
	"github.com/untoldecay/modeldag/internal/scheduler"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state"
)

// PlanEvaluator executes a Plan's four phases in order.
type PlanEvaluator struct {
	Store      state.Store
	Evaluator  scheduler.SnapshotEvaluator
	Console    console.Console
	MaxWorkers int
	BatchSize  int
	Logger     *slog.Logger
}

// New constructs a PlanEvaluator with sane defaults.
func New(store state.Store, ev scheduler.SnapshotEvaluator, con console.Console, maxWorkers, batchSize int, logger *slog.Logger) *PlanEvaluator {
	if con == nil {
		con = console.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanEvaluator{Store: store, Evaluator: ev, Console: con, MaxWorkers: maxWorkers, BatchSize: batchSize, Logger: logger}
}

// Evaluate runs Push, Restate (if requested), Backfill (unless skipped),
// and Promote against the target environment, returning as soon as any
// phase fails. nowMillis is the caller's current-time reading, used to
// bound an unbounded production environment's restate/backfill/no_gaps
// window and passed as the unpause time to UnpauseSnapshots; it is never
// derived from the plan itself. Each phase is atomic with respect to readers at the
// state-store boundary; Evaluate itself is not transactional across
// phases, so a failure partway through leaves the store at the last
// phase's committed result — the same resumability spec §4.5 describes
// (a retried Evaluate call with an unchanged Plan is idempotent, since
// Push/Restate/AddInterval/Promote are each individually idempotent).
func (e *PlanEvaluator) Evaluate(ctx context.Context, p *plan.Plan, nowMillis int64) error {
	e.Console.LogStatusUpdate("evaluating plan " + p.RequestID)

	if err := e.push(ctx, p); err != nil {
		return err
	}

	if len(p.Restatements) > 0 {
		if err := e.restate(ctx, p, nowMillis); err != nil {
			return err
		}
	}

	if p.RequiresBackfill {
		ok, results := e.backfill(ctx, p, nowMillis)
		if !ok {
			return failureFromResults(results)
		}
	}

	if err := e.promote(ctx, p, nowMillis); err != nil {
		return err
	}

	e.Console.LogSuccess("plan " + p.RequestID + " applied to " + p.Environment.Name)
	return nil
}

func (e *PlanEvaluator) push(ctx context.Context, p *plan.Plan) error {
	if len(p.NewSnapshots) == 0 {
		return nil
	}
	e.Console.LogStatusUpdate("pushing new snapshots")
	if err := e.Evaluator.Create(ctx, p.NewSnapshots, byID(p.Snapshots)); err != nil {
		return modelerr.ExecutionError(err, "<create>", 0, 0)
	}
	// Skip snapshots an earlier attempt already pushed, so a retried
	// Evaluate with the same Plan does not trip the duplicate-id conflict.
	var toPush []snapshot.Snapshot
	for _, s := range p.NewSnapshots {
		exists, err := e.Store.SnapshotsExist(ctx, []snapshot.ID{s.ID()})
		if err != nil {
			return modelerr.StateErrorWrap(err, "push snapshots: snapshots_exist")
		}
		if !exists[s.ID()] {
			toPush = append(toPush, s)
		}
	}
	if err := e.Store.PushSnapshots(ctx, toPush); err != nil {
		return modelerr.StateErrorWrap(err, "push snapshots")
	}
	return nil
}

// restate invalidates prior coverage for the requested model names over
// the plan's window, forcing the Backfill phase to recompute them, per
// spec §4.5's RESTATE_MODEL semantics.
func (e *PlanEvaluator) restate(ctx context.Context, p *plan.Plan, nowMillis int64) error {
	want := make(map[string]bool, len(p.Restatements))
	for _, r := range p.Restatements {
		want[r] = true
	}
	var ids []snapshot.ID
	for _, s := range p.Snapshots {
		if want[s.Name] {
			ids = append(ids, s.ID())
		}
	}
	if len(ids) == 0 {
		return nil
	}
	end := p.Environment.EndOrNow(nowMillis)
	e.Console.LogStatusUpdate("restating models")
	if err := e.Store.RemoveInterval(ctx, ids, p.Start, end, !p.IsDev); err != nil {
		return modelerr.StateErrorWrap(err, "restate models %v", p.Restatements)
	}
	return nil
}

func (e *PlanEvaluator) backfill(ctx context.Context, p *plan.Plan, nowMillis int64) (bool, map[scheduler.NodeKey]*scheduler.Result) {
	end := p.Environment.EndOrNow(nowMillis)
	sched := scheduler.New(p.Snapshots, e.Store, e.Evaluator, e.MaxWorkers, p.IsDev, e.Logger)
	sched.BatchSize = e.BatchSize
	e.Console.StartPromotionProgress(p.Environment.Name, len(p.Snapshots))
	ok, results := sched.Run(ctx, p.Environment.Name, p.Start, end)
	e.Console.StopPromotionProgress(ok)
	return ok, results
}

func (e *PlanEvaluator) promote(ctx context.Context, p *plan.Plan, nowMillis int64) error {
	e.Console.LogStatusUpdate("promoting " + p.Environment.Name)
	added, removed, err := e.Store.Promote(ctx, p.Environment, p.NoGaps, nowMillis)
	if err != nil {
		return err // already a modelerr.ConflictError or similar from the store
	}

	if p.Environment.IsProduction() {
		if !p.IsDev {
			if err := e.Evaluator.Migrate(ctx, p.Environment.Snapshots); err != nil {
				return modelerr.ExecutionError(err, "<migrate>", 0, 0)
			}
		}
		if len(added) > 0 {
			ids := make([]snapshot.ID, 0, len(added))
			for _, info := range added {
				ids = append(ids, snapshot.ID{Name: info.Name, Fingerprint: info.Fingerprint})
			}
			if err := e.Store.UnpauseSnapshots(ctx, ids, nowMillis); err != nil {
				return modelerr.StateErrorWrap(err, "unpause snapshots")
			}
		}
	}

	if len(added) > 0 {
		if err := e.Evaluator.Promote(ctx, added, p.Environment.Name, p.IsDev); err != nil {
			return modelerr.ExecutionError(err, "<promote>", 0, 0)
		}
	}
	if len(removed) > 0 {
		if err := e.Evaluator.Demote(ctx, removed, p.Environment.Name); err != nil {
			return modelerr.ExecutionError(err, "<demote>", 0, 0)
		}
	}
	return nil
}

func byID(snapshots []snapshot.Snapshot) map[snapshot.ID]snapshot.Snapshot {
	out := make(map[snapshot.ID]snapshot.Snapshot, len(snapshots))
	for _, s := range snapshots {
		out[s.ID()] = s
	}
	return out
}

func failureFromResults(results map[scheduler.NodeKey]*scheduler.Result) error {
	for key, r := range results {
		if r.Status == scheduler.Failed {
			return modelerr.ExecutionError(r.Err, key.ID.String(), key.Start, key.End)
		}
	}
	return modelerr.ExecutionError(nil, "<backfill>", 0, 0)
}
