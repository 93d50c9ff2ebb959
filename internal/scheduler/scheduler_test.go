package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/untoldecay/modeldag/internal/fingerprint"
	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state/memstate"
)

// fakeEvaluator records every batch it's asked to evaluate and can be
// configured to fail on a specific snapshot name.
type fakeEvaluator struct {
	mu       sync.Mutex
	calls    []NodeKey
	failName string
}

func (f *fakeEvaluator) Create(context.Context, []snapshot.Snapshot, map[snapshot.ID]snapshot.Snapshot) error {
	return nil
}

func (f *fakeEvaluator) Evaluate(_ context.Context, snap snapshot.Snapshot, start, end, latest int64, _ map[snapshot.ID]snapshot.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, NodeKey{ID: snap.ID(), Start: start, End: end})
	if snap.Name == f.failName {
		return errFake
	}
	return nil
}

func (f *fakeEvaluator) Promote(context.Context, []snapshot.SnapshotTableInfo, string, bool) error { return nil }
func (f *fakeEvaluator) Demote(context.Context, []snapshot.SnapshotTableInfo, string) error         { return nil }
func (f *fakeEvaluator) Migrate(context.Context, []snapshot.SnapshotTableInfo) error                { return nil }

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "fake evaluation failure" }

func snapshotOf(t *testing.T, name string, parents []string, kind model.Kind) snapshot.Snapshot {
	t.Helper()
	parentIDs := make([]snapshot.ID, 0, len(parents))
	for _, p := range parents {
		parentIDs = append(parentIDs, snapshot.ID{Name: p, Fingerprint: fingerprint.Fingerprint{DataHash: "dh_" + p}})
	}
	fp := fingerprint.Fingerprint{DataHash: "dh_" + name, MetadataHash: "mh_" + name}
	return snapshot.Snapshot{
		Name:        name,
		Fingerprint: fp,
		Version:     fp.DataHash,
		Parents:     parentIDs,
		Kind:        kind,
	}
}

func newMemStore(t *testing.T) *memstate.Store {
	t.Helper()
	return memstate.New(snapshot.Versions{SchemaVersion: 1, ParserVersion: "v1"})
}

func pushAll(t *testing.T, store *memstate.Store, snaps ...snapshot.Snapshot) {
	t.Helper()
	if err := store.PushSnapshots(context.Background(), snaps); err != nil {
		t.Fatalf("push snapshots: %v", err)
	}
}

func TestRunExecutesSingleFullSnapshot(t *testing.T) {
	store := newMemStore(t)
	snap := snapshotOf(t, "raw", nil, model.Full{})
	pushAll(t, store, snap)

	eval := &fakeEvaluator{}
	s := New([]snapshot.Snapshot{snap}, store, eval, 2, false, nil)

	ok, results := s.Run(context.Background(), "prod", 0, 1000)
	if !ok {
		t.Fatalf("expected success, results: %+v", results)
	}
	if len(eval.calls) != 1 {
		t.Fatalf("expected exactly one batch, got %d: %+v", len(eval.calls), eval.calls)
	}
}

func TestRunRespectsDependencyOrder(t *testing.T) {
	store := newMemStore(t)
	parent := snapshotOf(t, "parent", nil, model.Full{})
	child := snapshotOf(t, "child", []string{"parent"}, model.Full{})
	pushAll(t, store, parent, child)

	eval := &fakeEvaluator{}
	s := New([]snapshot.Snapshot{parent, child}, store, eval, 4, false, nil)

	ok, _ := s.Run(context.Background(), "prod", 0, 1000)
	if !ok {
		t.Fatalf("expected success")
	}
	if len(eval.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(eval.calls))
	}
	if eval.calls[0].ID.Name != "parent" || eval.calls[1].ID.Name != "child" {
		t.Fatalf("expected parent before child, got %+v", eval.calls)
	}
}

func TestRunSkipsDependentsOfFailedNode(t *testing.T) {
	store := newMemStore(t)
	parent := snapshotOf(t, "parent", nil, model.Full{})
	child := snapshotOf(t, "child", []string{"parent"}, model.Full{})
	pushAll(t, store, parent, child)

	eval := &fakeEvaluator{failName: "parent"}
	s := New([]snapshot.Snapshot{parent, child}, store, eval, 4, false, nil)

	ok, results := s.Run(context.Background(), "prod", 0, 1000)
	if ok {
		t.Fatalf("expected overall failure")
	}
	var sawSkipped bool
	for key, r := range results {
		if key.ID.Name == "child" && r.Status == Skipped {
			sawSkipped = true
		}
	}
	if !sawSkipped {
		t.Fatalf("expected child node to be skipped, got %+v", results)
	}
}

func TestRunSplitsIncrementalIntoBatches(t *testing.T) {
	store := newMemStore(t)
	snap := snapshotOf(t, "events", nil, model.IncrementalByTime{TimeColumn: "ts", CronExpr: "@hourly"})
	pushAll(t, store, snap)

	eval := &fakeEvaluator{}
	s := New([]snapshot.Snapshot{snap}, store, eval, 4, false, nil)

	const hourMS = int64(60 * 60 * 1000)
	ok, _ := s.Run(context.Background(), "prod", 0, 3*hourMS)
	if !ok {
		t.Fatalf("expected success")
	}
	if len(eval.calls) != 3 {
		t.Fatalf("expected 3 hourly batches, got %d: %+v", len(eval.calls), eval.calls)
	}
}

func TestRunSkipsAlreadyCoveredIntervals(t *testing.T) {
	store := newMemStore(t)
	snap := snapshotOf(t, "full_table", nil, model.Full{})
	pushAll(t, store, snap)
	if err := store.AddInterval(context.Background(), snap.ID(), 0, 1000, false); err != nil {
		t.Fatalf("seed interval: %v", err)
	}

	eval := &fakeEvaluator{}
	s := New([]snapshot.Snapshot{snap}, store, eval, 2, false, nil)

	ok, _ := s.Run(context.Background(), "prod", 0, 1000)
	if !ok {
		t.Fatalf("expected success")
	}
	if len(eval.calls) != 0 {
		t.Fatalf("expected no batches for already-covered interval, got %d", len(eval.calls))
	}
}

func TestRunReturnsTrueForEmptySnapshotSet(t *testing.T) {
	store := newMemStore(t)
	eval := &fakeEvaluator{}
	s := New(nil, store, eval, 2, false, nil)

	ok, results := s.Run(context.Background(), "prod", 0, 1000)
	if !ok || len(results) != 0 {
		t.Fatalf("expected trivially successful empty run, got ok=%v results=%+v", ok, results)
	}
}
