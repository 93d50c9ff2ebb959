package evaluator

import (
	"context"
	"testing"

	"github.com/untoldecay/modeldag/internal/console"
	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/plan"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state/memstate"
)

type recordingEvaluator struct {
	created  []snapshot.ID
	promoted []string
	demoted  []string
}

func (r *recordingEvaluator) Create(_ context.Context, newSnapshots []snapshot.Snapshot, _ map[snapshot.ID]snapshot.Snapshot) error {
	for _, s := range newSnapshots {
		r.created = append(r.created, s.ID())
	}
	return nil
}

func (r *recordingEvaluator) Evaluate(context.Context, snapshot.Snapshot, int64, int64, int64, map[snapshot.ID]snapshot.Snapshot) error {
	return nil
}

func (r *recordingEvaluator) Promote(_ context.Context, infos []snapshot.SnapshotTableInfo, _ string, _ bool) error {
	for _, i := range infos {
		r.promoted = append(r.promoted, i.Name)
	}
	return nil
}

func (r *recordingEvaluator) Demote(_ context.Context, infos []snapshot.SnapshotTableInfo, _ string) error {
	for _, i := range infos {
		r.demoted = append(r.demoted, i.Name)
	}
	return nil
}

func (r *recordingEvaluator) Migrate(context.Context, []snapshot.SnapshotTableInfo) error { return nil }

func newModel(name string, parents []string, kind model.Kind) model.Model {
	return model.Model{Name: name, RenderedSQL: "select 1 as x", Parents: parents, Kind: kind}
}

func TestEvaluateFirstPlanPushesAndPromotesEverything(t *testing.T) {
	ctx := context.Background()
	store := memstate.New(snapshot.Versions{SchemaVersion: 1, ParserVersion: "v1"})

	models := []model.Model{
		newModel("raw", nil, model.Full{}),
		newModel("marts", []string{"raw"}, model.Full{}),
	}
	p, err := plan.Build(ctx, store, plan.Input{Models: models, TargetEnvironment: "prod"}, 1000)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}

	ev := &recordingEvaluator{}
	pe := New(store, ev, console.Noop{}, 2, 0, nil)
	if err := pe.Evaluate(ctx, p, 5000); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if len(ev.created) != 2 {
		t.Fatalf("expected 2 created snapshots, got %d", len(ev.created))
	}
	if len(ev.promoted) != 2 {
		t.Fatalf("expected 2 promoted models, got %v", ev.promoted)
	}

	env, err := store.GetEnvironment(ctx, "prod")
	if err != nil || env == nil {
		t.Fatalf("expected environment to exist, err=%v", err)
	}
	if len(env.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshots promoted into environment, got %d", len(env.Snapshots))
	}
}

func TestEvaluateSecondPlanWithNoChangesSkipsBackfillAndPush(t *testing.T) {
	ctx := context.Background()
	store := memstate.New(snapshot.Versions{SchemaVersion: 1, ParserVersion: "v1"})
	models := []model.Model{newModel("raw", nil, model.Full{})}

	ev := &recordingEvaluator{}
	pe := New(store, ev, console.Noop{}, 2, 0, nil)

	p1, err := plan.Build(ctx, store, plan.Input{Models: models, TargetEnvironment: "prod"}, 1000)
	if err != nil {
		t.Fatalf("build first plan: %v", err)
	}
	if err := pe.Evaluate(ctx, p1, 5000); err != nil {
		t.Fatalf("evaluate first plan: %v", err)
	}

	p2, err := plan.Build(ctx, store, plan.Input{Models: models, TargetEnvironment: "prod"}, 2000)
	if err != nil {
		t.Fatalf("build second plan: %v", err)
	}
	if len(p2.NewSnapshots) != 0 {
		t.Fatalf("expected no new snapshots on unchanged re-plan, got %d", len(p2.NewSnapshots))
	}
	if p2.RequiresBackfill {
		t.Fatalf("expected unchanged re-plan to not require backfill")
	}
	if err := pe.Evaluate(ctx, p2, 6000); err != nil {
		t.Fatalf("evaluate second plan: %v", err)
	}
}

func TestEvaluatePromoteUnpausesAddedSnapshotsInProduction(t *testing.T) {
	ctx := context.Background()
	store := memstate.New(snapshot.Versions{SchemaVersion: 1, ParserVersion: "v1"})
	models := []model.Model{
		newModel("raw", nil, model.Full{}),
		newModel("marts", []string{"raw"}, model.Full{}),
	}
	p, err := plan.Build(ctx, store, plan.Input{Models: models, TargetEnvironment: "prod"}, 1000)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	for _, s := range p.NewSnapshots {
		if s.PausedTS == nil {
			t.Fatalf("expected new snapshot %s to start paused", s.Name)
		}
	}

	ev := &recordingEvaluator{}
	pe := New(store, ev, console.Noop{}, 2, 0, nil)
	if err := pe.Evaluate(ctx, p, 5000); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	ids := make([]snapshot.ID, 0, len(p.NewSnapshots))
	for _, s := range p.NewSnapshots {
		ids = append(ids, s.ID())
	}
	pushed, err := store.GetSnapshots(ctx, ids)
	if err != nil {
		t.Fatalf("get snapshots: %v", err)
	}
	for _, s := range pushed {
		if s.PausedTS != nil {
			t.Fatalf("expected snapshot %s to be unpaused after promoting to production, got paused_ts=%v", s.Name, *s.PausedTS)
		}
	}
}

func TestEvaluateDemotesRemovedModel(t *testing.T) {
	ctx := context.Background()
	store := memstate.New(snapshot.Versions{SchemaVersion: 1, ParserVersion: "v1"})
	ev := &recordingEvaluator{}
	pe := New(store, ev, console.Noop{}, 2, 0, nil)

	p1, err := plan.Build(ctx, store, plan.Input{
		Models:            []model.Model{newModel("raw", nil, model.Full{}), newModel("stale", nil, model.Full{})},
		TargetEnvironment: "prod",
	}, 1000)
	if err != nil {
		t.Fatalf("build first plan: %v", err)
	}
	if err := pe.Evaluate(ctx, p1, 5000); err != nil {
		t.Fatalf("evaluate first plan: %v", err)
	}

	p2, err := plan.Build(ctx, store, plan.Input{
		Models:            []model.Model{newModel("raw", nil, model.Full{})},
		TargetEnvironment: "prod",
	}, 2000)
	if err != nil {
		t.Fatalf("build second plan: %v", err)
	}
	if err := pe.Evaluate(ctx, p2, 6000); err != nil {
		t.Fatalf("evaluate second plan: %v", err)
	}
	if len(ev.demoted) != 1 || ev.demoted[0] != "stale" {
		t.Fatalf("expected 'stale' to be demoted, got %v", ev.demoted)
	}
}
