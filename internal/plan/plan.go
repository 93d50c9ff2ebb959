// Package plan constructs a Plan from a proposed model set and a target
// environment, per spec §4.4: diffing current state vs. the proposal,
// classifying changes, and exposing the work set the PlanEvaluator will
// execute.
package plan

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"

	"github.com/untoldecay/modeldag/internal/fingerprint"
	"github.com/untoldecay/modeldag/internal/model"
	"github.com/untoldecay/modeldag/internal/modelerr"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state"
)

// Input is the caller-supplied plan request, per spec §4.4.
type Input struct {
	Models              []model.Model
	TargetEnvironment   string
	Start               *int64
	End                 *int64
	Restatements        []string
	IsDev               bool
	NoGaps              bool
	SkipBackfill        bool
	ForwardOnly         bool
}

// Plan is the proposed change set against a target environment.
type Plan struct {
	// RequestID is a fresh opaque identifier generated once per Build,
	// for tracing and idempotency at external orchestration boundaries
	// (spec §6, "Identity of a plan").
	RequestID string

	Environment      snapshot.Environment
	NewSnapshots     []snapshot.Snapshot
	Snapshots        []snapshot.Snapshot
	Restatements     []string
	RequiresBackfill bool
	NoGaps           bool
	IsDev            bool
	Start            int64
	End              *int64
}

// Build constructs and eagerly validates a Plan.
func Build(ctx context.Context, store state.Store, in Input, nowMillis int64) (*Plan, error) {
	if in.TargetEnvironment == "" {
		return nil, modelerr.ConfigError("target environment name is required")
	}

	byName := make(map[string]model.Model, len(in.Models))
	for _, m := range in.Models {
		byName[m.Name] = m
	}

	order, err := topoSort(in.Models)
	if err != nil {
		return nil, err
	}

	prevEnv, err := store.GetEnvironment(ctx, in.TargetEnvironment)
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "build plan: load environment")
	}

	dataHashes := make(map[string]string, len(in.Models))
	snapshots := make([]snapshot.Snapshot, 0, len(in.Models))
	var newSnapshots []snapshot.Snapshot

	for _, name := range order {
		m := byName[name]

		parentIDs := make([]snapshot.ID, 0, len(m.Parents))
		for _, p := range m.Parents {
			if _, ok := byName[p]; !ok {
				if existing, err := store.GetSnapshotsByModels(ctx, p); err != nil {
					return nil, modelerr.StateErrorWrap(err, "build plan: resolve parent %q", p)
				} else if len(existing) == 0 {
					return nil, modelerr.ConfigError("model %q references unresolvable parent %q", m.Name, p)
				}
			}
		}

		fp := fingerprint.Compute(m, dataHashes)
		dataHashes[m.Name] = fp.DataHash

		prior, err := mostRecent(ctx, store, m.Name)
		if err != nil {
			return nil, err
		}

		var priorFP *fingerprint.Fingerprint
		var priorVersion string
		var changedParents []string
		if prior != nil {
			priorFP = &prior.Fingerprint
			priorVersion = prior.Version
			changedParents = changedParentsOf(m, prior, dataHashes)
		}
		category := fingerprint.Classify(m, fp, priorFP, changedParents)
		if in.ForwardOnly {
			category = fingerprint.ForwardOnly
		}
		version := snapshot.NextVersion(category, fp, priorVersion)

		id := snapshot.ID{Name: m.Name, Fingerprint: fp}
		exists, err := store.SnapshotsExist(ctx, []snapshot.ID{id})
		if err != nil {
			return nil, modelerr.StateErrorWrap(err, "build plan: snapshots_exist")
		}

		for _, p := range m.Parents {
			parentIDs = append(parentIDs, snapshot.ID{Name: p, Fingerprint: fingerprint.Fingerprint{DataHash: dataHashes[p]}})
		}

		snap := snapshot.Snapshot{
			Name:            m.Name,
			Fingerprint:     fp,
			Version:         version,
			Parents:         parentIDs,
			Kind:            m.Kind,
			ChangeCategory:  category,
			TTLMillis:       defaultTTLMillis,
			StartDate:       m.StartDate,
			CreatedTS:       nowMillis,
			RenderedSQLText: m.RenderedSQL,
			Schema:          m.Schema,
		}
		if !exists[id] {
			paused := nowMillis
			snap.PausedTS = &paused
			newSnapshots = append(newSnapshots, snap)
		}
		snapshots = append(snapshots, snap)
	}

	if len(in.Restatements) > 0 {
		want := make(map[string]bool, len(in.Restatements))
		for _, r := range in.Restatements {
			want[r] = true
		}
		found := false
		for _, s := range snapshots {
			if want[s.Name] {
				found = true
				break
			}
		}
		if !found {
			return nil, modelerr.ConfigError("restatements %v do not intersect the proposed model set", in.Restatements)
		}
	}

	env := buildEnvironment(in, snapshots, prevEnv, nowMillis)

	requiresBackfill := !in.SkipBackfill && (len(in.Restatements) > 0 || anyChanged(snapshots))

	start := int64(0)
	if in.Start != nil {
		start = *in.Start
	}

	return &Plan{
		RequestID:        newRequestID(),
		Environment:      env,
		NewSnapshots:     newSnapshots,
		Snapshots:        snapshots,
		Restatements:     in.Restatements,
		RequiresBackfill: requiresBackfill,
		NoGaps:           in.NoGaps,
		IsDev:            in.IsDev,
		Start:            start,
		End:              in.End,
	}, nil
}

const defaultTTLMillis = 7 * 24 * 60 * 60 * 1000 // 7 days, per the teacher's own tombstone TTL default

func anyChanged(snapshots []snapshot.Snapshot) bool {
	for _, s := range snapshots {
		if s.ChangeCategory != fingerprint.NoChange {
			return true
		}
	}
	return false
}

func buildEnvironment(in Input, snapshots []snapshot.Snapshot, prev *snapshot.Environment, nowMillis int64) snapshot.Environment {
	infos := make([]snapshot.SnapshotTableInfo, 0, len(snapshots))
	for _, s := range snapshots {
		infos = append(infos, snapshot.SnapshotTableInfo{
			Name:              s.Name,
			Version:           s.Version,
			PhysicalTableName: s.PhysicalTableName(),
			Fingerprint:       s.Fingerprint,
		})
	}
	var start int64
	if in.Start != nil {
		start = *in.Start
	} else if prev != nil {
		start = prev.StartAt
	}
	env := snapshot.Environment{
		Name:      in.TargetEnvironment,
		Snapshots: infos,
		StartAt:   start,
		EndAt:     in.End,
	}
	if prev != nil {
		env.PreviousPlanID = prev.PlanID
	}
	if in.End != nil {
		exp := nowMillis + devTTLMillis
		env.ExpirationTS = &exp
	}
	return env
}

const devTTLMillis = 7 * 24 * 60 * 60 * 1000

func mostRecent(ctx context.Context, store state.Store, name string) (*snapshot.Snapshot, error) {
	existing, err := store.GetSnapshotsByModels(ctx, name)
	if err != nil {
		return nil, modelerr.StateErrorWrap(err, "build plan: load prior snapshots for %q", name)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	best := existing[0]
	for _, s := range existing[1:] {
		if s.CreatedTS > best.CreatedTS {
			best = s
		}
	}
	return &best, nil
}

// changedParentsOf returns the names of m's parents whose current
// data_hash differs from the one recorded on prior's Parents list, per
// the indirect-change detection rule in spec §4.1.
func changedParentsOf(m model.Model, prior *snapshot.Snapshot, dataHashes map[string]string) []string {
	priorParentHash := make(map[string]string, len(prior.Parents))
	for _, p := range prior.Parents {
		priorParentHash[p.Name] = p.Fingerprint.DataHash
	}
	var changed []string
	for _, p := range m.Parents {
		if priorParentHash[p] != dataHashes[p] {
			changed = append(changed, p)
		}
	}
	return changed
}

func topoSort(models []model.Model) ([]string, error) {
	byName := make(map[string]model.Model, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}
	var order []string
	visitState := make(map[string]int) // 0=unvisited, 1=visiting, 2=done
	var visit func(name string) error
	visit = func(name string) error {
		m, ok := byName[name]
		if !ok {
			return nil // external parent, resolved against the state store separately
		}
		switch visitState[name] {
		case 1:
			return modelerr.ConfigError("cycle detected in model dependency graph at %q", name)
		case 2:
			return nil
		}
		visitState[name] = 1
		parents := append([]string(nil), m.Parents...)
		sort.Strings(parents)
		for _, p := range parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		visitState[name] = 2
		order = append(order, name)
		return nil
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "plan_" + hex.EncodeToString(b)
}
