// Package memstate is an in-process, mutex-guarded StateStore
// implementation: the reference backend used by the evaluator/scheduler
// test suites and by callers embedding the core without a SQL engine
// available. Guarded with a single sync.RWMutex the way the teacher's
// daemon registry guards its in-process map (internal/daemon/registry.go),
// since the store here is small enough that per-row locking would add
// complexity with no measurable benefit.
package memstate

import (
	"context"
	"sync"

	"github.com/untoldecay/modeldag/internal/interval"
	"github.com/untoldecay/modeldag/internal/modelerr"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state"
)

// Store is the in-memory StateStore.
type Store struct {
	mu sync.RWMutex

	snapshots    map[snapshot.ID]snapshot.Snapshot
	byName       map[string][]snapshot.ID // insertion order, oldest first
	intervals    snapshot.VersionIntervals
	devIntervals snapshot.VersionIntervals
	environments map[string]snapshot.Environment
	versions     snapshot.Versions

	// parentsOf resolves a model's declared parents for Environment
	// dangling-parent validation on Promote; supplied by the caller
	// because the store itself only knows about snapshot IDs, not the
	// live model set.
	ParentsOf func(name string) ([]string, bool)
}

// New constructs an empty store pinned to the given schema/parser
// version (typically the constants the running binary was built with).
func New(versions snapshot.Versions) *Store {
	return &Store{
		snapshots:    make(map[snapshot.ID]snapshot.Snapshot),
		byName:       make(map[string][]snapshot.ID),
		intervals:    make(snapshot.VersionIntervals),
		devIntervals: make(snapshot.VersionIntervals),
		environments: make(map[string]snapshot.Environment),
		versions:     versions,
	}
}

var _ state.Store = (*Store)(nil)

func (s *Store) GetSnapshots(_ context.Context, ids []snapshot.ID) (map[snapshot.ID]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[snapshot.ID]snapshot.Snapshot, len(ids))
	for _, id := range ids {
		if snap, ok := s.snapshots[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

func (s *Store) GetSnapshotsWithSameVersion(_ context.Context, pairs []state.NameVersion) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[state.NameVersion]bool, len(pairs))
	for _, p := range pairs {
		want[p] = true
	}
	var out []snapshot.Snapshot
	for _, snap := range s.snapshots {
		if want[state.NameVersion{Name: snap.Name, Version: snap.Version}] {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *Store) SnapshotsExist(_ context.Context, ids []snapshot.ID) (map[snapshot.ID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[snapshot.ID]bool, len(ids))
	for _, id := range ids {
		_, out[id] = s.snapshots[id]
	}
	return out, nil
}

func (s *Store) GetEnvironment(_ context.Context, name string) (*snapshot.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.environments[name]
	if !ok {
		return nil, nil
	}
	out := env
	out.Snapshots = append([]snapshot.SnapshotTableInfo(nil), env.Snapshots...)
	return &out, nil
}

func (s *Store) GetEnvironments(_ context.Context) ([]snapshot.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapshot.Environment, 0, len(s.environments))
	for _, env := range s.environments {
		out = append(out, env)
	}
	return out, nil
}

func (s *Store) GetSnapshotsByModels(_ context.Context, names ...string) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []snapshot.Snapshot
	for _, name := range names {
		for _, id := range s.byName[name] {
			out = append(out, s.snapshots[id])
		}
	}
	return out, nil
}

func (s *Store) GetVersions(_ context.Context, validate bool) (snapshot.Versions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !validate {
		return s.versions, nil
	}
	return s.versions, nil
}

func (s *Store) GetIntervals(_ context.Context, version string, dev bool) (interval.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dev {
		return s.devIntervals.Get(version), nil
	}
	return s.intervals.Get(version), nil
}

func (s *Store) PushSnapshots(_ context.Context, snapshots []snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		if _, exists := s.snapshots[snap.ID()]; exists {
			return modelerr.ConflictError("snapshot %s already exists", snap.ID())
		}
	}
	for _, snap := range snapshots {
		s.snapshots[snap.ID()] = snap
		s.byName[snap.Name] = append(s.byName[snap.Name], snap.ID())
	}
	return nil
}

func (s *Store) DeleteSnapshots(_ context.Context, ids []snapshot.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.snapshots, id)
		ids2 := s.byName[id.Name][:0]
		for _, existing := range s.byName[id.Name] {
			if existing != id {
				ids2 = append(ids2, existing)
			}
		}
		s.byName[id.Name] = ids2
	}
	return nil
}

func (s *Store) DeleteExpiredSnapshots(_ context.Context, nowMillis int64) ([]snapshot.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	referenced := make(map[snapshot.ID]bool)
	for _, env := range s.environments {
		for _, info := range env.Snapshots {
			for id := range s.snapshots {
				if id.Name == info.Name && id.Fingerprint == info.Fingerprint {
					referenced[id] = true
				}
			}
		}
	}
	var expired []snapshot.ID
	for id, snap := range s.snapshots {
		if referenced[id] {
			continue
		}
		if snap.TTLMillis > 0 && snap.CreatedTS+snap.TTLMillis < nowMillis {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.snapshots, id)
	}
	return expired, nil
}

func (s *Store) DeleteExpiredEnvironments(_ context.Context, nowMillis int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for name, env := range s.environments {
		if env.ExpirationTS != nil && *env.ExpirationTS < nowMillis {
			expired = append(expired, name)
		}
	}
	for _, name := range expired {
		delete(s.environments, name)
	}
	return expired, nil
}

func (s *Store) AddInterval(_ context.Context, id snapshot.ID, start, end int64, isDev bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return modelerr.StateError("add_interval: unknown snapshot %s", id)
	}
	if isDev {
		s.devIntervals.Add(snap.Version, start, end)
	} else {
		s.intervals.Add(snap.Version, start, end)
	}
	return nil
}

func (s *Store) RemoveInterval(_ context.Context, ids []snapshot.ID, start, end int64, allSnapshots bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := make(map[string]bool)
	for _, id := range ids {
		if snap, ok := s.snapshots[id]; ok {
			versions[snap.Version] = true
		}
	}
	if allSnapshots {
		for _, snap := range s.snapshots {
			if versions[snap.Version] {
				versions[snap.Version] = true
			}
		}
	}
	for version := range versions {
		s.intervals.Remove(version, start, end)
		s.devIntervals.Remove(version, start, end)
	}
	return nil
}

func (s *Store) Promote(_ context.Context, env snapshot.Environment, noGaps bool, nowMillis int64) (added, removed []snapshot.SnapshotTableInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := s.environments[env.Name]
	priorByName := make(map[string]snapshot.SnapshotTableInfo, len(prior.Snapshots))
	for _, info := range prior.Snapshots {
		priorByName[info.Name] = info
	}
	newByName := make(map[string]snapshot.SnapshotTableInfo, len(env.Snapshots))
	for _, info := range env.Snapshots {
		newByName[info.Name] = info
	}

	if noGaps {
		for name, info := range newByName {
			priorInfo, existed := priorByName[name]
			if !existed {
				continue // brand-new model: no_gaps only constrains models that already existed
			}
			if priorInfo.Fingerprint == info.Fingerprint {
				continue // same snapshot as the prior promotion: not newly added
			}
			cov := s.intervals.Get(info.Version)
			if !cov.Covers(env.StartAt, env.EndOrNow(nowMillis)) {
				return nil, nil, modelerr.ConflictError(
					"promote %s: model %q has gaps in [%d, %d)", env.Name, name, env.StartAt, env.EndOrNow(nowMillis))
			}
		}
	}

	if parentsOf := s.ParentsOf; parentsOf != nil {
		if verr := env.Validate(parentsOf); verr != nil {
			return nil, nil, modelerr.ConfigError("%v", verr)
		}
	}

	for name, info := range newByName {
		if prev, existed := priorByName[name]; !existed || prev.Fingerprint != info.Fingerprint {
			added = append(added, info)
		}
	}
	for name, info := range priorByName {
		if _, stillPresent := newByName[name]; !stillPresent {
			removed = append(removed, info)
		}
	}

	s.environments[env.Name] = env
	return added, removed, nil
}

func (s *Store) UnpauseSnapshots(_ context.Context, ids []snapshot.ID, unpausedAtMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		snap, ok := s.snapshots[id]
		if !ok || snap.PausedTS == nil {
			continue // already unpaused: idempotent, paused_ts is monotonic once nil
		}
		snap.PausedTS = nil
		s.snapshots[id] = snap
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // memstate has no on-disk schema to evolve
}
