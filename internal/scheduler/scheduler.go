// Package scheduler computes the missing (snapshot, interval) work set
// for a plan's time window, orders it by dependency, and dispatches it to
// a bounded worker pool, per spec §4.6. The DAG's ready queue is mutated
// only under a single mutex held briefly at node completion/dispatch,
// the way spec §5 prescribes and the way the teacher's in-process daemon
// registry guards its own shared map (internal/daemon/registry.go).
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/untoldecay/modeldag/internal/cronstep"
	"github.com/untoldecay/modeldag/internal/interval"
	"github.com/untoldecay/modeldag/internal/modelerr"
	"github.com/untoldecay/modeldag/internal/snapshot"
	"github.com/untoldecay/modeldag/internal/state"
)

// NodeKey identifies one unit of scheduled work: a snapshot and the batch
// interval it will materialize.
type NodeKey struct {
	ID    snapshot.ID
	Start int64
	End   int64
}

// Status is a node's terminal or in-flight state.
type Status int

const (
	Pending Status = iota
	Running
	Succeeded
	Failed
	Skipped
)

// Result is one node's outcome after Run returns.
type Result struct {
	Key    NodeKey
	Status Status
	Err    error
}

// Scheduler computes and executes missing intervals for a snapshot set.
type Scheduler struct {
	Snapshots  []snapshot.Snapshot
	Store      state.Store
	Evaluator  SnapshotEvaluator
	MaxWorkers int
	BatchSize  int // grain units per batch; <=0 means unbounded
	IsDev      bool
	Logger     *slog.Logger
}

// New constructs a Scheduler with sane defaults (MaxWorkers=4 if unset).
func New(snapshots []snapshot.Snapshot, store state.Store, evaluator SnapshotEvaluator, maxWorkers int, isDev bool, logger *slog.Logger) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Snapshots: snapshots, Store: store, Evaluator: evaluator, MaxWorkers: maxWorkers, IsDev: isDev, Logger: logger}
}

type node struct {
	key      NodeKey
	snap     snapshot.Snapshot
	latest   int64
	preds    []*node
	deps     []*node
	pending  int // remaining unsatisfied predecessors
	status   Status
	err      error
}

// Run computes missing intervals over [start, end) for every snapshot in
// the scheduler's set and executes them in dependency order with bounded
// concurrency. Returns false if any node failed or was skipped, or if ctx
// was cancelled before every node completed.
func (s *Scheduler) Run(ctx context.Context, environmentName string, start, end int64) (bool, map[NodeKey]*Result) {
	byID := make(map[snapshot.ID]snapshot.Snapshot, len(s.Snapshots))
	byName := make(map[string]snapshot.Snapshot, len(s.Snapshots))
	for _, snap := range s.Snapshots {
		byID[snap.ID()] = snap
		byName[snap.Name] = snap
	}

	s.Logger.Info("scheduling batches", "environment", environmentName, "start", start, "end", end, "snapshots", len(s.Snapshots))

	earliest := s.earliestStarts(start, byName)

	var nodesByName = make(map[string][]*node)
	var all []*node
	for _, name := range s.topoOrder(byName) {
		snap := byName[name]
		batches, err := s.batchesFor(ctx, snap, earliest[name], end)
		if err != nil {
			s.Logger.Warn("failed to compute missing intervals", "snapshot", snap.ID(), "error", err)
			continue
		}
		var prev *node
		for _, b := range batches {
			n := &node{key: NodeKey{ID: snap.ID(), Start: b.Start, End: b.End}, snap: snap, latest: end}
			all = append(all, n)
			nodesByName[name] = append(nodesByName[name], n)
			if snap.Kind.Incremental() && prev != nil {
				// Batches of a single incremental snapshot execute in
				// ascending start order, per spec §4.6.
				link(prev, n)
			}
			prev = n
		}
	}

	// Cross-snapshot edges: a child's batch depends on every overlapping
	// batch of each of its parents.
	for _, n := range all {
		for _, parentID := range n.snap.Parents {
			for _, pn := range nodesByName[parentID.Name] {
				if overlaps(pn.key, n.key) {
					link(pn, n)
				}
			}
		}
	}
	for _, n := range all {
		n.pending = len(n.preds)
	}

	if len(all) == 0 {
		return true, map[NodeKey]*Result{}
	}

	sched := &run{
		nodes:   all,
		results: make(map[NodeKey]*Result, len(all)),
	}
	sched.mu.L = &sched.m

	for _, n := range all {
		if n.pending == 0 {
			sched.ready = append(sched.ready, n)
		}
	}

	var wg sync.WaitGroup
	workers := s.MaxWorkers
	if workers > len(all) {
		workers = len(all)
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, environmentName, byID, sched)
		}()
	}
	wg.Wait()

	success := true
	for _, n := range all {
		r := &Result{Key: n.key, Status: n.status, Err: n.err}
		sched.mu2.Lock()
		sched.results[n.key] = r
		sched.mu2.Unlock()
		if n.status != Succeeded {
			success = false
		}
	}
	if ctx.Err() != nil {
		success = false
	}
	return success, sched.results
}

// run holds the scheduler's mutable shared state: the ready queue and
// remaining-count, guarded by a single mutex per spec §5.
type run struct {
	m       sync.Mutex
	mu      sync.Cond
	nodes   []*node
	ready   []*node
	results map[NodeKey]*Result
	mu2     sync.Mutex // guards results map writes from multiple workers at drain time
}

func (s *Scheduler) worker(ctx context.Context, environmentName string, byID map[snapshot.ID]snapshot.Snapshot, sched *run) {
	for {
		sched.m.Lock()
		for len(sched.ready) == 0 {
			if sched.allDone() {
				sched.m.Unlock()
				return
			}
			sched.mu.Wait()
		}
		if ctx.Err() != nil {
			// Cooperative cancellation: do not dispatch new work, but
			// let in-flight work (none started under this lock) drain
			// naturally since we never pulled a node.
			sched.m.Unlock()
			return
		}
		n := sched.ready[len(sched.ready)-1]
		sched.ready = sched.ready[:len(sched.ready)-1]
		n.status = Running
		sched.m.Unlock()

		err := s.Evaluator.Evaluate(ctx, n.snap, n.key.Start, n.key.End, n.latest, byID)

		sched.m.Lock()
		if err != nil {
			n.status = Failed
			n.err = modelerr.ExecutionError(err, n.snap.ID().String(), n.key.Start, n.key.End)
			s.Logger.Warn("batch failed", "snapshot", n.snap.ID(), "interval", n.key, "error", err)
			s.failDependents(n, sched)
		} else {
			if werr := s.Store.AddInterval(ctx, n.snap.ID(), n.key.Start, n.key.End, s.IsDev); werr != nil {
				n.status = Failed
				n.err = modelerr.StateErrorWrap(werr, "add_interval")
				s.failDependents(n, sched)
			} else {
				n.status = Succeeded
				s.Logger.Info("batch succeeded", "snapshot", n.snap.ID(), "interval", n.key)
				for _, dep := range n.deps {
					dep.pending--
					if dep.pending == 0 && dep.status == Pending {
						sched.ready = append(sched.ready, dep)
					}
				}
			}
		}
		sched.mu.Broadcast()
		sched.m.Unlock()
	}
}

// failDependents marks every transitive dependent of a failed node as
// Skipped; independent branches are left untouched and keep running.
func (s *Scheduler) failDependents(n *node, sched *run) {
	var stack []*node
	stack = append(stack, n.deps...)
	seen := make(map[*node]bool)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] || cur.status == Succeeded || cur.status == Failed {
			continue
		}
		seen[cur] = true
		if cur.status == Pending || cur.status == Running {
			cur.status = Skipped
		}
		stack = append(stack, cur.deps...)
	}
}

func (sched *run) allDone() bool {
	for _, n := range sched.nodes {
		if n.status == Pending || n.status == Running {
			return false
		}
	}
	return true
}

func link(pred, dep *node) {
	pred.deps = append(pred.deps, dep)
	dep.preds = append(dep.preds, pred)
}

func overlaps(a, b NodeKey) bool {
	return a.Start < b.End && b.Start < a.End
}

// earliestStarts propagates each snapshot's earliest materializable
// instant: max(plan start, its own start_date, or its latest parent's
// earliest), per spec §4.6.
func (s *Scheduler) earliestStarts(planStart int64, byName map[string]snapshot.Snapshot) map[string]int64 {
	earliest := make(map[string]int64, len(byName))
	var visit func(name string) int64
	visit = func(name string) int64 {
		if v, ok := earliest[name]; ok {
			return v
		}
		snap := byName[name]
		e := planStart
		if snap.StartDate != nil && *snap.StartDate > e {
			e = *snap.StartDate
		}
		for _, p := range snap.Parents {
			if _, ok := byName[p.Name]; ok {
				if pe := visit(p.Name); pe > e {
					e = pe
				}
			}
		}
		earliest[name] = e
		return e
	}
	for name := range byName {
		visit(name)
	}
	return earliest
}

func (s *Scheduler) topoOrder(byName map[string]snapshot.Snapshot) []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	order := make([]string, 0, len(names))
	visitState := make(map[string]int)
	var visit func(name string)
	visit = func(name string) {
		if visitState[name] != 0 {
			return
		}
		visitState[name] = 1
		snap := byName[name]
		parents := make([]string, 0, len(snap.Parents))
		for _, p := range snap.Parents {
			parents = append(parents, p.Name)
		}
		sort.Strings(parents)
		for _, p := range parents {
			if _, ok := byName[p]; ok {
				visit(p)
			}
		}
		visitState[name] = 2
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}

// batchesFor computes this snapshot's missing-interval batches over
// [earliestStart, end). Non-incremental kinds get at most one batch per
// run; incremental kinds are grain-aligned and split per BatchSize.
func (s *Scheduler) batchesFor(ctx context.Context, snap snapshot.Snapshot, earliestStart, end int64) ([]interval.Interval, error) {
	coverage, err := s.Store.GetIntervals(ctx, snap.Version, s.IsDev)
	if err != nil {
		return nil, err
	}
	if !snap.Kind.Incremental() {
		if coverage.Covers(earliestStart, end) {
			return nil, nil
		}
		return []interval.Interval{{Start: earliestStart, End: end}}, nil
	}
	grain, err := cronstep.Grain(snap.Kind.Cron())
	if err != nil {
		grain = cronstep.Day
	}
	alignedStart, alignedEnd := interval.AlignOutward(earliestStart, end, grain)
	missing := coverage.Missing(alignedStart, alignedEnd, grain)
	batches := missing.Batches(grain, s.BatchSize)
	return []interval.Interval(batches), nil
}
