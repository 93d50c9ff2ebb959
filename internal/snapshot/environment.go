package snapshot

import "fmt"

// Environment is a named promotion target: a consistent cut of the
// dependency DAG plus the window it is refreshed over.
type Environment struct {
	Name             string
	Snapshots        []SnapshotTableInfo
	StartAt          int64
	EndAt            *int64 // nil => unbounded production
	PlanID           string
	PreviousPlanID   string
	ExpirationTS     *int64 // set for environments with a finite EndAt
}

// IsProduction reports whether this environment has no finite end,
// per spec §3 ("end_at = None ⇒ unbounded production").
func (e Environment) IsProduction() bool { return e.EndAt == nil }

// EndOrNow resolves EndAt for coverage checks, substituting the supplied
// "now" when the environment is unbounded.
func (e Environment) EndOrNow(nowMillis int64) int64 {
	if e.EndAt != nil {
		return *e.EndAt
	}
	return nowMillis
}

// Validate checks the environment invariant: no model name appears twice,
// and no snapshot references a parent absent from the same cut.
//
// parentsOf must return, for a given model name, the parent model names
// declared by the snapshot that backs it in this environment.
func (e Environment) Validate(parentsOf func(name string) ([]string, bool)) error {
	seen := make(map[string]bool, len(e.Snapshots))
	for _, s := range e.Snapshots {
		if seen[s.Name] {
			return fmt.Errorf("environment %q: model %q appears more than once", e.Name, s.Name)
		}
		seen[s.Name] = true
	}
	for _, s := range e.Snapshots {
		parents, ok := parentsOf(s.Name)
		if !ok {
			continue
		}
		for _, p := range parents {
			if !seen[p] {
				return fmt.Errorf("environment %q: model %q has dangling parent %q", e.Name, s.Name, p)
			}
		}
	}
	return nil
}

// Find returns the SnapshotTableInfo for a model name in this
// environment's cut, if present.
func (e Environment) Find(name string) (SnapshotTableInfo, bool) {
	for _, s := range e.Snapshots {
		if s.Name == name {
			return s, true
		}
	}
	return SnapshotTableInfo{}, false
}
