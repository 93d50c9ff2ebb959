package fingerprint

import "github.com/untoldecay/modeldag/internal/model"

// ChangeCategory classifies how a new fingerprint differs from a model's
// most recent prior snapshot, and determines whether child snapshots must
// also be rebuilt.
type ChangeCategory int

const (
	NoChange ChangeCategory = iota
	NonBreaking
	Breaking
	ForwardOnly
	IndirectBreaking
	IndirectNonBreaking
)

func (c ChangeCategory) String() string {
	switch c {
	case NoChange:
		return "NO_CHANGE"
	case NonBreaking:
		return "NON_BREAKING"
	case Breaking:
		return "BREAKING"
	case ForwardOnly:
		return "FORWARD_ONLY"
	case IndirectBreaking:
		return "INDIRECT_BREAKING"
	case IndirectNonBreaking:
		return "INDIRECT_NON_BREAKING"
	default:
		return "UNKNOWN"
	}
}

// ReusesVersion reports whether snapshots of this category inherit their
// predecessor's version (and therefore its physical table), per spec
// §4.1.
func (c ChangeCategory) ReusesVersion() bool {
	switch c {
	case NoChange, NonBreaking, IndirectNonBreaking:
		return true
	default:
		return false
	}
}

// Classify compares a model's newly computed fingerprint against the most
// recent snapshot of the same model (prior == nil for a brand-new model)
// and the set of parent names whose own data_hash changed since that
// prior snapshot was built.
func Classify(m model.Model, next Fingerprint, prior *Fingerprint, changedParents []string) ChangeCategory {
	if prior == nil {
		return Breaking // first snapshot of a model always gets a fresh version
	}
	if next.DataHash == prior.DataHash {
		return NoChange
	}
	if m.ForwardOnly {
		return ForwardOnly
	}
	// A data_hash change with no parent contribution means the model's
	// own SQL/kind/schema changed directly.
	if len(changedParents) == 0 {
		if nonBreakingShape(m) {
			return NonBreaking
		}
		return Breaking
	}
	// Otherwise the change is (at least partly) inherited from a parent.
	if nonBreakingShape(m) {
		return IndirectNonBreaking
	}
	return IndirectBreaking
}

// nonBreakingShape reports whether a data_hash change to this model kind
// can never invalidate already-computed intervals — true for kinds with
// no incremental boundary to violate (column reorders, non-incremental
// kinds). Incremental models are conservatively treated as breaking
// unless the caller marks them ForwardOnly.
func nonBreakingShape(m model.Model) bool {
	return !m.Kind.Incremental()
}
