package snapshot

import (
	"testing"

	"github.com/untoldecay/modeldag/internal/fingerprint"
)

func TestNextVersionReusesPriorOnNoChange(t *testing.T) {
	got := NextVersion(fingerprint.NoChange, fingerprint.Fingerprint{DataHash: "abcdef012345"}, "prior-version")
	if got != "prior-version" {
		t.Errorf("NextVersion(NoChange) = %q, want %q", got, "prior-version")
	}
}

func TestNextVersionMintsOnBreaking(t *testing.T) {
	got := NextVersion(fingerprint.Breaking, fingerprint.Fingerprint{DataHash: "abcdef012345"}, "prior-version")
	if got != "abcdef012345" {
		t.Errorf("NextVersion(Breaking) = %q, want the data_hash prefix", got)
	}
}

func TestNextVersionMintsWhenNoPriorVersion(t *testing.T) {
	got := NextVersion(fingerprint.NoChange, fingerprint.Fingerprint{DataHash: "abcdef012345"}, "")
	if got != "abcdef012345" {
		t.Errorf("NextVersion(no prior) = %q, want a freshly minted version", got)
	}
}

func TestPhysicalTableNameStableAcrossFingerprints(t *testing.T) {
	a := Snapshot{Name: "my.model", Version: "v1"}
	b := Snapshot{Name: "my.model", Version: "v1", Fingerprint: fingerprint.Fingerprint{DataHash: "different"}}
	if a.PhysicalTableName() != b.PhysicalTableName() {
		t.Error("expected siblings sharing a version to share a physical table name")
	}
}

func TestPhysicalTableNameSanitizesName(t *testing.T) {
	s := Snapshot{Name: "schema.my-model", Version: "v1"}
	got := s.PhysicalTableName()
	want := "__modeldag_schema_my_model__v1"
	if got != want {
		t.Errorf("PhysicalTableName() = %q, want %q", got, want)
	}
}

func TestIsUnpaused(t *testing.T) {
	paused := int64(100)
	if (Snapshot{PausedTS: &paused}).IsUnpaused() {
		t.Error("expected a non-nil PausedTS to report paused")
	}
	if !(Snapshot{}).IsUnpaused() {
		t.Error("expected a nil PausedTS to report unpaused")
	}
}

func TestVersionIntervalsAddAndRemove(t *testing.T) {
	vi := VersionIntervals{}
	vi.Add("v1", 0, 100)
	vi.Add("v1", 100, 200)
	if got := vi.Get("v1"); len(got) != 1 || got[0].Start != 0 || got[0].End != 200 {
		t.Errorf("Get(v1) after adds = %+v, want a single merged [0,200) interval", got)
	}
	vi.Remove("v1", 50, 150)
	got := vi.Get("v1")
	if len(got) != 2 {
		t.Fatalf("Get(v1) after remove = %+v, want two remaining intervals", got)
	}
	if got[0].Start != 0 || got[0].End != 50 || got[1].Start != 150 || got[1].End != 200 {
		t.Errorf("Get(v1) after remove = %+v, want [0,50) and [150,200)", got)
	}
}

func TestVersionIntervalsGetUntracked(t *testing.T) {
	vi := VersionIntervals{}
	if got := vi.Get("missing"); len(got) != 0 {
		t.Errorf("Get(missing) = %+v, want empty", got)
	}
}
