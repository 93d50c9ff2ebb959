package fingerprint

import (
	"testing"

	"github.com/untoldecay/modeldag/internal/model"
)

func fullModel(name, sql string, parents ...string) model.Model {
	return model.Model{Name: name, RenderedSQL: sql, Kind: model.Full{}, Parents: parents}
}

func TestComputeDataHashStableUnderWhitespaceOnly(t *testing.T) {
	a := Compute(fullModel("m", "select  1\nfrom t"), nil)
	b := Compute(fullModel("m", "select 1 from t"), nil)
	if a.DataHash != b.DataHash {
		t.Errorf("expected whitespace-only SQL edits to share a data_hash, got %q vs %q", a.DataHash, b.DataHash)
	}
}

func TestComputeDataHashChangesWithSQL(t *testing.T) {
	a := Compute(fullModel("m", "select 1 from t"), nil)
	b := Compute(fullModel("m", "select 2 from t"), nil)
	if a.DataHash == b.DataHash {
		t.Error("expected differing SQL to produce differing data_hash")
	}
}

func TestComputeDataHashInheritsFromParents(t *testing.T) {
	m := fullModel("child", "select * from parent", "parent")
	a := Compute(m, map[string]string{"parent": "hash-v1"})
	b := Compute(m, map[string]string{"parent": "hash-v2"})
	if a.DataHash == b.DataHash {
		t.Error("expected a changed parent data_hash to change the child's data_hash")
	}
}

func TestComputeMetadataHashIgnoresSQL(t *testing.T) {
	m1 := fullModel("m", "select 1")
	m1.Metadata = model.Metadata{Owner: "alice", Tags: []string{"b", "a"}}
	m2 := fullModel("m", "select 2")
	m2.Metadata = model.Metadata{Owner: "alice", Tags: []string{"a", "b"}}
	f1 := Compute(m1, nil)
	f2 := Compute(m2, nil)
	if f1.MetadataHash != f2.MetadataHash {
		t.Error("expected metadata_hash to ignore SQL and tag ordering")
	}
	if f1.DataHash == f2.DataHash {
		t.Error("expected data_hash to differ when SQL differs")
	}
}

func TestClassifyFirstSnapshotIsBreaking(t *testing.T) {
	got := Classify(fullModel("m", "select 1"), Fingerprint{DataHash: "h"}, nil, nil)
	if got != Breaking {
		t.Errorf("Classify(prior=nil) = %v, want Breaking", got)
	}
}

func TestClassifyNoChange(t *testing.T) {
	fp := Fingerprint{DataHash: "h"}
	got := Classify(fullModel("m", "select 1"), fp, &fp, nil)
	if got != NoChange {
		t.Errorf("Classify(same hash) = %v, want NoChange", got)
	}
}

func TestClassifyForwardOnlyOverride(t *testing.T) {
	m := fullModel("m", "select 1")
	m.ForwardOnly = true
	prior := Fingerprint{DataHash: "old"}
	got := Classify(m, Fingerprint{DataHash: "new"}, &prior, nil)
	if got != ForwardOnly {
		t.Errorf("Classify(ForwardOnly model) = %v, want ForwardOnly", got)
	}
}

func TestClassifyDirectChangeNonIncrementalIsNonBreaking(t *testing.T) {
	m := fullModel("m", "select 1")
	prior := Fingerprint{DataHash: "old"}
	got := Classify(m, Fingerprint{DataHash: "new"}, &prior, nil)
	if got != NonBreaking {
		t.Errorf("Classify(full kind, direct change) = %v, want NonBreaking", got)
	}
}

func TestClassifyDirectChangeIncrementalIsBreaking(t *testing.T) {
	m := model.Model{Name: "m", RenderedSQL: "select 1", Kind: model.IncrementalByTime{TimeColumn: "ts", CronExpr: "@daily"}}
	prior := Fingerprint{DataHash: "old"}
	got := Classify(m, Fingerprint{DataHash: "new"}, &prior, nil)
	if got != Breaking {
		t.Errorf("Classify(incremental kind, direct change) = %v, want Breaking", got)
	}
}

func TestClassifyIndirectChangeFromParent(t *testing.T) {
	m := model.Model{Name: "m", RenderedSQL: "select 1", Kind: model.IncrementalByTime{TimeColumn: "ts", CronExpr: "@daily"}, Parents: []string{"p"}}
	prior := Fingerprint{DataHash: "old"}
	got := Classify(m, Fingerprint{DataHash: "new"}, &prior, []string{"p"})
	if got != IndirectBreaking {
		t.Errorf("Classify(incremental kind, parent changed) = %v, want IndirectBreaking", got)
	}
}

func TestReusesVersion(t *testing.T) {
	cases := map[ChangeCategory]bool{
		NoChange:            true,
		NonBreaking:         true,
		IndirectNonBreaking: true,
		Breaking:            false,
		ForwardOnly:         false,
		IndirectBreaking:    false,
	}
	for cat, want := range cases {
		if got := cat.ReusesVersion(); got != want {
			t.Errorf("%v.ReusesVersion() = %v, want %v", cat, got, want)
		}
	}
}
