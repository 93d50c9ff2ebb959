package interval

import "testing"

func TestAddMissingIsEmpty(t *testing.T) {
	var s Set
	s = s.Add(0, 100)
	if got := s.Missing(0, 100, 0); len(got) != 0 {
		t.Fatalf("expected no gaps after Add, got %v", got)
	}
}

func TestAddCoalescesAdjacent(t *testing.T) {
	var s Set
	s = s.Add(0, 10).Add(10, 20)
	if len(s) != 1 {
		t.Fatalf("expected adjacent intervals to coalesce, got %v", s)
	}
	if s[0] != (Interval{0, 20}) {
		t.Fatalf("expected merged [0,20), got %v", s[0])
	}
}

func TestAddOverlapping(t *testing.T) {
	var s Set
	s = s.Add(0, 10).Add(5, 15)
	if len(s) != 1 || s[0] != (Interval{0, 15}) {
		t.Fatalf("expected merged [0,15), got %v", s)
	}
}

func TestRemoveSplitsSpanningInterval(t *testing.T) {
	var s Set
	s = s.Add(0, 100)
	s = s.Remove(40, 60)
	want := Set{{0, 40}, {60, 100}}
	if !equalSets(s, want) {
		t.Fatalf("expected %v, got %v", want, s)
	}
}

func TestRemoveThenMissing(t *testing.T) {
	var s Set
	s = s.Add(0, 100)
	s = s.Remove(40, 60)
	got := s.Missing(0, 100, 0)
	want := Set{{40, 60}}
	if !equalSets(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMissingWithGrainSplitsBatches(t *testing.T) {
	var s Set
	got := s.Missing(0, 30, 10)
	want := Set{{0, 10}, {10, 20}, {20, 30}}
	if !equalSets(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCovers(t *testing.T) {
	var s Set
	s = s.Add(0, 100)
	if !s.Covers(10, 90) {
		t.Fatalf("expected [10,90) to be covered")
	}
	s = s.Remove(50, 51)
	if s.Covers(10, 90) {
		t.Fatalf("expected [10,90) to no longer be covered")
	}
}

func TestAlignOutward(t *testing.T) {
	s, e := AlignOutward(5, 95, 10)
	if s != 0 || e != 100 {
		t.Fatalf("expected [0,100), got [%d,%d)", s, e)
	}
}

func TestBatchesSplitsByBatchSize(t *testing.T) {
	var s Set
	s = s.Add(0, 100)
	got := s.Batches(10, 3) // 3 grain units of 10ms => 30ms chunks
	want := Set{{0, 30}, {30, 60}, {60, 90}, {90, 100}}
	if !equalSets(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func equalSets(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
