package abortstatus

import "testing"

func TestMergeCommutative(t *testing.T) {
	levels := []AbortStatus{None, Requested, UserForceRequested}
	for _, a := range levels {
		for _, b := range levels {
			if Merge(a, b) != Merge(b, a) {
				t.Fatalf("merge(%v, %v) != merge(%v, %v)", a, b, b, a)
			}
		}
	}
}

func TestMergeUserForceAlwaysWins(t *testing.T) {
	for _, other := range []AbortStatus{None, Requested, UserForceRequested} {
		if got := Merge(other, UserForceRequested); got != UserForceRequested {
			t.Fatalf("merge(%v, UserForceRequested) = %v, want UserForceRequested", other, got)
		}
	}
}

func TestMergeConcreteCases(t *testing.T) {
	cases := []struct {
		a, b, want AbortStatus
	}{
		{None, Requested, Requested},
		{Requested, UserForceRequested, UserForceRequested},
		{None, None, None},
	}
	for _, c := range cases {
		if got := Merge(c.a, c.b); got != c.want {
			t.Errorf("merge(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestShouldKillOnlyForceLevel(t *testing.T) {
	if None.ShouldKill() || Requested.ShouldKill() {
		t.Fatal("only UserForceRequested should trigger a kill")
	}
	if !UserForceRequested.ShouldKill() {
		t.Fatal("UserForceRequested must trigger a kill")
	}
}
