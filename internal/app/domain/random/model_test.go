package random

import "testing"

func TestWeightsPick(t *testing.T) {
	w := Weights{2, 0, 3}
	cases := map[uint64]int{0: 0, 1: 0, 2: 2, 4: 2}
	for x, want := range cases {
		if got := w.Pick(x); got != want {
			t.Fatalf("Pick(%d) = %d, want %d", x, got, want)
		}
	}
	if w.Total() != 5 {
		t.Fatalf("total = %d", w.Total())
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := Uniform(6).Validate(); err != nil {
		t.Fatalf("uniform: %v", err)
	}
	if err := (Weights{^uint64(0), 1}).Validate(); err == nil {
		t.Fatalf("expected overflow error")
	}
}
