package health

import (
	"math/rand"
	"sort"
	"testing"
)

func TestQualityMedianEmpty(t *testing.T) {
	if got := QualityMedian(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
	if got := QualityMedian([]float64{}); got != 0 {
		t.Fatalf("expected 0 for empty slice, got %v", got)
	}
}

func TestQualityMedianOddLength(t *testing.T) {
	if got := QualityMedian([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := QualityMedian([]float64{5}); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestQualityMedianEvenLengthSelectsMiddleRank(t *testing.T) {
	// Rank len/2 of the sorted input, never the average of the two
	// central elements.
	if got := QualityMedian([]float64{4, 1, 3, 2}); got != 3 {
		t.Fatalf("expected 3 (rank 2 of sorted [1 2 3 4]), got %v", got)
	}
	if got := QualityMedian([]float64{10, 20}); got != 20 {
		t.Fatalf("expected 20, got %v", got)
	}
}

func TestQualityMedianMatchesSortedRank(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 64; n++ {
		in := make([]float64, n)
		for i := range in {
			in[i] = rng.Float64() * 100
		}
		sorted := make([]float64, n)
		copy(sorted, in)
		sort.Float64s(sorted)

		want := sorted[n/2]
		if got := QualityMedian(in); got != want {
			t.Fatalf("n=%d: expected %v, got %v", n, want, got)
		}
		// Idempotent on a pre-sorted copy.
		if got := QualityMedian(sorted); got != want {
			t.Fatalf("n=%d: expected %v on sorted input, got %v", n, want, got)
		}
	}
}

func TestQualityMedianDoesNotMutateInput(t *testing.T) {
	in := []float64{9, 4, 7, 1, 5}
	orig := make([]float64, len(in))
	copy(orig, in)

	QualityMedian(in)

	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("input mutated at %d: %v vs %v", i, in[i], orig[i])
		}
	}
}

func TestQualityMedianDuplicates(t *testing.T) {
	if got := QualityMedian([]float64{2, 2, 2, 2}); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := QualityMedian([]float64{1, 3, 3, 3, 1}); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}
