package health

// QualityMedian reduces per-landmark pixel covariance ellipse areas to a
// single robust scalar. An empty input yields 0, which callers must read as
// "perfect quality" rather than a measurement.
//
// The result is the element at rank len/2 of the sorted input: the true
// middle for odd lengths, the upper of the two central elements for even
// lengths. Even-length inputs are never averaged; downstream thresholds were
// tuned against this rank rule.
func QualityMedian(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	work := make([]float64, len(samples))
	copy(work, samples)
	return selectRank(work, len(work)/2)
}

// selectRank returns the value that would be at index k if s were sorted,
// partially ordering s in place. Expected linear time (quickselect with
// median-of-three pivoting).
func selectRank(s []float64, k int) float64 {
	lo, hi := 0, len(s)-1
	for lo < hi {
		p := partition(s, lo, hi)
		switch {
		case k < p:
			hi = p - 1
		case k > p:
			lo = p + 1
		default:
			return s[k]
		}
	}
	return s[k]
}

func partition(s []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if s[mid] < s[lo] {
		s[mid], s[lo] = s[lo], s[mid]
	}
	if s[hi] < s[lo] {
		s[hi], s[lo] = s[lo], s[hi]
	}
	if s[hi] < s[mid] {
		s[hi], s[mid] = s[mid], s[hi]
	}
	pivot := s[mid]
	s[mid], s[hi-1] = s[hi-1], s[mid]

	i := lo
	for j := lo; j < hi-1; j++ {
		if s[j] < pivot {
			s[i], s[j] = s[j], s[i]
			i++
		}
	}
	s[i], s[hi-1] = s[hi-1], s[i]
	return i
}
