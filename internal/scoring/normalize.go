package scoring

// MinMaxNormalize rescales a cohort of raw scores so min maps to 0 and max
// to 1. When max == min every score becomes 1.0. The input slice is not
// modified.
func MinMaxNormalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	span := max - min
	for i, s := range scores {
		out[i] = (s - min) / span
	}
	return out
}
