package adventure

// ComputeAverageRating returns the arithmetic mean of ratings. The second
// result is false when there is nothing to average.
func ComputeAverageRating(ratings []int) (float64, bool) {
	if len(ratings) == 0 {
		return 0, false
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings)), true
}
