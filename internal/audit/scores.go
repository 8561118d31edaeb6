package audit

import "math"

// FloorPercent returns part/total as a percentage, floor-rounded to two
// decimal places. Flooring keeps a compliant/non-compliant pair from
// summing above 100.
func FloorPercent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Floor(float64(part)/float64(total)*10000) / 100
}

// PercentNonCompliant returns the share of a sequence's subjects with at
// least one deviating run.
func (r *HorizontalResult) PercentNonCompliant(seqID string) float64 {
	return FloorPercent(len(r.NonCompliant.SubjectIDs(seqID)), r.SubjectCount(seqID))
}

// PercentCompliant returns the share of a sequence's subjects whose runs
// all passed.
func (r *HorizontalResult) PercentCompliant(seqID string) float64 {
	total := r.SubjectCount(seqID)
	return FloorPercent(total-len(r.NonCompliant.SubjectIDs(seqID)), total)
}

// Scores returns the percent-compliant score of every determined sequence.
// Undetermined sequences carry no verdict and are left out.
func (r *HorizontalResult) Scores() map[string]float64 {
	scores := make(map[string]float64)
	for _, seqID := range r.SequenceIDs() {
		if len(r.Undetermined.SubjectIDs(seqID)) > 0 {
			continue
		}
		scores[seqID] = r.PercentCompliant(seqID)
	}
	return scores
}
