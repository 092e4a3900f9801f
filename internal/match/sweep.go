package match

import "sort"

// SweepPoint is the outcome of replaying stored ratios at one threshold.
type SweepPoint struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Accepted  int     `json:"accepted" yaml:"accepted"`
	Rejected  int     `json:"rejected" yaml:"rejected"`
}

// Sweep replays the similarity ratios of verdicts that had a candidate
// against each threshold. Because acceptance is ratio >= threshold, the
// accepted count never grows as the threshold rises.
func Sweep(ratios []float64, thresholds []float64) []SweepPoint {
	sorted := append([]float64(nil), ratios...)
	sort.Float64s(sorted)

	ts := append([]float64(nil), thresholds...)
	sort.Float64s(ts)

	points := make([]SweepPoint, 0, len(ts))
	for _, t := range ts {
		// First index whose ratio reaches the threshold.
		i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= t })
		points = append(points, SweepPoint{
			Threshold: t,
			Accepted:  len(sorted) - i,
			Rejected:  i,
		})
	}
	return points
}

// Steps returns thresholds from lo to hi inclusive in increments of step.
func Steps(lo, hi, step float64) []float64 {
	if step <= 0 || hi < lo {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		t := lo + float64(i)*step
		if t > hi+1e-9 {
			break
		}
		out = append(out, float64(int(t*1000+0.5))/1000)
	}
	return out
}
