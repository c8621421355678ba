package embedder

import "math"

// Report summarizes the quality of a set of generated vectors. It is
// informational only and never blocks ingestion.
type Report struct {
	Count         int
	Dimension     int
	SameDimension bool
	ZeroVectors   int
	MinMagnitude  float64
	AvgMagnitude  float64
	MaxMagnitude  float64
}

// Verify inspects vectors for dimensional consistency and degenerate
// (all-zero) entries, and reports magnitude statistics.
func Verify(vectors [][]float32) Report {
	report := Report{SameDimension: true}
	if len(vectors) == 0 {
		return report
	}

	report.Count = len(vectors)
	report.Dimension = len(vectors[0])
	report.MinMagnitude = math.MaxFloat64

	var sum float64
	for _, vec := range vectors {
		if len(vec) != report.Dimension {
			report.SameDimension = false
		}

		var sq float64
		zero := true
		for _, v := range vec {
			if v != 0 {
				zero = false
			}
			sq += float64(v) * float64(v)
		}
		if zero {
			report.ZeroVectors++
		}

		mag := math.Sqrt(sq)
		sum += mag
		if mag < report.MinMagnitude {
			report.MinMagnitude = mag
		}
		if mag > report.MaxMagnitude {
			report.MaxMagnitude = mag
		}
	}
	report.AvgMagnitude = sum / float64(len(vectors))

	return report
}
