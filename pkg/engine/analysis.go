package engine

import (
	"cmp"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// Correlation is the Pearson coefficient between points and competitions
// played. Coefficient is only meaningful when Computable is true.
type Correlation struct {
	Coefficient float64 `json:"coefficient"`
	Computable  bool    `json:"computable"`
	N           int     `json:"n"`
}

// PointsParticipationCorrelation correlates points with competitions played
// over the full ranking set. It is not computable with fewer than two
// rankings or when either column has zero variance.
func PointsParticipationCorrelation(rankings []tennis.Ranking) Correlation {
	res := Correlation{N: len(rankings)}
	if len(rankings) < 2 {
		return res
	}

	points := make([]float64, len(rankings))
	played := make([]float64, len(rankings))
	for i, r := range rankings {
		points[i] = r.Points
		played[i] = float64(r.CompetitionsPlayed)
	}
	if stat.Variance(points, nil) == 0 || stat.Variance(played, nil) == 0 {
		return res
	}

	res.Coefficient = stat.Correlation(points, played, nil)
	res.Computable = true
	return res
}

// QuartileComparison contrasts the mean points of the top quartile with
// the bottom quartile.
type QuartileComparison struct {
	Q25          float64 `json:"q25"`
	Q75          float64 `json:"q75"`
	TopAvgPoints float64 `json:"top_avg_points"`
	LowAvgPoints float64 `json:"low_avg_points"`
	TopCount     int     `json:"top_count"`
	LowCount     int     `json:"low_count"`
}

// PointsQuartiles averages the points of rankings at or above the 75th
// percentile and at or below the 25th percentile. The zero value is
// returned for an empty ranking set.
func PointsQuartiles(rankings []tennis.Ranking) QuartileComparison {
	if len(rankings) == 0 {
		return QuartileComparison{}
	}
	points := make([]float64, len(rankings))
	for i, r := range rankings {
		points[i] = r.Points
	}
	sorted := slices.Clone(points)
	slices.Sort(sorted)

	res := QuartileComparison{
		Q25: stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Q75: stat.Quantile(0.75, stat.LinInterp, sorted, nil),
	}

	var top, low []float64
	for _, p := range points {
		if p >= res.Q75 {
			top = append(top, p)
		}
		if p <= res.Q25 {
			low = append(low, p)
		}
	}
	res.TopCount, res.LowCount = len(top), len(low)
	if len(top) > 0 {
		res.TopAvgPoints = stat.Mean(top, nil)
	}
	if len(low) > 0 {
		res.LowAvgPoints = stat.Mean(low, nil)
	}
	return res
}

// CompetitorWorkload sums a competitor's ranking entries.
type CompetitorWorkload struct {
	CompetitorID      string  `json:"competitor_id"`
	TotalPoints       float64 `json:"total_points"`
	TotalCompetitions int     `json:"total_competitions"`
	AvgPoints         float64 `json:"avg_points"`
}

// Workload sums points and competitions played per competitor, ordered by
// competitions descending, then points descending, then ID. n > 0
// truncates the result.
func Workload(rankings []tennis.Ranking, n int) []CompetitorWorkload {
	idx := make(map[string]int)
	var out []CompetitorWorkload
	var entries []int
	for _, r := range rankings {
		i, ok := idx[r.CompetitorID]
		if !ok {
			i = len(out)
			idx[r.CompetitorID] = i
			out = append(out, CompetitorWorkload{CompetitorID: r.CompetitorID})
			entries = append(entries, 0)
		}
		out[i].TotalPoints += r.Points
		out[i].TotalCompetitions += r.CompetitionsPlayed
		entries[i]++
	}
	for i := range out {
		out[i].AvgPoints = out[i].TotalPoints / float64(entries[i])
	}

	slices.SortFunc(out, func(a, b CompetitorWorkload) int {
		if c := cmp.Compare(b.TotalCompetitions, a.TotalCompetitions); c != 0 {
			return c
		}
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return strings.Compare(a.CompetitorID, b.CompetitorID)
	})
	return truncate(out, n)
}
