package grading

import (
	"sort"

	"github.com/pegnet/pegfollow/internal/opr"
)

// StockGrader is the reference grading policy: iterative fourth-power
// deviation elimination down to the ten block winners.
//
// Known issue carried over from the reference implementation: this policy
// rewards miners for pricing consensus with each other rather than for
// external accuracy.
type StockGrader struct {
	Hasher LXRHasher
}

// GradeRecords implements Grader.
func (g StockGrader) GradeRecords(previousWinners [opr.PrevWindow]string, records []Record) (Result, bool) {
	if len(records) < EligibleMin {
		return Result{}, false
	}

	eligible := filterTop50(g.Hasher, previousWinners, records)
	if len(eligible) < EligibleMin {
		return Result{}, false
	}

	graded := make([]Record, len(eligible))
	copy(graded, eligible)

	for i := len(graded); i >= EligibleMin; i-- {
		averages := averageEstimates(graded[:i])
		for j := 0; j < i; j++ {
			graded[j].Grade = calculateGrade(graded[j].AssetEstimates, averages)
		}

		window := graded[:i]
		sort.SliceStable(window, func(a, b int) bool {
			return window[a].SelfReportedDifficulty.Cmp(window[b].SelfReportedDifficulty) > 0
		})
		sort.SliceStable(window, func(a, b int) bool {
			return window[a].Grade < window[b].Grade
		})
	}

	winners := append([]Record{}, graded[:EligibleMin]...)
	return Result{
		WinningRates:  winners[0].AssetEstimates,
		Winners:       winners,
		TopDifficulty: eligible,
	}, true
}
