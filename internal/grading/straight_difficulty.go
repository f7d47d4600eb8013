package grading

import "github.com/pegnet/pegfollow/internal/opr"

// StraightDifficultyGrader is the simpler grading policy: the top
// EligibleMin records of the eligibility set, in difficulty order, are the
// winner set, and winning rates are the componentwise mean estimate over the
// whole eligibility set. No fourth-power elimination pass runs.
type StraightDifficultyGrader struct {
	Hasher LXRHasher
}

// GradeRecords implements Grader.
func (g StraightDifficultyGrader) GradeRecords(previousWinners [opr.PrevWindow]string, records []Record) (Result, bool) {
	if len(records) < EligibleMin {
		return Result{}, false
	}

	eligible := filterTop50(g.Hasher, previousWinners, records)
	if len(eligible) < EligibleMin {
		return Result{}, false
	}

	// eligible is already difficulty-descending (filterTop50 sorts before
	// filtering); the winner set is always exactly the top EligibleMin,
	// regardless of how many records were eligible.
	winners := append([]Record{}, eligible[:EligibleMin]...)

	return Result{
		WinningRates:  averageEstimates(eligible),
		Winners:       winners,
		TopDifficulty: eligible,
	}, true
}
