// Package grading implements the per-block OPR grading pipeline: eligibility
// filtering against self-reported difficulty and a hash collaborator, then
// one of two pluggable grading policies.
package grading

import (
	"crypto/sha256"
	"sort"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/opr"
)

// EligibleMin is the minimum number of candidates required for a block to
// be gradable at all; below this, grading is all-or-nothing.
const EligibleMin = 10

// TopN is the maximum size of the eligibility set.
const TopN = 50

// LXRHasher is the external hash collaborator used to verify a miner's
// self-reported difficulty. Implementations MUST be deterministic and
// produce at least 8 bytes of output. Grading never constructs a concrete
// hasher itself; one is injected by the caller.
type LXRHasher interface {
	Hash(data []byte) []byte
}

// Record wraps a parsed OPR with the opr_hash a grader needs — the SHA-256
// digest of the entry's content, independent from the entry hash itself.
type Record struct {
	opr.OPR
	ContentHash [32]byte
}

// NewRecord computes a Record's ContentHash from the raw entry content.
func NewRecord(o opr.OPR, content []byte) Record {
	return Record{OPR: o, ContentHash: sha256.Sum256(content)}
}

// Result is the outcome of grading one block: nil Winners means the block
// was ungradable.
type Result struct {
	WinningRates opr.AssetEstimates
	Winners      []Record // up to 10, grading order, Winners[0] is the block winner
	TopDifficulty []Record // up to 50, difficulty-descending
}

// Grader is a pluggable per-block grading policy.
type Grader interface {
	GradeRecords(previousWinners [opr.PrevWindow]string, records []Record) (Result, bool)
}

// filterTop50 sorts records by self-reported difficulty descending, then
// walks them keeping the first TopN whose observed LXR difficulty matches
// what was reported and whose prev_winners matches the expected window.
func filterTop50(hasher LXRHasher, previousWinners [opr.PrevWindow]string, records []Record) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SelfReportedDifficulty.Cmp(sorted[j].SelfReportedDifficulty) > 0
	})

	eligible := make([]Record, 0, TopN)
	for _, r := range sorted {
		observed := hasher.Hash(append(append([]byte{}, r.ContentHash[:]...), r.Nonce...))
		if len(observed) < 8 {
			continue
		}
		d := opr.NewDifficulty(observed[:8])
		if d.Cmp(r.SelfReportedDifficulty) != 0 {
			continue
		}
		if r.PrevWinners != previousWinners {
			continue
		}
		eligible = append(eligible, r)
		if len(eligible) >= TopN {
			break
		}
	}
	return eligible
}

// averageEstimates computes the componentwise mean of |estimate| across
// records, one divide per asset after summing, iterating in the fixed
// grading order for deterministic float accumulation.
func averageEstimates(records []Record) opr.AssetEstimates {
	sums := make(opr.AssetEstimates, asset.Count)
	for _, t := range asset.GradingOrder {
		sums[t] = 0
	}
	for _, r := range records {
		for _, t := range asset.GradingOrder {
			v := r.AssetEstimates[t]
			if v < 0 {
				v = -v
			}
			sums[t] += v
		}
	}
	n := float64(len(records))
	averages := make(opr.AssetEstimates, asset.Count)
	for _, t := range asset.GradingOrder {
		averages[t] = sums[t] / n
	}
	return averages
}

// calculateGrade sums the fourth power of the relative deviation from the
// average, over assets whose average is strictly positive, iterating in
// the fixed grading order.
func calculateGrade(estimates opr.AssetEstimates, averages opr.AssetEstimates) float64 {
	grade := 0.0
	for _, t := range asset.GradingOrder {
		avg := averages[t]
		if avg <= 0 {
			continue
		}
		d := (estimates[t] - avg) / avg
		grade += d * d * d * d
	}
	return grade
}
