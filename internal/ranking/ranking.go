// Package ranking turns delegate verdicts into score records and orders
// them into a shortlist.
package ranking

import (
	"math"
	"slices"
	"strings"

	"recroai/internal/types"
)

// Thresholds for the strengths and weaknesses summaries
const (
	StrengthThreshold = 70.0
	WeaknessThreshold = 50.0
)

// Aggregate combines hard filter verdicts and soft category scores into a
// record. Identity fields (candidate, job, version, time) are left to the
// caller. A single failed filter disqualifies: the total is nil rather than
// zero so that "disqualified" and "scored 0" stay distinguishable.
func Aggregate(r types.Rubric, filters []types.FilterResult, scores []types.CategoryScore) types.ScoreRecord {
	record := types.ScoreRecord{
		FilterResults:    orderFilters(r, filters),
		CategoryScores:   orderScores(r, scores),
		HardFilterPassed: true,
	}

	for _, f := range filters {
		if !f.Passed {
			record.HardFilterPassed = false
		}
	}
	if !record.HardFilterPassed {
		return record
	}

	byName := make(map[string]float64, len(scores))
	for _, s := range scores {
		byName[strings.ToLower(s.CategoryName)] = s.Score
	}

	total := 0.0
	for _, c := range r.Weighted() {
		total += c.Weight / 100 * byName[strings.ToLower(c.Name)]
	}
	total = Round1(total)
	record.TotalScore = &total

	for _, s := range record.CategoryScores {
		switch {
		case s.Score >= StrengthThreshold:
			record.Strengths = append(record.Strengths, s.CategoryName)
		case s.Score < WeaknessThreshold:
			record.Weaknesses = append(record.Weaknesses, s.CategoryName)
		}
	}
	return record
}

// Round1 rounds to one decimal place, halves away from zero
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// orderScores returns scores in rubric order, dropping unknown categories
func orderScores(r types.Rubric, scores []types.CategoryScore) []types.CategoryScore {
	ordered := make([]types.CategoryScore, 0, len(scores))
	for _, c := range r.Weighted() {
		for _, s := range scores {
			if strings.EqualFold(s.CategoryName, c.Name) {
				ordered = append(ordered, s)
				break
			}
		}
	}
	return ordered
}

func orderFilters(r types.Rubric, filters []types.FilterResult) []types.FilterResult {
	if len(filters) == 0 {
		return nil
	}
	ordered := make([]types.FilterResult, 0, len(filters))
	for _, c := range r.HardFilters() {
		for _, f := range filters {
			if strings.EqualFold(f.CategoryName, c.Name) {
				ordered = append(ordered, f)
				break
			}
		}
	}
	return ordered
}

// Compare orders two records for a shortlist: higher totals first, nil
// totals after every scored record, then ascending candidate id.
func Compare(a, b types.ScoreRecord) int {
	switch {
	case a.TotalScore != nil && b.TotalScore == nil:
		return -1
	case a.TotalScore == nil && b.TotalScore != nil:
		return 1
	case a.TotalScore != nil && b.TotalScore != nil && *a.TotalScore != *b.TotalScore:
		if *a.TotalScore > *b.TotalScore {
			return -1
		}
		return 1
	}
	return strings.Compare(a.CandidateID, b.CandidateID)
}

// Rank returns a sorted copy of records. The input is not modified.
func Rank(records []types.ScoreRecord) []types.ScoreRecord {
	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Shortlist ranks the candidates that passed every hard filter
func Shortlist(records []types.ScoreRecord) []types.ScoreRecord {
	passing := make([]types.ScoreRecord, 0, len(records))
	for _, r := range records {
		if r.HardFilterPassed && r.TotalScore != nil {
			passing = append(passing, r)
		}
	}
	return Rank(passing)
}
