// Package analytics summarises the score records of a job.
package analytics

import (
	"recroai/internal/ranking"
	"recroai/internal/types"
)

// TopN is how many candidates Summary.Top lists
const TopN = 5

// Bucket labels, lowest first. A total falls in the first bucket whose upper
// bound it does not exceed.
var buckets = []struct {
	label string
	upper float64
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", 100},
}

// Summary is the aggregate view of a set of score records
type Summary struct {
	Records          int                `json:"records"`
	Scored           int                `json:"scored"`
	Disqualified     int                `json:"disqualified"`
	AverageScore     float64            `json:"averageScore"`
	Distribution     []BucketCount      `json:"distribution"`
	Suspicious       int                `json:"suspicious"`
	Clean            int                `json:"clean"`
	CategoryAverages map[string]float64 `json:"categoryAverages"`
	Top              []TopCandidate     `json:"top"`
}

// BucketCount is the number of totals in one score range
type BucketCount struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// TopCandidate is one entry of the leaderboard
type TopCandidate struct {
	CandidateID string  `json:"candidateId"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Suspicious  bool    `json:"suspicious"`
}

// Summarize computes counts, averages and the top candidates. Disqualified
// records count towards authenticity stats but not towards score averages.
func Summarize(records []types.ScoreRecord) Summary {
	s := Summary{
		Records:          len(records),
		Distribution:     make([]BucketCount, len(buckets)),
		CategoryAverages: map[string]float64{},
		Top:              []TopCandidate{},
	}
	for i, b := range buckets {
		s.Distribution[i].Range = b.label
	}

	var sum float64
	categorySums := map[string]float64{}
	categoryCounts := map[string]int{}

	for _, r := range records {
		if r.Authenticity.IsSuspicious {
			s.Suspicious++
		} else {
			s.Clean++
		}

		if r.TotalScore == nil {
			s.Disqualified++
			continue
		}
		s.Scored++
		sum += *r.TotalScore
		s.Distribution[bucketOf(*r.TotalScore)].Count++

		for _, c := range r.CategoryScores {
			categorySums[c.CategoryName] += c.Score
			categoryCounts[c.CategoryName]++
		}
	}

	if s.Scored > 0 {
		s.AverageScore = ranking.Round1(sum / float64(s.Scored))
	}
	for name, total := range categorySums {
		s.CategoryAverages[name] = ranking.Round1(total / float64(categoryCounts[name]))
	}

	for _, r := range ranking.Shortlist(records) {
		if len(s.Top) == TopN {
			break
		}
		name := r.CandidateName
		if name == "" {
			name = "Unknown"
		}
		s.Top = append(s.Top, TopCandidate{
			CandidateID: r.CandidateID,
			Name:        name,
			Score:       *r.TotalScore,
			Suspicious:  r.Authenticity.IsSuspicious,
		})
	}
	return s
}

func bucketOf(score float64) int {
	for i, b := range buckets {
		if score <= b.upper {
			return i
		}
	}
	return len(buckets) - 1
}
