package ranking

import (
	"math"
	"math/rand"
	"testing"

	"recroai/internal/types"

	"github.com/smartystreets/goconvey/convey"
)

func exampleRubric() types.Rubric {
	return types.Rubric{
		Version: "abc123",
		Categories: []types.RubricCategory{
			{Name: "skills", Weight: 40},
			{Name: "experience", Weight: 30},
			{Name: "degree", IsHardFilter: true, RequirementText: "BSc or equivalent"},
			{Name: "education", Weight: 20},
			{Name: "other", Weight: 10},
		},
	}
}

func exampleScores(skills, experience, education, other float64) []types.CategoryScore {
	return []types.CategoryScore{
		{CategoryName: "other", Score: other},
		{CategoryName: "skills", Score: skills},
		{CategoryName: "education", Score: education},
		{CategoryName: "experience", Score: experience},
	}
}

func total(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	convey.Convey("Given the 40/30/20/10 rubric", t, func() {
		r := exampleRubric()
		passed := []types.FilterResult{{CategoryName: "degree", Passed: true, Rationale: "BSc listed"}}

		convey.Convey("When sub-scores are 90/80/70/100", func() {
			record := Aggregate(r, passed, exampleScores(90, 80, 70, 100))

			convey.Convey("Then the total is 84.0", func() {
				convey.So(record.HardFilterPassed, convey.ShouldBeTrue)
				convey.So(record.TotalScore, convey.ShouldNotBeNil)
				convey.So(*record.TotalScore, convey.ShouldAlmostEqual, 84.0, 1e-6)
			})

			convey.Convey("And category scores follow rubric order", func() {
				names := []string{}
				for _, s := range record.CategoryScores {
					names = append(names, s.CategoryName)
				}
				convey.So(names, convey.ShouldResemble, []string{"skills", "experience", "education", "other"})
			})

			convey.Convey("And strengths and weaknesses are derived from sub-scores", func() {
				convey.So(record.Strengths, convey.ShouldResemble, []string{"skills", "experience", "education", "other"})
				convey.So(record.Weaknesses, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a hard filter fails", func() {
			failed := []types.FilterResult{{CategoryName: "degree", Passed: false, Rationale: "No degree"}}
			record := Aggregate(r, failed, exampleScores(100, 100, 100, 100))

			convey.Convey("Then the candidate is disqualified with a nil total", func() {
				convey.So(record.HardFilterPassed, convey.ShouldBeFalse)
				convey.So(record.TotalScore, convey.ShouldBeNil)
				convey.So(record.Strengths, convey.ShouldBeEmpty)
				convey.So(record.FilterResults, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the weighted sum needs rounding", func() {
			record := Aggregate(r, passed, exampleScores(77, 63, 51, 49))
			want := 0.4*77 + 0.3*63 + 0.2*51 + 0.1*49

			convey.Convey("Then it is rounded to one decimal", func() {
				convey.So(*record.TotalScore, convey.ShouldAlmostEqual, math.Round(want*10)/10, 1e-6)
				convey.So(record.Weaknesses, convey.ShouldResemble, []string{"other"})
			})
		})
	})

	convey.Convey("Given a rubric with only hard filters", t, func() {
		r := types.Rubric{Categories: []types.RubricCategory{{Name: "visa", IsHardFilter: true, RequirementText: "EU work permit"}}}
		record := Aggregate(r, []types.FilterResult{{CategoryName: "visa", Passed: true}}, nil)

		convey.Convey("Then a passing candidate scores 0", func() {
			convey.So(record.HardFilterPassed, convey.ShouldBeTrue)
			convey.So(*record.TotalScore, convey.ShouldEqual, 0)
		})
	})
}

func TestAggregateWeightedSumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := exampleRubric()

	for i := 0; i < 500; i++ {
		s := exampleScores(rng.Float64()*100, rng.Float64()*100, rng.Float64()*100, rng.Float64()*100)
		record := Aggregate(r, nil, s)

		sum := 0.0
		for _, c := range r.Weighted() {
			for _, cs := range s {
				if cs.CategoryName == c.Name {
					sum += c.Weight / 100 * cs.Score
				}
			}
		}
		if got, want := *record.TotalScore, math.Round(sum*10)/10; math.Abs(got-want) > 1e-6 {
			t.Fatalf("iteration %d: total %v, want %v", i, got, want)
		}
	}
}

func TestRank(t *testing.T) {
	convey.Convey("Given scored and disqualified records", t, func() {
		records := []types.ScoreRecord{
			{CandidateID: "d", TotalScore: nil},
			{CandidateID: "b", TotalScore: total(71.5), HardFilterPassed: true},
			{CandidateID: "e", TotalScore: total(90), HardFilterPassed: true},
			{CandidateID: "a", TotalScore: total(71.5), HardFilterPassed: true},
			{CandidateID: "c", TotalScore: nil},
			{CandidateID: "f", TotalScore: total(0), HardFilterPassed: true},
		}

		convey.Convey("When ranked", func() {
			ranked := Rank(records)
			ids := []string{}
			for _, r := range ranked {
				ids = append(ids, r.CandidateID)
			}

			convey.Convey("Then totals descend, ties break by id and nil totals sort last", func() {
				convey.So(ids, convey.ShouldResemble, []string{"e", "a", "b", "f", "c", "d"})
			})

			convey.Convey("And the input is untouched", func() {
				convey.So(records[0].CandidateID, convey.ShouldEqual, "d")
			})
		})

		convey.Convey("When ranked from any permutation", func() {
			want := Rank(records)
			rng := rand.New(rand.NewSource(42))
			stable := true
			for i := 0; i < 50; i++ {
				shuffled := append([]types.ScoreRecord(nil), records...)
				rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
				got := Rank(shuffled)
				for k := range got {
					if got[k].CandidateID != want[k].CandidateID {
						stable = false
					}
				}
			}

			convey.Convey("Then the order is always the same", func() {
				convey.So(stable, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When building a shortlist", func() {
			shortlist := Shortlist(records)

			convey.Convey("Then only passing candidates appear, in rank order", func() {
				convey.So(shortlist, convey.ShouldHaveLength, 4)
				convey.So(shortlist[0].CandidateID, convey.ShouldEqual, "e")
				convey.So(shortlist[3].CandidateID, convey.ShouldEqual, "f")
			})
		})
	})
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{84, 84},
		{84.04, 84},
		{84.06, 84.1},
		{72.25, 72.3},
		{0, 0},
		{99.99, 100},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
