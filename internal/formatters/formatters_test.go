package formatters

import (
	"encoding/json"
	"strings"
	"testing"

	"recroai/internal/analytics"
	"recroai/internal/notify"
	"recroai/internal/types"
)

func ptr(f float64) *float64 { return &f }

func sampleJob() types.Job {
	return types.Job{
		ID:    "backend-go",
		Title: "Senior Go Engineer",
		Rubric: types.Rubric{
			Version: "0123456789ab",
			Categories: []types.RubricCategory{
				{Name: "degree", IsHardFilter: true, RequirementText: "BSc | MSc"},
				{Name: "experience", Weight: 200.0 / 3},
				{Name: "skills", Weight: 100.0 / 3},
			},
			Adjustments: []string{"weights rescaled to sum to 100"},
		},
	}
}

func sampleRecords() []types.ScoreRecord {
	return []types.ScoreRecord{
		{
			CandidateID: "ada", CandidateName: "Ada", TotalScore: ptr(82.5),
			CategoryScores: []types.CategoryScore{{CategoryName: "experience", Score: 90}},
			Strengths:      []string{"Go"},
		},
		{
			CandidateID: "eve", TotalScore: ptr(70),
			Authenticity: types.AuthenticityAssessment{RiskScore: 0.8, IsSuspicious: true},
		},
		{CandidateID: "bob", CandidateName: "Bob"},
	}
}

func TestRegistryFormats(t *testing.T) {
	report := types.RunReport{
		RunID: "run-1", JobID: "backend-go", RubricVersion: "0123456789ab",
		Status: types.RunPartiallyCompleted,
		Scored: sampleRecords()[:2],
		Failed: []types.FailedCandidate{{CandidateID: "bob", Code: "DELEGATE_FAILED", Reason: "timeout"}},
	}
	summary := analytics.Summary{
		Records: 3, Scored: 2, Disqualified: 1, AverageScore: 76.25,
		Distribution: []analytics.BucketCount{{Range: "80-90", Count: 1}, {Range: "70-80", Count: 1}},
		Suspicious:   1, Clean: 1,
		Top: []analytics.TopCandidate{{CandidateID: "ada", Name: "Ada", Score: 82.5}},
	}
	decisions := []notify.Decision{
		{
			Notification: types.Notification{CandidateID: "ada", CandidateName: "Ada", DecisionKind: types.DecisionInterview},
			Message:      &notify.Message{To: "ada@example.com", Subject: "Interview", Body: "Hello Ada"},
		},
		{
			Notification: types.Notification{CandidateID: "bob", DecisionKind: types.DecisionRejection},
			Error:        "candidate has no email address",
		},
	}

	tests := []struct {
		name   string
		data   any
		format string
		want   []string
	}{
		{"job text", sampleJob(), "text", []string{"=== JOB backend-go ===", "1. degree [hard filter]", "2. experience (weight 66.67)", "3. skills (weight 33.33)", "=== ADJUSTMENTS ==="}},
		{"job markdown escapes pipes", sampleJob(), "markdown", []string{"BSc \\| MSc", "## Adjustments"}},
		{"run text", report, "text", []string{"=== RUN run-1 ===", "Status: partially_completed", "- Ada (ada): 82.5", "eve: 70.0  [suspicious 0.80]", "- bob [DELEGATE_FAILED] timeout"}},
		{"run markdown", report, "markdown", []string{"# Scoring Run `run-1`", "## Failures", "**bob** `DELEGATE_FAILED`"}},
		{"shortlist text", Shortlist{Job: sampleJob(), Candidates: sampleRecords(), Stale: 2}, "text", []string{"=== SHORTLIST: Senior Go Engineer ===", "disqualified", "2 record(s) were scored against an older rubric"}},
		{"empty shortlist", Shortlist{Job: sampleJob()}, "text", []string{"No scored candidates."}},
		{"shortlist markdown", Shortlist{Job: sampleJob(), Candidates: sampleRecords()}, "markdown", []string{"| 1 | Ada (ada) | 82.5 | Go |"}},
		{"summary text", summary, "text", []string{"Records: 3  Scored: 2  Disqualified: 1", "Average score: 76.2", "80-90   # 1", "1. Ada 82.5"}},
		{"summary markdown", summary, "markdown", []string{"- **Suspicious profiles:** 1", "| 70-80 | 1 |"}},
		{"decisions text", decisions, "text", []string{"=== INTERVIEW: Ada ===", "To: ada@example.com", "=== REJECTION: bob ===", "Not composed: candidate has no email address"}},
		{"decisions markdown", decisions, "markdown", []string{"## Ada (interview)", "_Not composed: candidate has no email address_"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := GlobalRegistry.Format(tt.data, tt.format)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestJSONFormatterFallsBackForAnyType(t *testing.T) {
	out, err := GlobalRegistry.Format(map[string]int{"scored": 2}, "json")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("json output should end with a newline")
	}
	var decoded map[string]int
	if err := json.Unmarshal([]byte(out), &decoded); err != nil || decoded["scored"] != 2 {
		t.Errorf("decoded = %v, err = %v", decoded, err)
	}
}

func TestFormatUnknownCombination(t *testing.T) {
	if _, err := GlobalRegistry.Format(map[string]int{}, "text"); err == nil {
		t.Error("expected an error for text output of an unregistered type")
	}
	if _, err := GlobalRegistry.Format(sampleJob(), "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestFormatTotal(t *testing.T) {
	if got := formatTotal(nil); got != "disqualified" {
		t.Errorf("formatTotal(nil) = %q", got)
	}
	if got := formatTotal(ptr(71.25)); got != "71.2" && got != "71.3" {
		t.Errorf("formatTotal(71.25) = %q", got)
	}
	if got := formatWeight(100); got != "100" {
		t.Errorf("formatWeight(100) = %q", got)
	}
}
