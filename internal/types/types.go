package types

import (
	"encoding/json"
	"slices"
	"time"
)

// RubricCategory is one criterion of a job rubric.
type RubricCategory struct {
	Name            string  `json:"name" yaml:"name"`
	Weight          float64 `json:"weight" yaml:"weight"`
	IsHardFilter    bool    `json:"isHardFilter" yaml:"isHardFilter"`
	RequirementText string  `json:"requirementText" yaml:"requirementText"`
}

// Rubric is a validated, immutable set of categories for one job. Weighted
// categories sum to 100; hard filters carry weight 0.
type Rubric struct {
	Version     string           `json:"version"`
	Categories  []RubricCategory `json:"categories"`
	Adjustments []string         `json:"adjustments,omitempty"`
}

// HardFilters returns the hard-filter categories in rubric order.
func (r Rubric) HardFilters() []RubricCategory {
	var out []RubricCategory
	for _, c := range r.Categories {
		if c.IsHardFilter {
			out = append(out, c)
		}
	}
	return out
}

// Weighted returns the soft-scored categories in rubric order.
func (r Rubric) Weighted() []RubricCategory {
	var out []RubricCategory
	for _, c := range r.Categories {
		if !c.IsHardFilter {
			out = append(out, c)
		}
	}
	return out
}

// Job couples a job posting with its rubric.
type Job struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Rubric      Rubric `json:"rubric"`
}

// RawCandidate is candidate material as received from ingestion. Material is
// kept verbatim and never interpreted beyond normalisation.
type RawCandidate struct {
	ID       string          `json:"id"`
	JobID    string          `json:"jobId"`
	Material json.RawMessage `json:"material"`
}

// CandidateProfile is the normalised, read-only view of a candidate.
type CandidateProfile struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	EducationText  string          `json:"educationText"`
	ExperienceText string          `json:"experienceText"`
	SkillsText     string          `json:"skillsText"`
	SummaryText    string          `json:"summaryText"`
	RawMaterial    json.RawMessage `json:"rawMaterial,omitempty"`
}

// TextFields returns the normalised free-text fields keyed by field name.
func (p CandidateProfile) TextFields() []ProfileField {
	return []ProfileField{
		{Name: "name", Text: p.Name},
		{Name: "email", Text: p.Email},
		{Name: "education", Text: p.EducationText},
		{Name: "experience", Text: p.ExperienceText},
		{Name: "skills", Text: p.SkillsText},
		{Name: "summary", Text: p.SummaryText},
	}
}

// ProfileField is a named text field of a profile.
type ProfileField struct {
	Name string
	Text string
}

// CategoryScore is a delegate's soft score for one category.
type CategoryScore struct {
	CategoryName string  `json:"categoryName"`
	Score        float64 `json:"score"`
	Rationale    string  `json:"rationale"`
}

// FilterResult is a delegate's verdict on one hard filter.
type FilterResult struct {
	CategoryName string `json:"categoryName"`
	Passed       bool   `json:"passed"`
	Rationale    string `json:"rationale"`
}

// AuthenticityAssessment is the manipulation risk of a profile.
type AuthenticityAssessment struct {
	RiskScore      float64  `json:"riskScore"`
	IsSuspicious   bool     `json:"isSuspicious"`
	MatchedSignals []string `json:"matchedSignals"`
}

// AuthenticityReview is a delegate's second opinion on a flagged profile.
type AuthenticityReview struct {
	RiskScore    float64
	IsSuspicious bool
	Reason       string
}

// WithReview folds a second opinion into the heuristic assessment. The risk
// is the larger of the two and a review never clears a suspicious profile.
func (a AuthenticityAssessment) WithReview(r AuthenticityReview) AuthenticityAssessment {
	out := AuthenticityAssessment{
		RiskScore:      max(a.RiskScore, r.RiskScore),
		IsSuspicious:   a.IsSuspicious || r.IsSuspicious,
		MatchedSignals: slices.Clone(a.MatchedSignals),
	}
	if r.Reason != "" {
		out.MatchedSignals = append(out.MatchedSignals, "delegate review: "+r.Reason)
	}
	return out
}

// ScoreRecord is the complete evaluation of a candidate against a rubric
// version. It is written whole or not at all.
type ScoreRecord struct {
	CandidateID      string                 `json:"candidateId"`
	CandidateName    string                 `json:"candidateName,omitempty"`
	JobID            string                 `json:"jobId"`
	RubricVersion    string                 `json:"rubricVersion"`
	TotalScore       *float64               `json:"totalScore"`
	CategoryScores   []CategoryScore        `json:"categoryScores"`
	FilterResults    []FilterResult         `json:"filterResults,omitempty"`
	Authenticity     AuthenticityAssessment `json:"authenticity"`
	HardFilterPassed bool                   `json:"hardFilterPassed"`
	Strengths        []string               `json:"strengths,omitempty"`
	Weaknesses       []string               `json:"weaknesses,omitempty"`
	ComputedAt       time.Time              `json:"computedAt"`
}

// RunStatus is the lifecycle state of a scoring run.
type RunStatus string

const (
	RunPending            RunStatus = "pending"
	RunInProgress         RunStatus = "in_progress"
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
	RunFailed             RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunPartiallyCompleted || s == RunFailed
}

// FailedCandidate explains why a candidate produced no new record.
type FailedCandidate struct {
	CandidateID string `json:"candidateId"`
	Code        string `json:"code,omitempty"`
	Reason      string `json:"reason"`
}

// RunReport summarises a scoring run. Scored, Failed and Skipped follow
// submission order.
type RunReport struct {
	RunID         string            `json:"runId"`
	JobID         string            `json:"jobId"`
	RubricVersion string            `json:"rubricVersion"`
	Status        RunStatus         `json:"status"`
	Scored        []ScoreRecord     `json:"scored"`
	Failed        []FailedCandidate `json:"failed"`
	Skipped       []string          `json:"skipped,omitempty"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt,omitempty"`
}

// DecisionKind is the outcome communicated to a candidate.
type DecisionKind string

const (
	DecisionInterview DecisionKind = "interview"
	DecisionRejection DecisionKind = "rejection"
)

// InterviewDetails are optional logistics for an interview invitation.
type InterviewDetails struct {
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
	Location       string `json:"location,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	CandidateID      string            `json:"candidateId"`
	CandidateName    string            `json:"candidateName"`
	CandidateEmail   string            `json:"candidateEmail"`
	JobID            string            `json:"jobId"`
	JobTitle         string            `json:"jobTitle"`
	DecisionKind     DecisionKind      `json:"decisionKind"`
	InterviewDetails *InterviewDetails `json:"interviewDetails,omitempty"`
	Feedback         string            `json:"feedback,omitempty"`
}
