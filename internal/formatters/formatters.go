package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"recroai/internal/analytics"
	"recroai/internal/notify"
	"recroai/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// Shortlist is a job's current records in rank order
type Shortlist struct {
	Job        types.Job           `json:"job"`
	Candidates []types.ScoreRecord `json:"candidates"`
	Stale      int                 `json:"stale"`
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Job", &JobTextFormatter{})
	registry.RegisterFormatter("markdown", "Job", &JobMarkdownFormatter{})
	registry.RegisterFormatter("text", "RunReport", &RunTextFormatter{})
	registry.RegisterFormatter("markdown", "RunReport", &RunMarkdownFormatter{})
	registry.RegisterFormatter("text", "Shortlist", &ShortlistTextFormatter{})
	registry.RegisterFormatter("markdown", "Shortlist", &ShortlistMarkdownFormatter{})
	registry.RegisterFormatter("text", "Summary", &SummaryTextFormatter{})
	registry.RegisterFormatter("markdown", "Summary", &SummaryMarkdownFormatter{})
	registry.RegisterFormatter("text", "Decisions", &DecisionsTextFormatter{})
	registry.RegisterFormatter("markdown", "Decisions", &DecisionsMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Job:
		return "Job"
	case types.RunReport:
		return "RunReport"
	case Shortlist:
		return "Shortlist"
	case analytics.Summary:
		return "Summary"
	case []notify.Decision:
		return "Decisions"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// JobTextFormatter prints a validated rubric
type JobTextFormatter struct{}

func (f *JobTextFormatter) Format(data any) (string, error) {
	job, ok := data.(types.Job)
	if !ok {
		return "", fmt.Errorf("expected Job, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== JOB %s ===\n", job.ID))
	output.WriteString(fmt.Sprintf("Title: %s\n", job.Title))
	output.WriteString(fmt.Sprintf("Rubric version: %s\n\n", job.Rubric.Version))

	output.WriteString("=== CATEGORIES ===\n")
	for i, c := range job.Rubric.Categories {
		if c.IsHardFilter {
			output.WriteString(fmt.Sprintf("%d. %s [hard filter]\n", i+1, c.Name))
		} else {
			output.WriteString(fmt.Sprintf("%d. %s (weight %s)\n", i+1, c.Name, formatWeight(c.Weight)))
		}
		if c.RequirementText != "" {
			output.WriteString("   Requirement: ")
			output.WriteString(c.RequirementText)
			output.WriteString("\n")
		}
	}

	if len(job.Rubric.Adjustments) > 0 {
		output.WriteString("\n=== ADJUSTMENTS ===\n")
		for _, a := range job.Rubric.Adjustments {
			output.WriteString("- ")
			output.WriteString(a)
			output.WriteString("\n")
		}
	}
	return output.String(), nil
}

func (f *JobTextFormatter) SupportedType() string {
	return "Job"
}

// JobMarkdownFormatter renders a validated rubric as a table
type JobMarkdownFormatter struct{}

func (f *JobMarkdownFormatter) Format(data any) (string, error) {
	job, ok := data.(types.Job)
	if !ok {
		return "", fmt.Errorf("expected Job, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# %s\n\n", job.Title))
	output.WriteString(fmt.Sprintf("**Job:** `%s`  \n**Rubric version:** `%s`\n\n", job.ID, job.Rubric.Version))
	output.WriteString("| # | Category | Weight | Requirement |\n|---|---|---|---|\n")
	for i, c := range job.Rubric.Categories {
		weight := formatWeight(c.Weight)
		if c.IsHardFilter {
			weight = "hard filter"
		}
		output.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", i+1, c.Name, weight, escapeCell(c.RequirementText)))
	}

	if len(job.Rubric.Adjustments) > 0 {
		output.WriteString("\n## Adjustments\n\n")
		for _, a := range job.Rubric.Adjustments {
			output.WriteString(fmt.Sprintf("- %s\n", a))
		}
	}
	return output.String(), nil
}

func (f *JobMarkdownFormatter) SupportedType() string {
	return "Job"
}

// RunTextFormatter prints a run report
type RunTextFormatter struct{}

func (f *RunTextFormatter) Format(data any) (string, error) {
	report, ok := data.(types.RunReport)
	if !ok {
		return "", fmt.Errorf("expected RunReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== RUN %s ===\n", report.RunID))
	output.WriteString(fmt.Sprintf("Job: %s (rubric %s)\n", report.JobID, report.RubricVersion))
	output.WriteString(fmt.Sprintf("Status: %s\n", report.Status))
	if report.Error != "" {
		output.WriteString(fmt.Sprintf("Error: %s\n", report.Error))
	}
	output.WriteString(fmt.Sprintf("Scored: %d  Skipped: %d  Failed: %d\n\n",
		len(report.Scored)-len(report.Skipped), len(report.Skipped), len(report.Failed)))

	if len(report.Scored) > 0 {
		output.WriteString("=== RECORDS ===\n")
		for _, r := range report.Scored {
			output.WriteString(fmt.Sprintf("- %s: %s%s\n", candidateLabel(r), formatTotal(r.TotalScore), flags(r)))
		}
	}
	if len(report.Failed) > 0 {
		output.WriteString("\n=== FAILURES ===\n")
		for _, fc := range report.Failed {
			output.WriteString(fmt.Sprintf("- %s [%s] %s\n", fc.CandidateID, fc.Code, fc.Reason))
		}
	}
	return output.String(), nil
}

func (f *RunTextFormatter) SupportedType() string {
	return "RunReport"
}

// RunMarkdownFormatter renders a run report
type RunMarkdownFormatter struct{}

func (f *RunMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(types.RunReport)
	if !ok {
		return "", fmt.Errorf("expected RunReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Scoring Run `%s`\n\n", report.RunID))
	output.WriteString(fmt.Sprintf("**Job:** `%s`  \n**Rubric version:** `%s`  \n**Status:** %s\n\n",
		report.JobID, report.RubricVersion, report.Status))
	if report.Error != "" {
		output.WriteString(fmt.Sprintf("> %s\n\n", report.Error))
	}

	if len(report.Scored) > 0 {
		output.WriteString("## Records\n\n| Candidate | Total | Notes |\n|---|---|---|\n")
		for _, r := range report.Scored {
			output.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				escapeCell(candidateLabel(r)), formatTotal(r.TotalScore), strings.TrimSpace(flags(r))))
		}
		output.WriteString("\n")
	}
	if len(report.Failed) > 0 {
		output.WriteString("## Failures\n\n")
		for _, fc := range report.Failed {
			output.WriteString(fmt.Sprintf("- **%s** `%s`: %s\n", fc.CandidateID, fc.Code, fc.Reason))
		}
	}
	return output.String(), nil
}

func (f *RunMarkdownFormatter) SupportedType() string {
	return "RunReport"
}

// ShortlistTextFormatter prints the ranking of a job
type ShortlistTextFormatter struct{}

func (f *ShortlistTextFormatter) Format(data any) (string, error) {
	list, ok := data.(Shortlist)
	if !ok {
		return "", fmt.Errorf("expected Shortlist, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== SHORTLIST: %s ===\n", list.Job.Title))
	output.WriteString(fmt.Sprintf("Rubric version: %s\n\n", list.Job.Rubric.Version))
	if len(list.Candidates) == 0 {
		output.WriteString("No scored candidates.\n")
	}
	for i, r := range list.Candidates {
		output.WriteString(fmt.Sprintf("%2d. %-30s %s%s\n", i+1, candidateLabel(r), formatTotal(r.TotalScore), flags(r)))
		for _, cs := range r.CategoryScores {
			output.WriteString(fmt.Sprintf("      %-20s %5.1f\n", cs.CategoryName, cs.Score))
		}
	}
	if list.Stale > 0 {
		output.WriteString(fmt.Sprintf("\n%d record(s) were scored against an older rubric and need a rescore.\n", list.Stale))
	}
	return output.String(), nil
}

func (f *ShortlistTextFormatter) SupportedType() string {
	return "Shortlist"
}

// ShortlistMarkdownFormatter renders the ranking of a job
type ShortlistMarkdownFormatter struct{}

func (f *ShortlistMarkdownFormatter) Format(data any) (string, error) {
	list, ok := data.(Shortlist)
	if !ok {
		return "", fmt.Errorf("expected Shortlist, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Shortlist: %s\n\n", list.Job.Title))
	output.WriteString("| Rank | Candidate | Total | Strengths | Weaknesses | Notes |\n|---|---|---|---|---|---|\n")
	for i, r := range list.Candidates {
		output.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n", i+1,
			escapeCell(candidateLabel(r)), formatTotal(r.TotalScore),
			strings.Join(r.Strengths, ", "), strings.Join(r.Weaknesses, ", "),
			strings.TrimSpace(flags(r))))
	}
	if list.Stale > 0 {
		output.WriteString(fmt.Sprintf("\n_%d stale record(s) omitted._\n", list.Stale))
	}
	return output.String(), nil
}

func (f *ShortlistMarkdownFormatter) SupportedType() string {
	return "Shortlist"
}

// SummaryTextFormatter prints job analytics
type SummaryTextFormatter struct{}

func (f *SummaryTextFormatter) Format(data any) (string, error) {
	s, ok := data.(analytics.Summary)
	if !ok {
		return "", fmt.Errorf("expected Summary, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== ANALYTICS ===\n")
	output.WriteString(fmt.Sprintf("Records: %d  Scored: %d  Disqualified: %d\n", s.Records, s.Scored, s.Disqualified))
	output.WriteString(fmt.Sprintf("Average score: %.1f\n", s.AverageScore))
	output.WriteString(fmt.Sprintf("Authenticity: %d suspicious, %d clean\n\n", s.Suspicious, s.Clean))

	output.WriteString("Distribution:\n")
	for _, b := range s.Distribution {
		output.WriteString(fmt.Sprintf("  %-7s %s %d\n", b.Range, strings.Repeat("#", b.Count), b.Count))
	}

	if len(s.Top) > 0 {
		output.WriteString("\nTop candidates:\n")
		for i, c := range s.Top {
			suspicious := ""
			if c.Suspicious {
				suspicious = " (suspicious)"
			}
			output.WriteString(fmt.Sprintf("  %d. %s %.1f%s\n", i+1, nameOr(c.Name, c.CandidateID), c.Score, suspicious))
		}
	}
	return output.String(), nil
}

func (f *SummaryTextFormatter) SupportedType() string {
	return "Summary"
}

// SummaryMarkdownFormatter renders job analytics
type SummaryMarkdownFormatter struct{}

func (f *SummaryMarkdownFormatter) Format(data any) (string, error) {
	s, ok := data.(analytics.Summary)
	if !ok {
		return "", fmt.Errorf("expected Summary, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Analytics\n\n")
	output.WriteString(fmt.Sprintf("- **Records:** %d\n- **Scored:** %d\n- **Disqualified:** %d\n- **Average score:** %.1f\n- **Suspicious profiles:** %d\n\n",
		s.Records, s.Scored, s.Disqualified, s.AverageScore, s.Suspicious))

	output.WriteString("## Distribution\n\n| Range | Count |\n|---|---|\n")
	for _, b := range s.Distribution {
		output.WriteString(fmt.Sprintf("| %s | %d |\n", b.Range, b.Count))
	}

	if len(s.Top) > 0 {
		output.WriteString("\n## Top Candidates\n\n")
		for i, c := range s.Top {
			output.WriteString(fmt.Sprintf("%d. %s (%.1f)\n", i+1, nameOr(c.Name, c.CandidateID), c.Score))
		}
	}
	return output.String(), nil
}

func (f *SummaryMarkdownFormatter) SupportedType() string {
	return "Summary"
}

// DecisionsTextFormatter prints composed decision messages
type DecisionsTextFormatter struct{}

func (f *DecisionsTextFormatter) Format(data any) (string, error) {
	decisions, ok := data.([]notify.Decision)
	if !ok {
		return "", fmt.Errorf("expected []notify.Decision, got %T", data)
	}

	var output strings.Builder
	for i, d := range decisions {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("=== %s: %s ===\n", strings.ToUpper(string(d.Notification.DecisionKind)),
			nameOr(d.Notification.CandidateName, d.Notification.CandidateID)))
		if d.Message == nil {
			output.WriteString(fmt.Sprintf("Not composed: %s\n", d.Error))
			continue
		}
		output.WriteString(fmt.Sprintf("To: %s\nSubject: %s\n\n%s\n", d.Message.To, d.Message.Subject, d.Message.Body))
	}
	return output.String(), nil
}

func (f *DecisionsTextFormatter) SupportedType() string {
	return "Decisions"
}

// DecisionsMarkdownFormatter renders composed decision messages
type DecisionsMarkdownFormatter struct{}

func (f *DecisionsMarkdownFormatter) Format(data any) (string, error) {
	decisions, ok := data.([]notify.Decision)
	if !ok {
		return "", fmt.Errorf("expected []notify.Decision, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Candidate Notifications\n\n")
	for _, d := range decisions {
		output.WriteString(fmt.Sprintf("## %s (%s)\n\n", nameOr(d.Notification.CandidateName, d.Notification.CandidateID), d.Notification.DecisionKind))
		if d.Message == nil {
			output.WriteString(fmt.Sprintf("_Not composed: %s_\n\n", d.Error))
			continue
		}
		output.WriteString(fmt.Sprintf("**To:** %s  \n**Subject:** %s\n\n```\n%s\n```\n\n", d.Message.To, d.Message.Subject, d.Message.Body))
	}
	return output.String(), nil
}

func (f *DecisionsMarkdownFormatter) SupportedType() string {
	return "Decisions"
}

func formatWeight(w float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", w), "0"), ".")
}

func formatTotal(total *float64) string {
	if total == nil {
		return "disqualified"
	}
	return fmt.Sprintf("%.1f", *total)
}

func candidateLabel(r types.ScoreRecord) string {
	if r.CandidateName == "" {
		return r.CandidateID
	}
	return fmt.Sprintf("%s (%s)", r.CandidateName, r.CandidateID)
}

func flags(r types.ScoreRecord) string {
	if r.Authenticity.IsSuspicious {
		return fmt.Sprintf("  [suspicious %.2f]", r.Authenticity.RiskScore)
	}
	return ""
}

func nameOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
