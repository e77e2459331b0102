// Package notify composes decision messages for candidates. Delivery is
// left to an external mailer.
package notify

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"recroai/internal/errors"
	"recroai/internal/types"
)

const defaultInterviewTemplate = `Dear {{ .CandidateName }},

Congratulations! We are pleased to invite you for an interview for the {{ .JobTitle }} position.
{{ if or .InterviewDate .InterviewTime .InterviewLocation }}
{{ with .InterviewDate }}Interview Date: {{ . }}
{{ end }}{{ with .InterviewTime }}Interview Time: {{ . }}
{{ end }}{{ with .InterviewLocation }}Location: {{ . }}
{{ end }}{{ end }}{{ with .AdditionalInfo }}
{{ . }}
{{ end }}
We look forward to meeting you!

Best regards,
Recruitment Team`

const defaultRejectionTemplate = `Dear {{ .CandidateName }},

Thank you for your interest in the {{ .JobTitle }} position and for the time you invested in your application.

After careful consideration, we have decided to move forward with other candidates whose qualifications more closely match our current needs.
{{ with .Feedback }}
{{ . }}
{{ end }}
We appreciate your interest in our company and wish you the best in your job search.

Best regards,
Recruitment Team`

// Message is a rendered notification ready for a mailer
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// templateData is what templates can reference
type templateData struct {
	CandidateName     string
	JobTitle          string
	InterviewDate     string
	InterviewTime     string
	InterviewLocation string
	AdditionalInfo    string
	Feedback          string
}

// Composer renders notifications from templates
type Composer struct {
	templates map[types.DecisionKind]*template.Template
}

// NewComposer parses the built-in templates, replaced by any non-empty
// entry of overrides.
func NewComposer(overrides map[types.DecisionKind]string) (*Composer, error) {
	sources := map[types.DecisionKind]string{
		types.DecisionInterview: defaultInterviewTemplate,
		types.DecisionRejection: defaultRejectionTemplate,
	}
	for kind, src := range overrides {
		if _, known := sources[kind]; !known {
			return nil, unknownKind(kind)
		}
		if strings.TrimSpace(src) != "" {
			sources[kind] = src
		}
	}

	c := &Composer{templates: make(map[types.DecisionKind]*template.Template, len(sources))}
	for kind, src := range sources {
		tmpl, err := parse(kind, src)
		if err != nil {
			return nil, err
		}
		c.templates[kind] = tmpl
	}
	return c, nil
}

func parse(kind types.DecisionKind, src string) (*template.Template, error) {
	tmpl, err := template.New(string(kind)).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("invalid %s template", kind), err)
	}
	return tmpl, nil
}

// Compose renders n with the composer's template for its decision
func (c *Composer) Compose(n types.Notification) (Message, error) {
	return c.ComposeWith(n, "")
}

// ComposeWith renders n with a one-off template, or the default when custom
// is empty.
func (c *Composer) ComposeWith(n types.Notification, custom string) (Message, error) {
	tmpl, ok := c.templates[n.DecisionKind]
	if !ok {
		return Message{}, unknownKind(n.DecisionKind)
	}
	to := strings.TrimSpace(n.CandidateEmail)
	if to == "" {
		return Message{}, errors.NewValidationError(errors.ErrCodeValidation,
			fmt.Sprintf("candidate %s has no email address", n.CandidateID), nil).
			WithContext("candidate_id", n.CandidateID)
	}
	if strings.TrimSpace(custom) != "" {
		var err error
		if tmpl, err = parse(n.DecisionKind, custom); err != nil {
			return Message{}, err
		}
	}

	data := templateData{
		CandidateName: strings.TrimSpace(n.CandidateName),
		JobTitle:      strings.TrimSpace(n.JobTitle),
		Feedback:      strings.TrimSpace(n.Feedback),
	}
	if data.CandidateName == "" {
		data.CandidateName = "Candidate"
	}
	if d := n.InterviewDetails; d != nil {
		data.InterviewDate = strings.TrimSpace(d.Date)
		data.InterviewTime = strings.TrimSpace(d.Time)
		data.InterviewLocation = strings.TrimSpace(d.Location)
		data.AdditionalInfo = strings.TrimSpace(d.AdditionalInfo)
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return Message{}, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("failed to render %s message", n.DecisionKind), err)
	}

	return Message{
		To:      to,
		Subject: subject(n.DecisionKind, data.JobTitle),
		Body:    tidy(body.String()),
	}, nil
}

func subject(kind types.DecisionKind, jobTitle string) string {
	if kind == types.DecisionInterview {
		return "Interview Invitation - " + jobTitle
	}
	return "Update on Your Application - " + jobTitle
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// tidy collapses runs of blank lines left by empty optional sections
func tidy(s string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(s, "\n\n")) + "\n"
}

func unknownKind(kind types.DecisionKind) error {
	return errors.NewValidationError(errors.ErrCodeValidation,
		fmt.Sprintf("unknown decision kind: %q", kind), nil)
}
