package notify

import (
	"recroai/internal/types"
)

// Contact is how a candidate is addressed
type Contact struct {
	Name  string
	Email string
}

// ContactsOf indexes profile names and emails by candidate id
func ContactsOf(profiles []types.CandidateProfile) map[string]Contact {
	contacts := make(map[string]Contact, len(profiles))
	for _, p := range profiles {
		contacts[p.ID] = Contact{Name: p.Name, Email: p.Email}
	}
	return contacts
}

// DecisionsFromShortlist suggests an interview for the first topN passing
// candidates of ranked and a rejection for everyone else, disqualified
// candidates included. ranked must already be in shortlist order.
func DecisionsFromShortlist(job types.Job, ranked []types.ScoreRecord, topN int, contacts map[string]Contact, details *types.InterviewDetails) []types.Notification {
	out := make([]types.Notification, 0, len(ranked))
	invited := 0
	for _, r := range ranked {
		kind := types.DecisionRejection
		if r.HardFilterPassed && r.TotalScore != nil && invited < topN {
			kind = types.DecisionInterview
			invited++
		}

		contact := contacts[r.CandidateID]
		name := contact.Name
		if name == "" {
			name = r.CandidateName
		}

		n := types.Notification{
			CandidateID:    r.CandidateID,
			CandidateName:  name,
			CandidateEmail: contact.Email,
			JobID:          job.ID,
			JobTitle:       job.Title,
			DecisionKind:   kind,
		}
		if kind == types.DecisionInterview && details != nil {
			d := *details
			n.InterviewDetails = &d
		}
		out = append(out, n)
	}
	return out
}

// Decision pairs a suggested decision with its rendered message. Error is
// set instead of Message when the notification cannot be composed.
type Decision struct {
	Notification types.Notification `json:"notification"`
	Message      *Message           `json:"message,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// ComposeAll renders every notification. A failure is recorded on its
// decision and does not stop the others.
func (c *Composer) ComposeAll(notifications []types.Notification) []Decision {
	out := make([]Decision, 0, len(notifications))
	for _, n := range notifications {
		d := Decision{Notification: n}
		if msg, err := c.Compose(n); err != nil {
			d.Error = err.Error()
		} else {
			d.Message = &msg
		}
		out = append(out, d)
	}
	return out
}
