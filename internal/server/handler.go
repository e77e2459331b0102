package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"recroai/internal/analytics"
	"recroai/internal/errors"
	"recroai/internal/jobs"
	"recroai/internal/notify"
	"recroai/internal/observability"
	"recroai/internal/profile"
	"recroai/internal/rubric"
	"recroai/internal/types"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultInterviewTopN = 5

// PutJobRequest defines or replaces a job. The rubric is kept raw so an
// object of categories keeps its key order.
type PutJobRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Rubric      json.RawMessage `json:"rubric"`
}

// CreateRunRequest selects the candidates of a scoring run. Omitting
// candidateIds scores every stored candidate of the job.
type CreateRunRequest struct {
	CandidateIDs []string `json:"candidateIds"`
	Force        bool     `json:"force"`
	Async        bool     `json:"async"`
}

// ShortlistResponse is the ranked view of a job
type ShortlistResponse struct {
	JobID         string              `json:"jobId"`
	RubricVersion string              `json:"rubricVersion"`
	Candidates    []types.ScoreRecord `json:"candidates"`
	Stale         int                 `json:"stale"`
}

// JobNotificationsRequest asks for decision messages for a job's shortlist
type JobNotificationsRequest struct {
	TopN             int                     `json:"topN"`
	InterviewDetails *types.InterviewDetails `json:"interviewDetails,omitempty"`
}

// ComposeRequest renders one notification, optionally with a custom template
type ComposeRequest struct {
	Notification types.Notification `json:"notification"`
	Template     string             `json:"template,omitempty"`
}

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Jobs.List())
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(mux.Vars(r)["jobID"])
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// putJobHandler validates the rubric and stores the job. The response
// carries the normalised rubric, its version and any weight adjustments.
func (s *Server) putJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]

	var req PutJobRequest
	if err := parseJSONRequest(r, &req, false); err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	if len(bytes.TrimSpace(req.Rubric)) == 0 {
		s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeValidation, "rubric is required", nil), nil)
		return
	}
	input, err := rubric.ParseJSON(req.Rubric)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}

	job, err := s.deps.Jobs.Put(jobs.Definition{
		ID:          jobID,
		Title:       req.Title,
		Description: req.Description,
		Rubric:      input,
	})
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) submitCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]

	var body json.RawMessage
	if err := parseJSONRequest(r, &body, false); err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	candidates, err := profile.DecodeCandidates(body)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	for i := range candidates {
		candidates[i].JobID = jobID
	}

	if err := s.deps.Scoring.SubmitCandidates(r.Context(), jobID, candidates); err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": jobID, "accepted": len(candidates)})
}

// createRunHandler starts a scoring run. Synchronous runs answer with the
// final report; async runs answer 202 with the initial snapshot.
func (s *Server) createRunHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("recroai.api").Start(r.Context(), "api.runs.create")
		defer span.End()

		jobID := mux.Vars(r)["jobID"]
		var req CreateRunRequest
		if err := parseJSONRequest(r, &req, true); err != nil {
			s.writeAppError(w, r, err, nil)
			return
		}
		if async, err := strconv.ParseBool(r.URL.Query().Get("async")); err == nil {
			req.Async = async
		}

		span.SetAttributes(
			attribute.String("job_id", jobID),
			attribute.Int("request.candidates", len(req.CandidateIDs)),
			attribute.Bool("request.force", req.Force),
			attribute.Bool("request.async", req.Async),
		)

		if req.Async {
			report, err := s.deps.Scoring.StartScoring(ctx, jobID, req.CandidateIDs, req.Force)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, errors.CodeOf(err))
				s.writeAppError(w, r, err, nil)
				return
			}
			w.Header().Set("Location", "/runs/"+report.RunID)
			writeJSON(w, http.StatusAccepted, report)
			return
		}

		report, err := s.deps.Scoring.RunScoring(ctx, jobID, req.CandidateIDs, req.Force)
		span.SetAttributes(
			attribute.String("run.status", string(report.Status)),
			attribute.Int("run.scored", len(report.Scored)),
			attribute.Int("run.failed", len(report.Failed)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errors.CodeOf(err))
			var run *types.RunReport
			if report.RunID != "" {
				run = &report
			}
			s.writeAppError(w, r, err, run)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) activeRunsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scoring.ActiveRuns())
}

func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Scoring.Run(mux.Vars(r)["runID"])
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) cancelRunHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Scoring.CancelRun(mux.Vars(r)["runID"])
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusAccepted, report)
}

// shortlistHandler lists current records in rank order; ?limit=N trims it
func (s *Server) shortlistHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}

	res, err := s.deps.Scoring.Results(r.Context(), jobID)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	_, ranked, err := s.deps.Scoring.Ranked(r.Context(), jobID)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []types.ScoreRecord{}
	}

	writeJSON(w, http.StatusOK, ShortlistResponse{
		JobID:         jobID,
		RubricVersion: res.Job.Rubric.Version,
		Candidates:    ranked,
		Stale:         len(res.Stale),
	})
}

func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Scoring.Results(r.Context(), mux.Vars(r)["jobID"])
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(res.Current))
}

// jobNotificationsHandler suggests decisions for the shortlist and renders
// a message for each. Candidates without an email get the decision but no
// message.
func (s *Server) jobNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]

	var req JobNotificationsRequest
	if err := parseJSONRequest(r, &req, true); err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	if req.TopN <= 0 {
		req.TopN = s.interviewTopN()
	}

	job, ranked, err := s.deps.Scoring.Ranked(r.Context(), jobID)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	profiles, err := s.deps.Scoring.Profiles(r.Context(), jobID)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}

	decisions := notify.DecisionsFromShortlist(job, ranked, req.TopN, notify.ContactsOf(profiles), req.InterviewDetails)
	writeJSON(w, http.StatusOK, s.deps.Composer.ComposeAll(decisions))
}

func (s *Server) composeHandler(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if err := parseJSONRequest(r, &req, false); err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}

	msg, err := s.deps.Composer.ComposeWith(req.Notification, req.Template)
	if err != nil {
		s.writeAppError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) interviewTopN() int {
	if s.AppConfig != nil && s.AppConfig.App.InterviewTopN > 0 {
		return s.AppConfig.App.InterviewTopN
	}
	return defaultInterviewTopN
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(errors.ErrCodeInvalidRequest, name+" must be a non-negative integer", err)
	}
	return n, nil
}
