package batch

import (
	"context"
	"fmt"

	"recroai/internal/errors"
	"recroai/internal/profile"
	"recroai/internal/ranking"
	"recroai/internal/store"
	"recroai/internal/types"
)

// JobSource resolves jobs by id
type JobSource interface {
	Get(jobID string) (types.Job, error)
}

// Service is the scoring surface used by the HTTP API and the CLI. It
// resolves jobs and candidates, starts runs and keeps them addressable.
type Service struct {
	jobs       JobSource
	store      store.Store
	controller *Controller
	registry   *Registry
	logger     *errors.Logger
}

// NewService wires a service around a controller
func NewService(jobs JobSource, st store.Store, controller *Controller, registry *Registry, logger *errors.Logger) *Service {
	if registry == nil {
		registry = NewRegistry(0)
	}
	return &Service{
		jobs:       jobs,
		store:      st,
		controller: controller,
		registry:   registry,
		logger:     logger,
	}
}

// Results splits a job's stored records into those computed against the
// current rubric version and stale ones.
type Results struct {
	Job     types.Job
	Current []types.ScoreRecord
	Stale   []types.ScoreRecord
}

// SubmitCandidates stores raw candidates for a known job
func (s *Service) SubmitCandidates(ctx context.Context, jobID string, candidates []types.RawCandidate) error {
	if _, err := s.jobs.Get(jobID); err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "no candidates submitted", nil)
	}
	if err := s.store.PutCandidates(ctx, jobID, candidates); err != nil {
		return err
	}
	s.logger.Info("Candidates submitted", "job_id", jobID, "count", len(candidates))
	return nil
}

// RunScoring scores the given candidates, or every stored candidate of the
// job when candidateIDs is nil, and waits for the report. Oversized requests
// are rejected before any lookup.
func (s *Service) RunScoring(ctx context.Context, jobID string, candidateIDs []string, force bool) (types.RunReport, error) {
	run, err := s.start(ctx, jobID, candidateIDs, force)
	if err != nil {
		return types.RunReport{}, err
	}
	<-run.Done()
	return run.Report(), run.Err()
}

// StartScoring is RunScoring without waiting. The run outlives ctx and is
// stopped with CancelRun.
func (s *Service) StartScoring(ctx context.Context, jobID string, candidateIDs []string, force bool) (types.RunReport, error) {
	run, err := s.start(context.WithoutCancel(ctx), jobID, candidateIDs, force)
	if err != nil {
		return types.RunReport{}, err
	}
	return run.Report(), nil
}

func (s *Service) start(ctx context.Context, jobID string, candidateIDs []string, force bool) (*Run, error) {
	if err := s.controller.CheckCapacity(len(candidateIDs)); err != nil {
		return nil, err
	}
	if candidateIDs != nil && len(candidateIDs) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "candidate id list is empty", nil)
	}

	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.store.GetCandidates(ctx, jobID, candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeNotFound,
			fmt.Sprintf("job %s has no candidates", jobID), nil).WithContext("job_id", jobID)
	}

	run, err := s.controller.Start(ctx, job, candidates, force)
	if err != nil {
		return nil, err
	}
	s.registry.Add(run)
	return run, nil
}

// Run returns the report of a known run
func (s *Service) Run(runID string) (types.RunReport, error) {
	run, ok := s.registry.Get(runID)
	if !ok {
		return types.RunReport{}, runNotFound(runID)
	}
	return run.Report(), nil
}

// CancelRun cancels a run. Cancelling a finished run is a no-op.
func (s *Service) CancelRun(runID string) (types.RunReport, error) {
	run, ok := s.registry.Get(runID)
	if !ok {
		return types.RunReport{}, runNotFound(runID)
	}
	run.Cancel()
	s.logger.Info("Scoring run cancel requested", "run_id", runID)
	return run.Report(), nil
}

// ActiveRuns lists runs that have not finished
func (s *Service) ActiveRuns() []types.RunReport {
	return s.registry.Active()
}

// Results returns the stored records of a job split by rubric version
func (s *Service) Results(ctx context.Context, jobID string) (Results, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return Results{}, err
	}
	records, err := s.store.ListScores(ctx, jobID)
	if err != nil {
		return Results{}, err
	}

	res := Results{Job: job}
	for _, r := range records {
		if r.RubricVersion == job.Rubric.Version {
			res.Current = append(res.Current, r)
		} else {
			res.Stale = append(res.Stale, r)
		}
	}
	return res, nil
}

// Ranked returns the job's current records in shortlist order, disqualified
// candidates last.
func (s *Service) Ranked(ctx context.Context, jobID string) (types.Job, []types.ScoreRecord, error) {
	res, err := s.Results(ctx, jobID)
	if err != nil {
		return types.Job{}, nil, err
	}
	return res.Job, ranking.Rank(res.Current), nil
}

// Profiles normalises every stored candidate of a job, in submission order
func (s *Service) Profiles(ctx context.Context, jobID string) ([]types.CandidateProfile, error) {
	if _, err := s.jobs.Get(jobID); err != nil {
		return nil, err
	}
	raw, err := s.store.GetCandidates(ctx, jobID, nil)
	if err != nil {
		return nil, err
	}
	profiles := make([]types.CandidateProfile, len(raw))
	for i, c := range raw {
		profiles[i] = profile.Normalize(c)
	}
	return profiles, nil
}

func runNotFound(runID string) error {
	return errors.NewValidationError(errors.ErrCodeNotFound,
		fmt.Sprintf("run not found: %s", runID), nil).WithContext("run_id", runID)
}
