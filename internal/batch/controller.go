// Package batch runs candidates of one job through hard filters, soft
// scoring and authenticity checks, and records the results.
package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"recroai/internal/ai"
	"recroai/internal/errors"
	"recroai/internal/profile"
	"recroai/internal/ranking"
	"recroai/internal/store"
	"recroai/internal/types"
)

// Assessor rates a profile's manipulation risk. It must not fail.
type Assessor interface {
	Assess(p types.CandidateProfile) types.AuthenticityAssessment
}

// Observer is told about every finished run.
type Observer interface {
	ObserveRun(ctx context.Context, report types.RunReport)
}

// Controller fans candidates out to workers and funnels their results to a
// single collector, which is the only writer to the store during a run.
type Controller struct {
	delegate ai.Delegate
	store    store.Store
	assessor Assessor
	reviewer ai.AuthenticityReviewer

	maxCandidates        int
	delegateConcurrency  int
	candidateConcurrency int
	callTimeout          time.Duration
	runTimeout           time.Duration

	logger   *errors.Logger
	observer Observer
	now      func() time.Time
}

// NewController creates a controller with configuration options.
func NewController(delegate ai.Delegate, st store.Store, assessor Assessor, opts ...Option) *Controller {
	c := &Controller{
		delegate:             delegate,
		store:                st,
		assessor:             assessor,
		maxCandidates:        DefaultMaxCandidates,
		delegateConcurrency:  DefaultDelegateConcurrency,
		candidateConcurrency: DefaultCandidateConcurrency,
		callTimeout:          DefaultCallTimeout,
		logger:               errors.Nop(),
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxCandidates returns the per-run cap
func (c *Controller) MaxCandidates() int { return c.maxCandidates }

// CheckCapacity rejects requests above the per-run cap
func (c *Controller) CheckCapacity(n int) error {
	if n <= c.maxCandidates {
		return nil
	}
	return errors.NewCapacityError(
		fmt.Sprintf("%d candidates requested; a run accepts at most %d", n, c.maxCandidates)).
		WithContext("requested", n).
		WithContext("limit", c.maxCandidates)
}

// Run scores candidates for job and blocks until the run finishes. The
// report is always returned once the run started; the error is the cause of
// an aborted run.
func (c *Controller) Run(ctx context.Context, job types.Job, candidates []types.RawCandidate, force bool) (types.RunReport, error) {
	run, err := c.Start(ctx, job, candidates, force)
	if err != nil {
		return types.RunReport{}, err
	}
	<-run.Done()
	return run.Report(), run.Err()
}

// Start validates the request and runs it in the background. Cancelling ctx
// cancels the run.
func (c *Controller) Start(ctx context.Context, job types.Job, candidates []types.RawCandidate, force bool) (*Run, error) {
	if err := c.CheckCapacity(len(candidates)); err != nil {
		return nil, err
	}
	if err := checkUnique(candidates); err != nil {
		return nil, err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if c.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	id := uuid.NewString()
	run := &Run{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		report: types.RunReport{
			RunID:         id,
			JobID:         job.ID,
			RubricVersion: job.Rubric.Version,
			Status:        types.RunPending,
			Scored:        []types.ScoreRecord{},
			Failed:        []types.FailedCandidate{},
			StartedAt:     c.now(),
		},
	}

	go c.execute(runCtx, run, job, slices.Clone(candidates), force)
	return run, nil
}

func checkUnique(candidates []types.RawCandidate) error {
	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if seen[cand.ID] {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("candidate %s requested twice", cand.ID), nil)
		}
		seen[cand.ID] = true
	}
	return nil
}

// outcome is what a worker hands to the collector for one candidate.
type outcome struct {
	index       int
	candidateID string
	record      *types.ScoreRecord
	skipped     bool
	err         error
}

func (o outcome) failure() types.FailedCandidate {
	return types.FailedCandidate{
		CandidateID: o.candidateID,
		Code:        errors.CodeOf(o.err),
		Reason:      reasonOf(o.err),
	}
}

func reasonOf(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (c *Controller) execute(ctx context.Context, run *Run, job types.Job, candidates []types.RawCandidate, force bool) {
	defer close(run.done)
	defer run.cancel()

	logger := c.logger.With("run_id", run.ID(), "job_id", job.ID)
	run.setStatus(types.RunInProgress)
	logger.Info("Scoring run started",
		"candidates", len(candidates),
		"rubric_version", job.Rubric.Version,
		"force", force)

	sem := semaphore.NewWeighted(int64(c.delegateConcurrency))
	work := make(chan int)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for range min(c.candidateConcurrency, len(candidates)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results <- c.evaluate(ctx, sem, job, candidates[i], i, force)
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range candidates {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes, fatal := c.collect(ctx, run, results, logger)
	report := c.finalReport(ctx, run, candidates, outcomes, fatal)
	run.finish(report, runError(ctx, fatal))

	logger.Info("Scoring run finished",
		"status", report.Status,
		"scored", len(report.Scored)-len(report.Skipped),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if c.observer != nil {
		c.observer.ObserveRun(context.WithoutCancel(ctx), report)
	}
}

// collect is the single writer. It persists every complete record, tallies
// outcomes by submission index and aborts the run on a fatal error.
func (c *Controller) collect(ctx context.Context, run *Run, results <-chan outcome, logger *errors.Logger) (map[int]outcome, error) {
	outcomes := make(map[int]outcome)
	writeCtx := context.WithoutCancel(ctx)
	var fatal error

	for o := range results {
		if o.err == nil && !o.skipped {
			if err := c.store.PutScore(writeCtx, *o.record); err != nil {
				o.err = errors.NewStoreError(errors.ErrCodeStoreFailed,
					"failed to save score record", err)
				o.record = nil
			}
		}

		if o.err != nil {
			if errors.IsRunFatal(o.err) && fatal == nil {
				fatal = o.err
				logger.LogError(o.err, "Aborting scoring run", "candidate_id", o.candidateID)
				run.cancel()
			} else if !errors.HasCode(o.err, errors.ErrCodeRunCancelled) {
				logger.Warn("Candidate failed",
					"candidate_id", o.candidateID,
					"error_code", errors.CodeOf(o.err),
					"reason", reasonOf(o.err))
			}
		}

		outcomes[o.index] = o
		run.progress(o)
	}
	return outcomes, fatal
}

// finalReport lists candidates in submission order. Candidates that never
// produced an outcome were not reached before the run was cancelled.
func (c *Controller) finalReport(ctx context.Context, run *Run, candidates []types.RawCandidate, outcomes map[int]outcome, fatal error) types.RunReport {
	report := run.Report()
	report.Scored = []types.ScoreRecord{}
	report.Failed = []types.FailedCandidate{}
	report.Skipped = nil

	aborted := abortReason(ctx, fatal)
	for i, cand := range candidates {
		o, ok := outcomes[i]
		switch {
		case !ok:
			report.Failed = append(report.Failed, aborted.forCandidate(cand.ID))
		case fatal != nil && errors.HasCode(o.err, errors.ErrCodeRunCancelled):
			report.Failed = append(report.Failed, aborted.forCandidate(cand.ID))
		case o.err != nil:
			report.Failed = append(report.Failed, o.failure())
		case o.skipped:
			report.Scored = append(report.Scored, *o.record)
			report.Skipped = append(report.Skipped, cand.ID)
		default:
			report.Scored = append(report.Scored, *o.record)
		}
	}

	switch {
	case fatal != nil:
		report.Status = types.RunFailed
		report.Error = fatal.Error()
	case ctx.Err() != nil:
		report.Status = types.RunFailed
		report.Error = aborted.reason
	case len(report.Failed) > 0:
		report.Status = types.RunPartiallyCompleted
	default:
		report.Status = types.RunCompleted
	}
	report.FinishedAt = c.now()
	return report
}

// abort describes why candidates without a result were not scored.
type abort struct {
	code   string
	reason string
}

func (a abort) forCandidate(id string) types.FailedCandidate {
	return types.FailedCandidate{CandidateID: id, Code: a.code, Reason: a.reason}
}

func abortReason(ctx context.Context, fatal error) abort {
	switch {
	case fatal != nil:
		return abort{code: errors.CodeOf(fatal), reason: "run aborted: " + reasonOf(fatal)}
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return abort{code: errors.ErrCodeRunCancelled, reason: "run timed out"}
	default:
		return abort{code: errors.ErrCodeRunCancelled, reason: "run cancelled"}
	}
}

func runError(ctx context.Context, fatal error) error {
	if fatal != nil {
		return fatal
	}
	if err := ctx.Err(); err != nil {
		return errors.NewDelegateError(errors.ErrCodeRunCancelled, "scoring run cancelled", err)
	}
	return nil
}

// evaluate scores one candidate. Filters run first; a failed filter skips
// soft scoring since the total is void anyway.
func (c *Controller) evaluate(ctx context.Context, sem *semaphore.Weighted, job types.Job, raw types.RawCandidate, index int, force bool) outcome {
	o := outcome{index: index, candidateID: raw.ID}
	if err := ctx.Err(); err != nil {
		o.err = cancelled(err)
		return o
	}

	if !force {
		prev, err := c.store.GetScore(ctx, job.ID, raw.ID)
		if err != nil {
			o.err = err
			return o
		}
		if prev != nil && prev.RubricVersion == job.Rubric.Version {
			o.record = prev
			o.skipped = true
			return o
		}
	}

	p := profile.Normalize(raw)
	assessment := c.review(ctx, sem, p, c.assessor.Assess(p))

	filters, err := c.runFilters(ctx, sem, job.Rubric, p)
	if err != nil {
		o.err = err
		return o
	}

	var scores []types.CategoryScore
	if allPassed(filters) {
		scores, err = c.runScores(ctx, sem, job.Rubric, p)
		if err != nil {
			o.err = err
			return o
		}
	}

	record := ranking.Aggregate(job.Rubric, filters, scores)
	record.CandidateID = raw.ID
	record.CandidateName = p.Name
	record.JobID = job.ID
	record.RubricVersion = job.Rubric.Version
	record.Authenticity = assessment
	record.ComputedAt = c.now().UTC()
	o.record = &record
	return o
}

// review consults the reviewer when the heuristics matched anything. A
// failed review keeps the heuristic assessment.
func (c *Controller) review(ctx context.Context, sem *semaphore.Weighted, p types.CandidateProfile, a types.AuthenticityAssessment) types.AuthenticityAssessment {
	if c.reviewer == nil || len(a.MatchedSignals) == 0 {
		return a
	}
	r, err := call(ctx, c, sem, ai.OperationReview, "authenticity",
		func(callCtx context.Context) (types.AuthenticityReview, error) {
			return c.reviewer.ReviewAuthenticity(callCtx, p, a.MatchedSignals)
		})
	if err != nil {
		c.logger.Warn("Authenticity review failed, keeping heuristic assessment",
			"candidate", p.ID,
			"error_code", errors.CodeOf(err))
		return a
	}
	return a.WithReview(r)
}

func allPassed(filters []types.FilterResult) bool {
	for _, f := range filters {
		if !f.Passed {
			return false
		}
	}
	return true
}

func (c *Controller) runFilters(ctx context.Context, sem *semaphore.Weighted, r types.Rubric, p types.CandidateProfile) ([]types.FilterResult, error) {
	hard := r.HardFilters()
	results := make([]types.FilterResult, len(hard))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range hard {
		g.Go(func() error {
			res, err := call(gctx, c, sem, ai.OperationFilter, category.Name,
				func(callCtx context.Context) (types.FilterResult, error) {
					return c.delegate.EvaluateFilter(callCtx, category, p)
				})
			if err != nil {
				return err
			}
			res.CategoryName = category.Name
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Controller) runScores(ctx context.Context, sem *semaphore.Weighted, r types.Rubric, p types.CandidateProfile) ([]types.CategoryScore, error) {
	weighted := r.Weighted()
	results := make([]types.CategoryScore, len(weighted))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range weighted {
		g.Go(func() error {
			res, err := call(gctx, c, sem, ai.OperationScore, category.Name,
				func(callCtx context.Context) (types.CategoryScore, error) {
					return c.delegate.ScoreCategory(callCtx, category, p)
				})
			if err != nil {
				return err
			}
			res.CategoryName = category.Name
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// call runs one delegate call under the semaphore with its own timeout. The
// slot is held until the delegate returns, even when the caller has stopped
// waiting for it.
func call[T any](ctx context.Context, c *Controller, sem *semaphore.Weighted, op, category string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := sem.Acquire(ctx, 1); err != nil {
		return zero, cancelled(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer sem.Release(1)
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return zero, c.classify(ctx, callCtx, r.err, op, category)
		}
		return r.value, nil
	case <-callCtx.Done():
		return zero, c.classify(ctx, callCtx, callCtx.Err(), op, category)
	}
}

// classify attributes a failed call: the run being cancelled wins, then a
// fatal delegate error, then this call's own deadline.
func (c *Controller) classify(runCtx, callCtx context.Context, err error, op, category string) error {
	if runErr := runCtx.Err(); runErr != nil {
		return cancelled(runErr)
	}
	if errors.IsRunFatal(err) {
		return err
	}
	if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.NewDelegateError(errors.ErrCodeDelegateTimeout,
			fmt.Sprintf("%s timed out after %s (category %s)", opLabel(op), c.callTimeout, category), err).
			WithContext("category", category)
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return errors.NewDelegateError(appErr.Code,
			fmt.Sprintf("%s (category %s)", appErr.Message, category), err).
			WithContext("category", category)
	}
	return errors.NewDelegateError(errors.ErrCodeDelegateFailed,
		fmt.Sprintf("%s failed (category %s): %v", opLabel(op), category, err), err).
		WithContext("category", category)
}

func opLabel(op string) string {
	return strings.ReplaceAll(op, "_", " ")
}

func cancelled(cause error) error {
	return errors.NewDelegateError(errors.ErrCodeRunCancelled, "scoring run cancelled", cause)
}
