package batch

import (
	"context"
	"slices"
	"sync"

	"recroai/internal/types"
)

// Run is a scoring run in progress or finished. Its report is updated by
// the run's collector only; readers get snapshots.
type Run struct {
	id     string
	mu     sync.RWMutex
	report types.RunReport
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the run id
func (r *Run) ID() string { return r.id }

// Report returns a snapshot of the run's report
func (r *Run) Report() types.RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := r.report
	snapshot.Scored = slices.Clone(r.report.Scored)
	snapshot.Failed = slices.Clone(r.report.Failed)
	snapshot.Skipped = slices.Clone(r.report.Skipped)
	return snapshot
}

// Err returns the error that aborted the run, if any
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Cancel abandons in-flight delegate calls. Records already written stay.
func (r *Run) Cancel() { r.cancel() }

// Done is closed once the final report is available
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done. Giving up on the wait
// does not cancel the run.
func (r *Run) Wait(ctx context.Context) (types.RunReport, error) {
	select {
	case <-r.done:
		return r.Report(), r.Err()
	case <-ctx.Done():
		return r.Report(), ctx.Err()
	}
}

func (r *Run) setStatus(status types.RunStatus) {
	r.mu.Lock()
	r.report.Status = status
	r.mu.Unlock()
}

// progress records an outcome as it arrives, in arrival order.
func (r *Run) progress(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case o.err != nil:
		r.report.Failed = append(r.report.Failed, o.failure())
	case o.skipped:
		r.report.Scored = append(r.report.Scored, *o.record)
		r.report.Skipped = append(r.report.Skipped, o.candidateID)
	default:
		r.report.Scored = append(r.report.Scored, *o.record)
	}
}

func (r *Run) finish(report types.RunReport, err error) {
	r.mu.Lock()
	r.report = report
	r.err = err
	r.mu.Unlock()
}
