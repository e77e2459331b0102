package batch

import (
	"slices"
	"strings"
	"sync"

	"recroai/internal/types"
)

const defaultRetainedRuns = 100

// Registry tracks runs by id. Finished runs are kept until more than
// the retention limit have finished, oldest first out.
type Registry struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	finished []*Run
	retain   int
}

// NewRegistry creates a registry keeping up to retain finished runs
func NewRegistry(retain int) *Registry {
	if retain <= 0 {
		retain = defaultRetainedRuns
	}
	return &Registry{
		runs:   make(map[string]*Run),
		retain: retain,
	}
}

// Add registers a run and evicts it later once enough newer runs finish
func (r *Registry) Add(run *Run) {
	r.mu.Lock()
	r.runs[run.ID()] = run
	r.mu.Unlock()

	go func() {
		<-run.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.finished = append(r.finished, run)
		if len(r.finished) <= r.retain {
			return
		}
		slices.SortFunc(r.finished, func(a, b *Run) int {
			return a.Report().FinishedAt.Compare(b.Report().FinishedAt)
		})
		for _, old := range r.finished[:len(r.finished)-r.retain] {
			delete(r.runs, old.ID())
		}
		r.finished = slices.Clone(r.finished[len(r.finished)-r.retain:])
	}()
}

// Get returns a run by id
func (r *Registry) Get(id string) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}

// Active returns reports of runs that have not reached a terminal state,
// oldest first.
func (r *Registry) Active() []types.RunReport {
	r.mu.RLock()
	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	r.mu.RUnlock()

	var out []types.RunReport
	for _, run := range runs {
		report := run.Report()
		if !report.Status.Terminal() {
			out = append(out, report)
		}
	}
	slices.SortFunc(out, func(a, b types.RunReport) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RunID, b.RunID)
	})
	return out
}
