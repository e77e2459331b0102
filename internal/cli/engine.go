package cli

import (
	"context"
	"fmt"
	"time"

	"recroai/internal/ai"
	"recroai/internal/authenticity"
	"recroai/internal/batch"
	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/jobs"
	"recroai/internal/notify"
	"recroai/internal/observability"
	"recroai/internal/store"
)

// engine is the scoring stack shared by the commands
type engine struct {
	cfg           *config.Config
	logger        *errors.Logger
	store         store.Store
	jobs          *jobs.Catalog
	delegate      *ai.Service
	observability *observability.ObservabilityManager
	scoring       *batch.Service
	composer      *notify.Composer
}

// newEngine wires store, job catalog, delegate and batch controller from cfg.
// A missing delegate API key is not an error here; runs fail with
// DELEGATE_UNAVAILABLE instead.
func newEngine(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*engine, error) {
	e := &engine{cfg: cfg, logger: logger}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	e.observability = om

	st, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		e.close()
		return nil, err
	}
	e.store = st

	e.jobs = jobs.NewCatalog(cfg.Jobs.Dir, logger)
	if err := e.jobs.Load(); err != nil {
		e.close()
		return nil, err
	}

	delegate, err := ai.NewService(cfg.GetScoreConfig(), cfg.GetFilterConfig(), logger, ai.WithObserver(om))
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to create scoring delegate: %w", err)
	}
	e.delegate = delegate

	detector, err := authenticity.NewDetector(authenticity.FromSettings(cfg.Authenticity), logger)
	if err != nil {
		e.close()
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid authenticity settings", err)
	}

	opts := []batch.Option{
		batch.WithMaxCandidates(cfg.Batch.MaxCandidates),
		batch.WithDelegateConcurrency(cfg.Batch.DelegateConcurrency),
		batch.WithCandidateConcurrency(cfg.Batch.CandidateConcurrency),
		batch.WithCallTimeout(cfg.Batch.CallTimeout),
		batch.WithRunTimeout(cfg.Batch.RunTimeout),
		batch.WithLogger(logger),
		batch.WithObserver(om),
	}
	if cfg.Authenticity.UseDelegate {
		opts = append(opts, batch.WithAuthenticityReview(delegate))
	}
	controller := batch.NewController(delegate, st, detector, opts...)
	e.scoring = batch.NewService(e.jobs, st, controller, nil, logger)

	composer, err := notify.NewComposer(nil)
	if err != nil {
		e.close()
		return nil, err
	}
	e.composer = composer

	if !delegate.Configured() {
		logger.Warn("Scoring delegate is not configured; runs will fail until an API key is provided",
			"provider", cfg.AI.Provider)
	}
	return e, nil
}

// watchJobs reloads job files until ctx is done when jobs.watch is set
func (e *engine) watchJobs(ctx context.Context) {
	if !e.cfg.Jobs.Watch || e.cfg.Jobs.Dir == "" {
		return
	}
	go func() {
		if err := e.jobs.Watch(ctx, e.cfg.Jobs.DebounceDelay); err != nil {
			e.logger.LogError(err, "Job file watcher stopped")
		}
	}()
}

func (e *engine) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if e.delegate != nil {
		if err := e.delegate.Close(); err != nil {
			e.logger.LogError(err, "Failed to close scoring delegate")
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.LogError(err, "Failed to close store")
		}
	}
	if err := e.observability.Shutdown(ctx); err != nil {
		e.logger.LogError(err, "Failed to shut down observability")
	}
}
