// Package store keeps raw candidates and score records.
package store

import (
	"context"
	"fmt"
	"strings"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"
)

// Store persists candidates per job and the latest score record per
// (job, candidate) pair. Score records are written whole.
type Store interface {
	// PutCandidates upserts candidates for a job. A candidate keeps its
	// original submission position when resubmitted.
	PutCandidates(ctx context.Context, jobID string, candidates []types.RawCandidate) error
	// GetCandidates returns candidates in submission order when ids is nil,
	// otherwise in the order of ids. Unknown ids fail with NOT_FOUND.
	GetCandidates(ctx context.Context, jobID string, ids []string) ([]types.RawCandidate, error)
	GetScore(ctx context.Context, jobID, candidateID string) (*types.ScoreRecord, error)
	PutScore(ctx context.Context, record types.ScoreRecord) error
	ListScores(ctx context.Context, jobID string) ([]types.ScoreRecord, error)
	Close() error
}

// New builds the store selected by cfg.Driver
func New(ctx context.Context, cfg config.StoreConfig, logger *errors.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Debug("Using in-memory store")
		return NewMemoryStore(), nil
	case "postgres":
		return OpenPostgres(ctx, cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported store driver: %s", cfg.Driver), nil)
	}
}

func missingCandidates(jobID string, missing []string) error {
	return errors.NewValidationError(errors.ErrCodeNotFound,
		fmt.Sprintf("unknown candidates for job %s: %s", jobID, strings.Join(missing, ", ")), nil).
		WithContext("job_id", jobID)
}

// normalizeCandidates returns a copy of candidates with surrounding space
// trimmed from their ids, rejecting empty and repeated ids.
func normalizeCandidates(candidates []types.RawCandidate) ([]types.RawCandidate, error) {
	out := make([]types.RawCandidate, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("candidate %d has no id", i), nil)
		}
		if seen[c.ID] {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("candidate %s appears twice", c.ID), nil)
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out, nil
}
