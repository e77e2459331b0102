package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	seq          BIGSERIAL,
	job_id       TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	material     BYTEA NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (job_id, candidate_id)
);

CREATE TABLE IF NOT EXISTS score_records (
	job_id             TEXT NOT NULL,
	candidate_id       TEXT NOT NULL,
	rubric_version     TEXT NOT NULL,
	total_score        DOUBLE PRECISION,
	hard_filter_passed BOOLEAN NOT NULL,
	is_suspicious      BOOLEAN NOT NULL,
	record             JSONB NOT NULL,
	computed_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, candidate_id)
);`

// PostgresStore is a Store backed by PostgreSQL. Candidate material is kept
// as raw bytes; score records are stored as JSONB with the ranking columns
// broken out.
type PostgresStore struct {
	db     *sql.DB
	logger *errors.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects, pings and migrates
func OpenPostgres(ctx context.Context, cfg config.StoreConfig, logger *errors.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreFailed, "failed to open database", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError(errors.ErrCodeStoreFailed, "failed to connect to database", err)
	}

	s := NewPostgresStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("Connected to PostgreSQL store")
	return s, nil
}

// NewPostgresStore wraps an existing connection pool
func NewPostgresStore(db *sql.DB, logger *errors.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreFailed, "failed to create schema", err)
	}
	return nil
}

// PutCandidates implements Store
func (s *PostgresStore) PutCandidates(ctx context.Context, jobID string, candidates []types.RawCandidate) error {
	candidates, err := normalizeCandidates(candidates)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeFailed("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range candidates {
		material := []byte(c.Material)
		if material == nil {
			material = []byte{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (job_id, candidate_id, material)
			VALUES ($1, $2, $3)
			ON CONFLICT (job_id, candidate_id)
			DO UPDATE SET material = EXCLUDED.material, updated_at = now()`,
			jobID, c.ID, material)
		if err != nil {
			return storeFailed(fmt.Sprintf("failed to save candidate %s", c.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeFailed("failed to commit candidates", err)
	}
	return nil
}

// GetCandidates implements Store
func (s *PostgresStore) GetCandidates(ctx context.Context, jobID string, ids []string) ([]types.RawCandidate, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ids == nil {
		rows, err = s.db.QueryContext(ctx,
			"SELECT candidate_id, material FROM candidates WHERE job_id = $1 ORDER BY seq", jobID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT candidate_id, material FROM candidates WHERE job_id = $1 AND candidate_id = ANY($2)",
			jobID, pq.Array(ids))
	}
	if err != nil {
		return nil, storeFailed("failed to query candidates", err)
	}
	defer func() { _ = rows.Close() }()

	var found []types.RawCandidate
	for rows.Next() {
		c := types.RawCandidate{JobID: jobID}
		var material []byte
		if err := rows.Scan(&c.ID, &material); err != nil {
			return nil, storeFailed("failed to read candidate", err)
		}
		c.Material = material
		found = append(found, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("failed to read candidates", err)
	}

	if ids == nil {
		return found, nil
	}
	return inRequestedOrder(jobID, ids, found)
}

func inRequestedOrder(jobID string, ids []string, found []types.RawCandidate) ([]types.RawCandidate, error) {
	byID := make(map[string]types.RawCandidate, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]types.RawCandidate, 0, len(ids))
	var missing []string
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, c)
	}
	if len(missing) > 0 {
		return nil, missingCandidates(jobID, missing)
	}
	return out, nil
}

// GetScore implements Store. A missing record is (nil, nil).
func (s *PostgresStore) GetScore(ctx context.Context, jobID, candidateID string) (*types.ScoreRecord, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM score_records WHERE job_id = $1 AND candidate_id = $2",
		jobID, candidateID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailed("failed to query score record", err)
	}

	var record types.ScoreRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, storeFailed("stored score record is corrupt", err)
	}
	return &record, nil
}

// PutScore implements Store
func (s *PostgresStore) PutScore(ctx context.Context, record types.ScoreRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return storeFailed("failed to encode score record", err)
	}

	var total sql.NullFloat64
	if record.TotalScore != nil {
		total = sql.NullFloat64{Float64: *record.TotalScore, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO score_records
			(job_id, candidate_id, rubric_version, total_score, hard_filter_passed, is_suspicious, record, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id, candidate_id) DO UPDATE SET
			rubric_version = EXCLUDED.rubric_version,
			total_score = EXCLUDED.total_score,
			hard_filter_passed = EXCLUDED.hard_filter_passed,
			is_suspicious = EXCLUDED.is_suspicious,
			record = EXCLUDED.record,
			computed_at = EXCLUDED.computed_at`,
		record.JobID, record.CandidateID, record.RubricVersion, total,
		record.HardFilterPassed, record.Authenticity.IsSuspicious, payload, record.ComputedAt)
	if err != nil {
		return storeFailed(fmt.Sprintf("failed to save score record for %s", record.CandidateID), err)
	}
	return nil
}

// ListScores implements Store. Records follow candidate submission order.
func (s *PostgresStore) ListScores(ctx context.Context, jobID string) ([]types.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.record
		FROM score_records r
		LEFT JOIN candidates c ON c.job_id = r.job_id AND c.candidate_id = r.candidate_id
		WHERE r.job_id = $1
		ORDER BY c.seq NULLS LAST, r.candidate_id`, jobID)
	if err != nil {
		return nil, storeFailed("failed to query score records", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.ScoreRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, storeFailed("failed to read score record", err)
		}
		var record types.ScoreRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			s.logger.Warn("Skipping corrupt score record", "job_id", jobID, "error", err)
			continue
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed("failed to read score records", err)
	}
	return out, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func storeFailed(message string, cause error) *errors.AppError {
	return errors.NewStoreError(errors.ErrCodeStoreFailed, message, cause)
}
