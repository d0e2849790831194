package storage

import (
	"context"
	"fmt"
)

// RunRepo tracks analysis and clustering runs so the API can answer status
// polls after the workflow has finished.
type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, runID, subjectID, kind string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO analysis_runs (run_id, subject_id, kind, status)
VALUES ($1, $2, $3, 'pending')`, runID, subjectID, kind)
	if err != nil {
		return fmt.Errorf("create analysis run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRunStatus(ctx context.Context, runID, status, outPath string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE analysis_runs SET status=$2, out_path=NULLIF($3,''), updated_at=NOW() WHERE run_id=$1`,
		runID, status, outPath)
	if err != nil {
		return fmt.Errorf("update analysis run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (status, outPath string, err error) {
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT status, COALESCE(out_path,'') FROM analysis_runs WHERE run_id=$1`, runID).
		Scan(&status, &outPath); err != nil {
		return "", "", fmt.Errorf("get analysis run: %w", err)
	}
	return status, outPath, nil
}
