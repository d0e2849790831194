package storage

import (
	"context"
	"fmt"

	"pyqlens/internal/models"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

func (r *PaperRepo) UpsertPaper(ctx context.Context, p models.Paper) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO papers (paper_id, subject_id, filename, year, term, status, fail_reason)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''))
ON CONFLICT (paper_id)
DO UPDATE SET
  subject_id = EXCLUDED.subject_id,
  filename = EXCLUDED.filename,
  year = EXCLUDED.year,
  term = COALESCE(EXCLUDED.term, papers.term),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		p.PaperID, p.SubjectID, p.Filename, p.Year, p.Term, p.Status, p.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) UpdatePaperStatus(ctx context.Context, paperID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE papers SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE paper_id=$1`,
		paperID, status, failReason)
	if err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	return nil
}

func (r *PaperRepo) ListPapersBySubject(ctx context.Context, subjectID string) ([]models.Paper, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT paper_id, subject_id::text, filename, year, COALESCE(term,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE subject_id=$1
ORDER BY year DESC, created_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Paper, 0)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.PaperID, &p.SubjectID, &p.Filename, &p.Year, &p.Term, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func (r *PaperRepo) ListFailedPapers(ctx context.Context, subjectID string) ([]models.Paper, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT paper_id, subject_id::text, filename, year, COALESCE(term,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE subject_id=$1 AND status='failed'
ORDER BY updated_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list failed papers: %w", err)
	}
	defer rows.Close()
	out := make([]models.Paper, 0)
	for rows.Next() {
		var p models.Paper
		if err := rows.Scan(&p.PaperID, &p.SubjectID, &p.Filename, &p.Year, &p.Term, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failed paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaperRepo) GetPaperByID(ctx context.Context, subjectID, paperID string) (models.Paper, error) {
	var p models.Paper
	err := r.db.Pool.QueryRow(ctx, `
SELECT paper_id, subject_id::text, filename, year, COALESCE(term,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE subject_id=$1 AND paper_id=$2`, subjectID, paperID).
		Scan(&p.PaperID, &p.SubjectID, &p.Filename, &p.Year, &p.Term, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Paper{}, fmt.Errorf("get paper by id: %w", err)
	}
	return p, nil
}
