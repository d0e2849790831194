package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"pyqlens/internal/models"
)

type SubjectRepo struct {
	db *DB
}

func NewSubjectRepo(db *DB) *SubjectRepo {
	return &SubjectRepo{db: db}
}

func (r *SubjectRepo) CreateSubject(ctx context.Context, s models.Subject) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO subjects (subject_id, name, pattern_name) VALUES ($1, $2, $3)`,
		s.SubjectID, s.Name, s.PatternName)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (r *SubjectRepo) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT subject_id::text, name, pattern_name, created_at FROM subjects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	out := make([]models.Subject, 0)
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.SubjectID, &s.Name, &s.PatternName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

func (r *SubjectRepo) GetSubject(ctx context.Context, subjectID string) (models.Subject, error) {
	var s models.Subject
	err := r.db.Pool.QueryRow(ctx,
		`SELECT subject_id::text, name, pattern_name, created_at FROM subjects WHERE subject_id=$1`,
		subjectID).Scan(&s.SubjectID, &s.Name, &s.PatternName, &s.CreatedAt)
	if err != nil {
		return models.Subject{}, fmt.Errorf("get subject: %w", err)
	}
	return s, nil
}

func (r *SubjectRepo) UpsertModule(ctx context.Context, m models.Module) error {
	keywordJSON, _ := json.Marshal(m.Keywords)
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO modules (subject_id, module_number, title, keywords)
VALUES ($1, $2, NULLIF($3,''), $4::jsonb)
ON CONFLICT (subject_id, module_number)
DO UPDATE SET
  title = COALESCE(EXCLUDED.title, modules.title),
  keywords = EXCLUDED.keywords`,
		m.SubjectID, m.Number, m.Title, string(keywordJSON))
	if err != nil {
		return fmt.Errorf("upsert module: %w", err)
	}
	return nil
}

func (r *SubjectRepo) ListModules(ctx context.Context, subjectID string) ([]models.Module, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT subject_id::text, module_number, COALESCE(title,''), COALESCE(keywords,'[]'::jsonb)::text
FROM modules
WHERE subject_id=$1
ORDER BY module_number ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	out := make([]models.Module, 0)
	for rows.Next() {
		var m models.Module
		var keywordJSON string
		if err := rows.Scan(&m.SubjectID, &m.Number, &m.Title, &keywordJSON); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordJSON), &m.Keywords); err != nil {
			return nil, fmt.Errorf("decode module keywords: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return out, nil
}

// ModuleKeywordSets shapes stored modules into the classifier's fallback
// input.
func (r *SubjectRepo) ModuleKeywordSets(ctx context.Context, subjectID string) (map[int][]string, error) {
	modules, err := r.ListModules(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]string, len(modules))
	for _, m := range modules {
		out[m.Number] = m.Keywords
	}
	return out, nil
}
