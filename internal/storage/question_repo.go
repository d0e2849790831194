package storage

import (
	"context"
	"fmt"

	"pyqlens/internal/models"
	"pyqlens/internal/vector"
)

// QuestionRecord is the write-side shape for one extracted question. The
// embedding travels as a pgvector literal; nil means not embedded yet.
type QuestionRecord struct {
	QuestionID      string
	PaperID         string
	SubjectID       string
	Part            string
	Number          int
	SubLetter       string
	Seq             int
	RawText         string
	NormalizedText  string
	TopicKey        string
	Marks           int
	ModuleNumber    int
	Year            int
	BloomLevel      string
	Difficulty      string
	EmbeddingVector *string
}

type QuestionRepo struct {
	db *DB
}

func NewQuestionRepo(db *DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// UpsertQuestions replaces a paper's question set in one transaction.
// Re-analyzing a paper must never leave stale questions behind.
func (r *QuestionRepo) UpsertQuestions(ctx context.Context, paperID string, questions []QuestionRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert questions: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE paper_id=$1`, paperID); err != nil {
		return fmt.Errorf("clear paper questions: %w", err)
	}
	for _, q := range questions {
		_, err := tx.Exec(ctx, `
INSERT INTO questions (question_id, paper_id, subject_id, part, number, sub_letter, seq,
                       raw_text, normalized_text, topic_key, marks, module_number, year,
                       bloom_level, difficulty, embedding)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, $9, $10, $11, $12, $13,
        NULLIF($14,''), NULLIF($15,''),
        CASE WHEN $16::text IS NULL THEN NULL ELSE $16::vector END)`,
			q.QuestionID, q.PaperID, q.SubjectID, q.Part, q.Number, q.SubLetter, q.Seq,
			q.RawText, q.NormalizedText, q.TopicKey, q.Marks, q.ModuleNumber, q.Year,
			q.BloomLevel, q.Difficulty, q.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.QuestionID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit questions tx: %w", err)
	}
	return nil
}

const questionColumns = `
question_id, paper_id, subject_id::text, part, number, COALESCE(sub_letter,''), seq,
raw_text, normalized_text, topic_key, marks, module_number, COALESCE(cluster_id::text,''), year,
COALESCE(bloom_level,''), COALESCE(difficulty,''), COALESCE(embedding::text,''), created_at`

func scanQuestion(row interface{ Scan(...any) error }) (models.Question, error) {
	var q models.Question
	var embedding string
	err := row.Scan(&q.QuestionID, &q.PaperID, &q.SubjectID, &q.Part, &q.Number, &q.SubLetter, &q.Seq,
		&q.RawText, &q.NormalizedText, &q.TopicKey, &q.Marks, &q.ModuleNumber, &q.ClusterID, &q.Year,
		&q.BloomLevel, &q.Difficulty, &embedding, &q.CreatedAt)
	if err != nil {
		return q, err
	}
	// Stored vectors come back with the row so clustering can score from
	// them without re-calling an embedding provider.
	vec, err := vector.FromLiteral(embedding)
	if err != nil {
		return q, fmt.Errorf("parse stored embedding for %s: %w", q.QuestionID, err)
	}
	q.Embedding = vec
	return q, nil
}

func (r *QuestionRepo) ListQuestionsBySubject(ctx context.Context, subjectID string) ([]models.Question, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+questionColumns+`
FROM questions
WHERE subject_id=$1
ORDER BY year ASC, paper_id ASC, part ASC, number ASC, COALESCE(sub_letter,'') ASC, seq ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list questions by subject: %w", err)
	}
	defer rows.Close()

	out := make([]models.Question, 0, 64)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (r *QuestionRepo) ListQuestionsByModule(ctx context.Context, subjectID string, moduleNumber int) ([]models.Question, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+questionColumns+`
FROM questions
WHERE subject_id=$1 AND module_number=$2
ORDER BY year ASC, paper_id ASC, part ASC, number ASC, COALESCE(sub_letter,'') ASC, seq ASC`, subjectID, moduleNumber)
	if err != nil {
		return nil, fmt.Errorf("list questions by module: %w", err)
	}
	defer rows.Close()

	out := make([]models.Question, 0, 64)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module questions: %w", err)
	}
	return out, nil
}

func (r *QuestionRepo) ListQuestionsByPaper(ctx context.Context, paperID string) ([]models.Question, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+questionColumns+`
FROM questions
WHERE paper_id=$1
ORDER BY part ASC, number ASC, COALESCE(sub_letter,'') ASC, seq ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list questions by paper: %w", err)
	}
	defer rows.Close()

	out := make([]models.Question, 0, 32)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper questions: %w", err)
	}
	return out, nil
}

// DistinctModules lists module numbers that currently hold questions,
// including the unclassified bucket; this drives clustering fan-out.
func (r *QuestionRepo) DistinctModules(ctx context.Context, subjectID string) ([]int, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT DISTINCT module_number FROM questions WHERE subject_id=$1 ORDER BY module_number ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("distinct modules: %w", err)
	}
	defer rows.Close()

	out := make([]int, 0, 8)
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan module number: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
