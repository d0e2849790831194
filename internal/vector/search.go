// Package vector runs pgvector nearest-neighbor search over stored question
// embeddings.
package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// QuestionResult is one search hit, joined with its paper for display.
type QuestionResult struct {
	QuestionID   string  `json:"question_id"`
	PaperID      string  `json:"paper_id"`
	Filename     string  `json:"filename"`
	Year         int     `json:"year"`
	ModuleNumber int     `json:"module_number"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
	RawText      string  `json:"raw_text"`
}

type SearchFilters struct {
	ModuleNumber *int
	Years        []int
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Searcher struct {
	q Queryer
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchQuestions ranks a subject's embedded questions by cosine distance to
// the query vector.
func (s *Searcher) SearchQuestions(ctx context.Context, subjectID string, queryVec []float32, topK int, filters SearchFilters) ([]QuestionResult, error) {
	if topK <= 0 {
		topK = 8
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{subjectID, vecLiteral, topK}

	filterSQL := ""
	if filters.ModuleNumber != nil {
		args = append(args, *filters.ModuleNumber)
		filterSQL += fmt.Sprintf(" AND q.module_number = $%d", len(args))
	}
	if len(filters.Years) > 0 {
		args = append(args, filters.Years)
		filterSQL += fmt.Sprintf(" AND q.year = ANY($%d)", len(args))
	}

	query := `
SELECT q.question_id,
       q.paper_id,
       p.filename,
       q.year,
       q.module_number,
       LEFT(q.raw_text, 280) AS snippet,
       1 - (q.embedding <=> $2::vector) AS score,
       q.raw_text
FROM questions q
JOIN papers p ON p.paper_id = q.paper_id
WHERE q.subject_id = $1
  AND q.embedding IS NOT NULL` + filterSQL + `
ORDER BY q.embedding <=> $2::vector
LIMIT $3`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]QuestionResult, 0, topK)
	for rows.Next() {
		var r QuestionResult
		if err := rows.Scan(&r.QuestionID, &r.PaperID, &r.Filename, &r.Year, &r.ModuleNumber, &r.Snippet, &r.Score, &r.RawText); err != nil {
			return nil, fmt.Errorf("scan question result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// FromLiteral parses a pgvector text literal ("[0.1,0.2,...]") back into a
// vector; an empty string means the row has no embedding.
func FromLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
