package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"pyqlens/internal/models"
)

type ClusterRepo struct {
	db *DB
}

func NewClusterRepo(db *DB) *ClusterRepo {
	return &ClusterRepo{db: db}
}

// moduleLockKey derives the advisory lock key for one (subject, module)
// clustering scope.
func moduleLockKey(subjectID string, moduleNumber int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d", subjectID, moduleNumber)
	return int64(h.Sum64())
}

// ReplaceModuleClusters swaps a module's whole cluster set in one
// transaction. A transaction-scoped advisory lock serializes concurrent
// passes over the same module so interleaved replace-alls cannot mix
// results; question cluster assignments are rewritten in the same
// transaction so readers never see a half-applied pass.
func (r *ClusterRepo) ReplaceModuleClusters(ctx context.Context, subjectID string, moduleNumber int, clusters []models.TopicCluster) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace clusters: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, moduleLockKey(subjectID, moduleNumber)); err != nil {
		return fmt.Errorf("acquire module lock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE questions SET cluster_id=NULL WHERE subject_id=$1 AND module_number=$2`,
		subjectID, moduleNumber); err != nil {
		return fmt.Errorf("clear question cluster refs: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM topic_clusters WHERE subject_id=$1 AND module_number=$2`,
		subjectID, moduleNumber); err != nil {
		return fmt.Errorf("delete module clusters: %w", err)
	}

	for rank, c := range clusters {
		yearsJSON, _ := json.Marshal(c.YearsAppeared)
		_, err := tx.Exec(ctx, `
INSERT INTO topic_clusters (cluster_id, subject_id, module_number, topic_name, display_label,
                            normalized_key, frequency_count, years_appeared, total_marks, avg_marks,
                            part_a_count, part_b_count, priority_tier, rank)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14)`,
			c.ClusterID, subjectID, moduleNumber, c.TopicName, c.DisplayLabel,
			c.NormalizedKey, c.FrequencyCount, string(yearsJSON), c.TotalMarks, c.AvgMarks,
			c.PartACount, c.PartBCount, c.PriorityTier, rank,
		)
		if err != nil {
			return fmt.Errorf("insert cluster %s: %w", c.ClusterID, err)
		}
		if len(c.MemberIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE questions SET cluster_id=$1 WHERE question_id = ANY($2)`,
				c.ClusterID, c.MemberIDs); err != nil {
				return fmt.Errorf("assign cluster members %s: %w", c.ClusterID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clusters tx: %w", err)
	}
	return nil
}

// ListClusters returns a module's clusters in stored priority order. Pass a
// negative moduleNumber to list the whole subject.
func (r *ClusterRepo) ListClusters(ctx context.Context, subjectID string, moduleNumber int) ([]models.TopicCluster, error) {
	query := `
SELECT c.cluster_id::text, c.subject_id::text, c.module_number, c.topic_name, COALESCE(c.display_label,''),
       c.normalized_key, c.frequency_count, c.years_appeared::text, c.total_marks, c.avg_marks,
       c.part_a_count, c.part_b_count, c.priority_tier,
       COALESCE(array_agg(q.question_id ORDER BY q.year, q.paper_id, q.part, q.number, q.sub_letter, q.seq)
                FILTER (WHERE q.question_id IS NOT NULL), '{}') AS member_ids
FROM topic_clusters c
LEFT JOIN questions q ON q.cluster_id = c.cluster_id
WHERE c.subject_id=$1`
	args := []any{subjectID}
	if moduleNumber >= 0 {
		query += ` AND c.module_number=$2`
		args = append(args, moduleNumber)
	}
	query += `
GROUP BY c.cluster_id, c.subject_id, c.module_number, c.topic_name, c.display_label, c.normalized_key,
         c.frequency_count, c.years_appeared, c.total_marks, c.avg_marks, c.part_a_count, c.part_b_count,
         c.priority_tier, c.rank
ORDER BY c.module_number ASC, c.rank ASC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	out := make([]models.TopicCluster, 0, 32)
	for rows.Next() {
		var c models.TopicCluster
		var yearsJSON string
		if err := rows.Scan(&c.ClusterID, &c.SubjectID, &c.ModuleNumber, &c.TopicName, &c.DisplayLabel,
			&c.NormalizedKey, &c.FrequencyCount, &yearsJSON, &c.TotalMarks, &c.AvgMarks,
			&c.PartACount, &c.PartBCount, &c.PriorityTier, &c.MemberIDs); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(yearsJSON), &c.YearsAppeared); err != nil {
			return nil, fmt.Errorf("decode cluster years: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return out, nil
}

// UpdateDisplayLabel attaches an advisory human label without touching the
// deterministic topic_name.
func (r *ClusterRepo) UpdateDisplayLabel(ctx context.Context, clusterID, label string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE topic_clusters SET display_label=NULLIF($2,'') WHERE cluster_id=$1`, clusterID, label)
	if err != nil {
		return fmt.Errorf("update display label: %w", err)
	}
	return nil
}
