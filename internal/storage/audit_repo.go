package storage

import (
	"context"
	"fmt"
)

// ProviderCallRecord audits one embedding or labeling call, including which
// scoring path or provider served it.
type ProviderCallRecord struct {
	CallID       string
	Operation    string
	SubjectID    string
	PaperID      string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, rec ProviderCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO provider_calls(call_id, operation, subject_id, paper_id, provider_name, model, request_id, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,'')::uuid, NULLIF($4,''), $5, $6, $7, $8, NULLIF($9,''))`,
		rec.CallID, rec.Operation, rec.SubjectID, rec.PaperID, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert provider call: %w", err)
	}
	return nil
}
