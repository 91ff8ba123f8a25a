package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// UploadLogRepository records upload attempts. Write-once rows.
type UploadLogRepository struct {
	db dbtx
}

func NewUploadLogRepository(db *sql.DB) *UploadLogRepository {
	return &UploadLogRepository{db: db}
}

func (r *UploadLogRepository) WithTx(tx *sql.Tx) *UploadLogRepository {
	return &UploadLogRepository{db: tx}
}

func (r *UploadLogRepository) Create(ctx context.Context, log *entity.UploadLog) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO upload_logs (
	id, tenant_id, filename, declared_type, size_bytes, outcome, error_kind, error_detail, invoice_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		log.ID, log.TenantID, log.Filename, log.DeclaredType, log.SizeBytes,
		string(log.Outcome), log.ErrorKind, log.ErrorDetail, log.InvoiceID, log.CreatedAt,
	)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.upload_logs.create", err)
	}
	return nil
}

// ListByTenant returns a tenant's upload history newest-first.
func (r *UploadLogRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*entity.UploadLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, filename, declared_type, size_bytes, outcome, error_kind, error_detail, invoice_id, created_at
FROM upload_logs
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2
`, tenantID, limit)
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.upload_logs.list", err)
	}
	defer rows.Close()

	var out []*entity.UploadLog
	for rows.Next() {
		var (
			l       entity.UploadLog
			outcome string
		)
		if err := rows.Scan(
			&l.ID, &l.TenantID, &l.Filename, &l.DeclaredType, &l.SizeBytes,
			&outcome, &l.ErrorKind, &l.ErrorDetail, &l.InvoiceID, &l.CreatedAt,
		); err != nil {
			return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.upload_logs.list", err)
		}
		l.Outcome = constants.UploadOutcome(outcome)
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.upload_logs.list", err)
	}
	return out, nil
}
