package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// ValidationResultRepository appends validation attempts. The table is an
// audit trail; there are no update or delete paths.
type ValidationResultRepository struct {
	db dbtx
}

func NewValidationResultRepository(db *sql.DB) *ValidationResultRepository {
	return &ValidationResultRepository{db: db}
}

func (r *ValidationResultRepository) WithTx(tx *sql.Tx) *ValidationResultRepository {
	return &ValidationResultRepository{db: tx}
}

func (r *ValidationResultRepository) Create(ctx context.Context, res *entity.ValidationResult) error {
	issues := res.Issues
	if issues == nil {
		issues = []entity.Issue{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO validation_results (
	id, invoice_id, valid, validator_version, issues, error_count, warning_count, unreachable, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		res.ID, res.InvoiceID, res.Valid, res.ValidatorVersion, issuesJSON,
		res.ErrorCount, res.WarningCount, res.Unreachable, res.CreatedAt,
	)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.validation_results.create", err)
	}
	return nil
}

// ListByInvoice returns the attempt history newest-first.
func (r *ValidationResultRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*entity.ValidationResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, invoice_id, valid, validator_version, issues, error_count, warning_count, unreachable, created_at
FROM validation_results
WHERE invoice_id = $1
ORDER BY created_at DESC
`, invoiceID)
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.validation_results.list", err)
	}
	defer rows.Close()

	var out []*entity.ValidationResult
	for rows.Next() {
		var (
			res        entity.ValidationResult
			issuesJSON []byte
		)
		if err := rows.Scan(
			&res.ID, &res.InvoiceID, &res.Valid, &res.ValidatorVersion, &issuesJSON,
			&res.ErrorCount, &res.WarningCount, &res.Unreachable, &res.CreatedAt,
		); err != nil {
			return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.validation_results.list", err)
		}
		if err := json.Unmarshal(issuesJSON, &res.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.validation_results.list", err)
	}
	return out, nil
}
