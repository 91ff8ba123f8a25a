package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// InvoiceRepository reads and writes invoice rows.
type InvoiceRepository struct {
	db dbtx
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a repository bound to an enclosing transaction.
func (r *InvoiceRepository) WithTx(tx *sql.Tx) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	draftJSON, err := json.Marshal(inv.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	errsJSON, err := json.Marshal(valOrEmpty(inv.ValidationErrs))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO invoices (
	id, tenant_id, public_id, invoice_number, draft, source_type, confidence,
	skr03_account, category_label, validation_status, validation_errors,
	xml_key, hybrid_pdf_key, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		inv.ID, inv.TenantID, inv.PublicID, inv.InvoiceNumber, draftJSON, string(inv.SourceType),
		inv.Confidence, inv.SKR03Account, inv.CategoryLabel, string(inv.ValidationState), errsJSON,
		inv.XMLKey, inv.HybridPDFKey, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.invoices.create", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, public_id, invoice_number, draft, source_type, confidence,
	skr03_account, category_label, validation_status, validation_errors,
	xml_key, hybrid_pdf_key, created_at, updated_at
FROM invoices
WHERE id = $1
`, id)
	return scanInvoice(row)
}

// ListByTenant returns a tenant's invoices newest-first.
func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*entity.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, public_id, invoice_number, draft, source_type, confidence,
	skr03_account, category_label, validation_status, validation_errors,
	xml_key, hybrid_pdf_key, created_at, updated_at
FROM invoices
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2
`, tenantID, limit)
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.invoices.list", err)
	}
	defer rows.Close()

	var out []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.invoices.list", err)
	}
	return out, nil
}

// UpdateValidation records a later re-validation outcome on the invoice row.
// The ValidationResult history row is appended separately.
func (r *InvoiceRepository) UpdateValidation(ctx context.Context, id uuid.UUID, status constants.ValidationStatus, errs []string) error {
	errsJSON, err := json.Marshal(valOrEmpty(errs))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE invoices SET validation_status = $2, validation_errors = $3, updated_at = NOW()
WHERE id = $1
`, id, string(status), errsJSON)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.invoices.update_validation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapKind(common.ErrNotFound, "repository.invoices.update_validation",
			fmt.Errorf("invoice %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv        entity.Invoice
		draftJSON  []byte
		errsJSON   []byte
		sourceType string
		status     string
	)
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.PublicID, &inv.InvoiceNumber, &draftJSON, &sourceType,
		&inv.Confidence, &inv.SKR03Account, &inv.CategoryLabel, &status, &errsJSON,
		&inv.XMLKey, &inv.HybridPDFKey, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.WrapKind(common.ErrNotFound, "repository.invoices.get", err)
		}
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.invoices.get", err)
	}
	if err := json.Unmarshal(draftJSON, &inv.Draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if err := json.Unmarshal(errsJSON, &inv.ValidationErrs); err != nil {
		return nil, fmt.Errorf("unmarshal validation errors: %w", err)
	}
	inv.SourceType = constants.SourceType(sourceType)
	inv.ValidationState = constants.ValidationStatus(status)
	return &inv, nil
}

func valOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
