package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// Default numbering format for tenants that never configured one.
const (
	defaultPrefix    = "RE"
	defaultSeparator = "-"
	defaultPadding   = 5
)

// SequenceRepository draws invoice numbers from the per-tenant counter.
// Next runs in its own short transaction; the row lock is held only for the
// read-increment-write and never across any other call.
type SequenceRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSequenceRepository(db *sql.DB, logger *slog.Logger) *SequenceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequenceRepository{db: db, log: logger}
}

// Next atomically increments the tenant's counter and returns the formatted
// invoice number. A missing sequence row is created on first use with the
// default format. Concurrent calls for the same tenant serialize on the row
// lock and can never draw the same counter value.
func (r *SequenceRepository) Next(ctx context.Context, tenantID uuid.UUID) (string, error) {
	year := time.Now().Year()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	seq, err := lockSequence(ctx, tx, tenantID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
		}
		// first draw for this tenant; concurrent first draws race on the
		// insert, so tolerate the conflict and lock whichever row won
		if err := insertDefaultSequence(ctx, tx, tenantID, year); err != nil {
			return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
		}
		seq, err = lockSequence(ctx, tx, tenantID)
		if err != nil {
			return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
		}
	}

	if seq.ResetYearly && year != seq.LastResetYear {
		seq.Counter = 0
		seq.LastResetYear = year
	}
	seq.Counter++

	if _, err := tx.ExecContext(ctx, `
UPDATE number_sequences SET counter = $2, last_reset_year = $3 WHERE tenant_id = $1
`, tenantID, seq.Counter, seq.LastResetYear); err != nil {
		return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
	}
	if err := tx.Commit(); err != nil {
		return "", common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.next", err)
	}

	number := entity.FormatNumber(seq.Prefix, seq.Separator, seq.YearFormat, seq.Padding, year, seq.Counter)
	r.log.Debug("sequence.next", "tenant_id", tenantID, "counter", seq.Counter, "number", number)
	return number, nil
}

// Get reads the sequence state without locking or mutating it. A tenant
// without a row gets the default format with a zero counter.
func (r *SequenceRepository) Get(ctx context.Context, tenantID uuid.UUID) (*entity.NumberSequence, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT prefix, separator, year_format, padding, counter, last_reset_year, reset_yearly
FROM number_sequences
WHERE tenant_id = $1
`, tenantID)

	seq := entity.NumberSequence{TenantID: tenantID}
	err := row.Scan(&seq.Prefix, &seq.Separator, &seq.YearFormat, &seq.Padding,
		&seq.Counter, &seq.LastResetYear, &seq.ResetYearly)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultSequence(tenantID, time.Now().Year()), nil
	}
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.get", err)
	}
	return &seq, nil
}

// Configure replaces the tenant's numbering format without touching the
// counter.
func (r *SequenceRepository) Configure(ctx context.Context, seq *entity.NumberSequence) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO number_sequences (tenant_id, prefix, separator, year_format, padding, counter, last_reset_year, reset_yearly)
VALUES ($1,$2,$3,$4,$5,0,$6,$7)
ON CONFLICT (tenant_id) DO UPDATE SET
	prefix = EXCLUDED.prefix,
	separator = EXCLUDED.separator,
	year_format = EXCLUDED.year_format,
	padding = EXCLUDED.padding,
	reset_yearly = EXCLUDED.reset_yearly
`, seq.TenantID, seq.Prefix, seq.Separator, seq.YearFormat, seq.Padding, seq.LastResetYear, seq.ResetYearly)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.sequence.configure", err)
	}
	return nil
}

// PreviewFormat renders what the next number would look like for the given
// format settings. Pure; draws nothing.
func PreviewFormat(prefix, separator string, yearFormat bool, padding int) string {
	return entity.FormatNumber(prefix, separator, yearFormat, padding, time.Now().Year(), 1)
}

func lockSequence(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) (*entity.NumberSequence, error) {
	row := tx.QueryRowContext(ctx, `
SELECT prefix, separator, year_format, padding, counter, last_reset_year, reset_yearly
FROM number_sequences
WHERE tenant_id = $1
FOR UPDATE
`, tenantID)

	seq := entity.NumberSequence{TenantID: tenantID}
	if err := row.Scan(&seq.Prefix, &seq.Separator, &seq.YearFormat, &seq.Padding,
		&seq.Counter, &seq.LastResetYear, &seq.ResetYearly); err != nil {
		return nil, err
	}
	return &seq, nil
}

func insertDefaultSequence(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID, year int) error {
	seq := defaultSequence(tenantID, year)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO number_sequences (tenant_id, prefix, separator, year_format, padding, counter, last_reset_year, reset_yearly)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tenant_id) DO NOTHING
`, seq.TenantID, seq.Prefix, seq.Separator, seq.YearFormat, seq.Padding,
		seq.Counter, seq.LastResetYear, seq.ResetYearly); err != nil {
		return fmt.Errorf("create sequence row: %w", err)
	}
	return nil
}

func defaultSequence(tenantID uuid.UUID, year int) *entity.NumberSequence {
	return &entity.NumberSequence{
		TenantID:      tenantID,
		Prefix:        defaultPrefix,
		Separator:     defaultSeparator,
		YearFormat:    true,
		Padding:       defaultPadding,
		Counter:       0,
		LastResetYear: year,
		ResetYearly:   true,
	}
}
