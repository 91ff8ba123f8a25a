package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// Store bundles the repositories and owns the one-transaction-per-attempt
// rule: a completed pipeline attempt persists its invoice, validation result
// and upload log atomically, and a failed attempt leaves nothing behind but
// its upload log row.
type Store struct {
	db        *sql.DB
	Invoices  *InvoiceRepository
	Results   *ValidationResultRepository
	Uploads   *UploadLogRepository
	Sequences *SequenceRepository
	log       *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:        db,
		Invoices:  NewInvoiceRepository(db),
		Results:   NewValidationResultRepository(db),
		Uploads:   NewUploadLogRepository(db),
		Sequences: NewSequenceRepository(db, logger),
		log:       logger,
	}
}

// SaveAttempt persists one successful pipeline attempt in a single
// transaction. IDs and timestamps are assigned here; the validation result
// and upload log are linked to the invoice row. If the transaction fails no
// partial rows are visible and the caller records the attempt as failed.
func (s *Store) SaveAttempt(ctx context.Context, inv *entity.Invoice, res *entity.ValidationResult, upload *entity.UploadLog) error {
	now := time.Now().UTC()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.PublicID == uuid.Nil {
		inv.PublicID = uuid.New()
	}
	inv.CreatedAt, inv.UpdatedAt = now, now

	res.ID = uuid.New()
	res.InvoiceID = inv.ID
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}

	upload.ID = uuid.New()
	upload.TenantID = inv.TenantID
	upload.Outcome = constants.UploadSuccess
	upload.InvoiceID = &inv.ID
	upload.CreatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.save_attempt", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.Invoices.WithTx(tx).Create(ctx, inv); err != nil {
		return err
	}
	if err := s.Results.WithTx(tx).Create(ctx, res); err != nil {
		return err
	}
	if err := s.Uploads.WithTx(tx).Create(ctx, upload); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.WrapKind(common.ErrPersistenceFailure, "repository.save_attempt", err)
	}

	s.log.Info("repository.save_attempt.ok",
		"invoice_id", inv.ID,
		"tenant_id", inv.TenantID,
		"validation_status", inv.ValidationState)
	return nil
}

// RecordFailure writes the upload log row for an attempt that never produced
// an invoice. Best effort from the pipeline's point of view, but the row
// itself is written transactionally like everything else.
func (s *Store) RecordFailure(ctx context.Context, upload *entity.UploadLog) error {
	upload.ID = uuid.New()
	upload.Outcome = constants.UploadError
	upload.CreatedAt = time.Now().UTC()
	return s.Uploads.Create(ctx, upload)
}
