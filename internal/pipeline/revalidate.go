package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
	"github.com/belegwerk/einvoice/internal/validator"
	"github.com/google/uuid"
)

// Revalidation collaborator slices, narrower than the orchestrator's.
type (
	InvoiceReader interface {
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
		UpdateValidation(ctx context.Context, id uuid.UUID, status constants.ValidationStatus, errs []string) error
	}
	ResultAppender interface {
		Create(ctx context.Context, res *entity.ValidationResult) error
	}
	ArtifactReader interface {
		Open(ctx context.Context, key string) (io.ReadCloser, error)
	}
)

// Revalidator re-runs external validation for an already persisted invoice.
// It never touches the state machine: it appends a ValidationResult row and
// updates the invoice's validation status, nothing else. Useful after the
// validation service was unreachable at ingest time or after a rule update.
type Revalidator struct {
	invoices  InvoiceReader
	results   ResultAppender
	artifacts ArtifactReader
	validator Validator
	logger    *slog.Logger
}

func NewRevalidator(invoices InvoiceReader, results ResultAppender, artifacts ArtifactReader, val Validator, logger *slog.Logger) *Revalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revalidator{invoices: invoices, results: results, artifacts: artifacts, validator: val, logger: logger}
}

// Revalidate loads the stored XML artifact, validates it and appends the
// outcome. An unreachable validation service keeps the previous status and
// records a synthetic pending result, same as at ingest time.
func (r *Revalidator) Revalidate(ctx context.Context, invoiceID uuid.UUID) (*entity.ValidationResult, error) {
	inv, err := r.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.XMLKey == "" {
		return nil, common.WrapKind(common.ErrInvalidInput, "pipeline.revalidate",
			errNoArtifact{invoiceID})
	}

	rc, err := r.artifacts.Open(ctx, inv.XMLKey)
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "pipeline.revalidate", err)
	}
	xml, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, common.WrapKind(common.ErrPersistenceFailure, "pipeline.revalidate", err)
	}

	res, err := r.validator.Validate(ctx, xml)
	if err != nil {
		if !common.IsKind(err, common.ErrValidatorUnreachable) {
			return nil, err
		}
		r.logger.Warn("pipeline.revalidate.unreachable", "invoice_id", invoiceID, "error", err)
		res = validator.UnreachableResult()
	}
	res.ID = uuid.New()
	res.InvoiceID = inv.ID
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if err := r.results.Create(ctx, res); err != nil {
		return nil, err
	}

	status := inv.ValidationState
	switch {
	case res.Unreachable:
		// keep whatever the row already says
	case res.Valid:
		status = constants.ValidationValid
	default:
		status = constants.ValidationInvalid
	}
	if status != inv.ValidationState {
		if err := r.invoices.UpdateValidation(ctx, inv.ID, status, res.Errors()); err != nil {
			return nil, err
		}
	}

	r.logger.Info("pipeline.revalidate.done",
		"invoice_id", invoiceID,
		"valid", res.Valid,
		"unreachable", res.Unreachable,
		"status", status)
	return res, nil
}

type errNoArtifact struct {
	invoiceID uuid.UUID
}

func (e errNoArtifact) Error() string {
	return "invoice " + e.invoiceID.String() + " has no stored XML artifact"
}
