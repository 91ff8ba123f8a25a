package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

type stubInvoiceReader struct {
	inv        *entity.Invoice
	getErr     error
	updated    bool
	updatedTo  constants.ValidationStatus
	updateErrs []string
}

func (s *stubInvoiceReader) GetByID(context.Context, uuid.UUID) (*entity.Invoice, error) {
	return s.inv, s.getErr
}

func (s *stubInvoiceReader) UpdateValidation(_ context.Context, _ uuid.UUID, status constants.ValidationStatus, errs []string) error {
	s.updated = true
	s.updatedTo = status
	s.updateErrs = errs
	return nil
}

type stubResultAppender struct {
	appended []*entity.ValidationResult
}

func (s *stubResultAppender) Create(_ context.Context, res *entity.ValidationResult) error {
	s.appended = append(s.appended, res)
	return nil
}

type stubArtifactReader struct {
	data []byte
	err  error
}

func (s *stubArtifactReader) Open(context.Context, string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func pendingInvoice() *entity.Invoice {
	return &entity.Invoice{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		InvoiceNumber:   "RE-2026-0042",
		ValidationState: constants.ValidationPending,
		XMLKey:          "ab/abcd.xml",
	}
}

func TestRevalidate_AppendsResultAndPromotesStatus(t *testing.T) {
	invoices := &stubInvoiceReader{inv: pendingInvoice()}
	results := &stubResultAppender{}
	val := &stubValidator{res: &entity.ValidationResult{Valid: true, ValidatorVersion: "v2"}}
	rv := NewRevalidator(invoices, results, &stubArtifactReader{data: []byte("<Invoice/>")}, val, nil)

	res, err := rv.Revalidate(context.Background(), invoices.inv.ID)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if len(results.appended) != 1 {
		t.Fatalf("appended results = %d", len(results.appended))
	}
	if res.InvoiceID != invoices.inv.ID {
		t.Error("result not linked to the invoice")
	}
	if !invoices.updated || invoices.updatedTo != constants.ValidationValid {
		t.Errorf("status update: updated=%v to=%q", invoices.updated, invoices.updatedTo)
	}
}

func TestRevalidate_UnreachableKeepsStatus(t *testing.T) {
	invoices := &stubInvoiceReader{inv: pendingInvoice()}
	results := &stubResultAppender{}
	val := &stubValidator{err: common.WrapKind(common.ErrValidatorUnreachable, "validator.validate", errors.New("down"))}
	rv := NewRevalidator(invoices, results, &stubArtifactReader{data: []byte("<Invoice/>")}, val, nil)

	res, err := rv.Revalidate(context.Background(), invoices.inv.ID)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if !res.Unreachable {
		t.Error("expected a synthetic unreachable result")
	}
	if len(results.appended) != 1 {
		t.Fatalf("appended results = %d", len(results.appended))
	}
	if invoices.updated {
		t.Error("status must not change while the validator is unreachable")
	}
}

func TestRevalidate_NoArtifactIsInvalidInput(t *testing.T) {
	inv := pendingInvoice()
	inv.XMLKey = ""
	rv := NewRevalidator(&stubInvoiceReader{inv: inv}, &stubResultAppender{}, &stubArtifactReader{}, &stubValidator{}, nil)

	if _, err := rv.Revalidate(context.Background(), inv.ID); !common.IsKind(err, common.ErrInvalidInput) {
		t.Fatalf("kind = %v", err)
	}
}

func TestRevalidate_DemotesValidToInvalid(t *testing.T) {
	inv := pendingInvoice()
	inv.ValidationState = constants.ValidationValid
	invoices := &stubInvoiceReader{inv: inv}
	val := &stubValidator{res: &entity.ValidationResult{
		Valid:      false,
		ErrorCount: 1,
		Issues:     []entity.Issue{{Severity: "error", Code: "BR-DE-15", Message: "Leitweg-ID fehlt"}},
	}}
	rv := NewRevalidator(invoices, &stubResultAppender{}, &stubArtifactReader{data: []byte("<Invoice/>")}, val, nil)

	if _, err := rv.Revalidate(context.Background(), inv.ID); err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if invoices.updatedTo != constants.ValidationInvalid {
		t.Errorf("status = %q", invoices.updatedTo)
	}
	if len(invoices.updateErrs) != 1 {
		t.Errorf("validation errors = %v", invoices.updateErrs)
	}
}
