// Package pipeline owns the per-document state machine: extraction, scoring,
// structuring, compliance generation, external validation and transactional
// persistence, in that order.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
	"github.com/belegwerk/einvoice/internal/extract"
	"github.com/belegwerk/einvoice/internal/ingest"
	"github.com/belegwerk/einvoice/internal/notify"
	"github.com/belegwerk/einvoice/internal/ocr"
	"github.com/belegwerk/einvoice/internal/validator"
	"github.com/google/uuid"
)

// Collaborator slices. The concrete implementations live in their own
// packages; the orchestrator only sequences them.
type (
	DocumentExtractor interface {
		Extract(ctx context.Context, input ocr.DocumentInput) (ocr.RawExtraction, error)
	}
	FieldExtractor interface {
		Extract(ctx context.Context, raw ocr.RawExtraction) (extract.Result, error)
	}
	XMLGenerator interface {
		BuildXML(d *entity.InvoiceDraft, invoiceNumber string) ([]byte, error)
	}
	HybridGenerator interface {
		Build(ctx context.Context, d *entity.InvoiceDraft, invoiceNumber string, xml []byte) ([]byte, error)
	}
	Validator interface {
		Validate(ctx context.Context, xml []byte) (*entity.ValidationResult, error)
	}
	AttemptStore interface {
		SaveAttempt(ctx context.Context, inv *entity.Invoice, res *entity.ValidationResult, upload *entity.UploadLog) error
		RecordFailure(ctx context.Context, upload *entity.UploadLog) error
	}
	ArtifactStore interface {
		Save(ctx context.Context, key string, data io.Reader) error
	}
	NumberSource interface {
		Next(ctx context.Context, tenantID uuid.UUID) (string, error)
	}
)

// Metrics is the observability slice the orchestrator reports into.
type Metrics interface {
	StartDocument()
	FinishDocument(service, outcome string, duration time.Duration)
	ObserveValidation(service, status string)
	ObserveConfidence(score float64)
}

type noopMetrics struct{}

func (noopMetrics) StartDocument()                               {}
func (noopMetrics) FinishDocument(string, string, time.Duration) {}
func (noopMetrics) ObserveValidation(string, string)             {}
func (noopMetrics) ObserveConfidence(float64)                    {}

// Orchestrator runs one document end-to-end. Safe for concurrent use; all
// per-document state lives on the stack of Process.
type Orchestrator struct {
	extractor DocumentExtractor
	fields    FieldExtractor
	generator XMLGenerator
	hybrid    HybridGenerator
	validator Validator
	store     AttemptStore
	artifacts ArtifactStore
	numbers   NumberSource
	notifier  notify.Notifier
	metrics   Metrics
	limits    ingest.Limits
	keyFunc   func(ext string) string
	logger    *slog.Logger
	service   string
}

// Options carries the optional collaborators.
type Options struct {
	Hybrid   HybridGenerator // nil skips hybrid PDF generation
	Numbers  NumberSource    // nil means drafts must carry their own number
	Notifier notify.Notifier
	Metrics  Metrics
	Limits   ingest.Limits
	KeyFunc  func(ext string) string
	Service  string
}

func NewOrchestrator(
	extractor DocumentExtractor,
	fields FieldExtractor,
	generator XMLGenerator,
	val Validator,
	store AttemptStore,
	artifacts ArtifactStore,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Limits.MaxBytes == 0 {
		opts.Limits = ingest.DefaultLimits()
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = func(ext string) string { return uuid.New().String() + "." + ext }
	}
	if opts.Service == "" {
		opts.Service = "pipeline"
	}
	return &Orchestrator{
		extractor: extractor,
		fields:    fields,
		generator: generator,
		hybrid:    opts.Hybrid,
		numbers:   opts.Numbers,
		validator: val,
		store:     store,
		artifacts: artifacts,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		limits:    opts.Limits,
		keyFunc:   opts.KeyFunc,
		logger:    logger,
		service:   opts.Service,
	}
}

// Outcome reports one attempt's terminal state to the caller.
type Outcome struct {
	State     constants.DocumentState
	InvoiceID uuid.UUID
	Err       error
}

// Process runs the state machine for a single upload. Terminal errors abort
// the run, record a failure upload log and return the machine-readable kind;
// recoverable conditions (degraded structuring, unreachable validator) are
// absorbed into the persisted invoice. Persistence happens exactly once, in
// a single transaction, after validation.
func (o *Orchestrator) Process(ctx context.Context, tenantID uuid.UUID, input ocr.DocumentInput) Outcome {
	start := time.Now()
	o.metrics.StartDocument()

	log := o.logger.With("tenant_id", tenantID, "filename", input.Filename)

	state := constants.StateReceived
	step := func(next constants.DocumentState) {
		state = next
		log.Debug("pipeline.state", "state", state)
	}
	log.Info("pipeline.start", "state", state, "bytes", len(input.Bytes))

	input.Filename = ingest.SanitizeFilename(input.Filename)
	if err := ingest.ValidateUpload(input, o.limits); err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}

	if isXMLUpload(input) {
		return o.processXML(ctx, start, log, tenantID, input)
	}

	step(constants.StateExtracting)
	raw, err := o.extractor.Extract(ctx, input)
	if err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}
	log.Debug("pipeline.extracted", "tokens", len(raw.Tokens), "method", raw.Method)

	// scoring and structuring happen inside the field extractor; the
	// state split exists for reporting, not for a seam
	step(constants.StateScoring)
	step(constants.StateStructuring)
	result, err := o.fields.Extract(ctx, raw)
	if err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}
	o.metrics.ObserveConfidence(result.Report.Document)

	step(constants.StateGenerating)
	// OCR invoices keep the number the supplier already put on them; the
	// tenant sequence only covers drafts where extraction found none.
	invoiceNumber := result.Draft.InvoiceNumber
	if invoiceNumber == "" && o.numbers != nil {
		invoiceNumber, err = o.numbers.Next(ctx, tenantID)
		if err != nil {
			return o.fail(ctx, start, log, tenantID, input, err)
		}
		log.Debug("pipeline.number_drawn", "invoice_number", invoiceNumber)
	}
	xml, err := o.generator.BuildXML(&result.Draft, invoiceNumber)
	if err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}

	var hybridPDF []byte
	if o.hybrid != nil {
		hybridPDF, err = o.hybrid.Build(ctx, &result.Draft, invoiceNumber, xml)
		if err != nil {
			return o.fail(ctx, start, log, tenantID, input, err)
		}
	}

	step(constants.StateValidating)
	valRes, err := o.validator.Validate(ctx, xml)
	if err != nil {
		if !common.IsKind(err, common.ErrValidatorUnreachable) {
			return o.fail(ctx, start, log, tenantID, input, err)
		}
		// service down is not the document's fault; persist as pending
		log.Warn("pipeline.validator_unreachable", "error", err)
		valRes = validator.UnreachableResult()
	}

	status := constants.ValidationPending
	switch {
	case valRes.Unreachable:
		// stays pending
	case valRes.Valid:
		step(constants.StateValid)
		status = constants.ValidationValid
	default:
		step(constants.StateInvalid)
		status = constants.ValidationInvalid
	}
	o.metrics.ObserveValidation(o.service, string(status))

	// all network I/O is done; store artifacts then persist in one
	// transaction
	xmlKey := o.keyFunc("xml")
	if err := o.artifacts.Save(ctx, xmlKey, bytes.NewReader(xml)); err != nil {
		return o.fail(ctx, start, log, tenantID, input, wrapPersistence("store xml artifact", err))
	}
	var pdfKey string
	if len(hybridPDF) > 0 {
		pdfKey = o.keyFunc("pdf")
		if err := o.artifacts.Save(ctx, pdfKey, bytes.NewReader(hybridPDF)); err != nil {
			return o.fail(ctx, start, log, tenantID, input, wrapPersistence("store pdf artifact", err))
		}
	}

	validationErrs := valRes.Errors()
	if flagged := amountMismatch(&result.Draft); flagged != "" {
		validationErrs = append(validationErrs, flagged)
	}

	inv := &entity.Invoice{
		TenantID:        tenantID,
		InvoiceNumber:   invoiceNumber,
		Draft:           result.Draft,
		SourceType:      constants.SourceOCR,
		Confidence:      result.Report.Document,
		SKR03Account:    result.Category.SKR03Account,
		CategoryLabel:   result.Category.Label,
		ValidationState: status,
		ValidationErrs:  validationErrs,
		XMLKey:          xmlKey,
		HybridPDFKey:    pdfKey,
	}
	upload := &entity.UploadLog{
		Filename:     input.Filename,
		DeclaredType: input.DeclaredType,
		SizeBytes:    int64(len(input.Bytes)),
	}
	if err := o.store.SaveAttempt(ctx, inv, valRes, upload); err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}
	step(constants.StatePersisted)

	// post-commit, fire-and-forget
	o.notifier.InvoicePersisted(ctx, inv)

	o.metrics.FinishDocument(o.service, "success", time.Since(start))
	log.Info("pipeline.done",
		"state", state,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"validation_status", status,
		"confidence", inv.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds())
	return Outcome{State: state, InvoiceID: inv.ID}
}

// processXML handles uploads that already are e-invoice XML. No OCR, no
// structuring, no generation; the document goes straight to validation and
// is persisted with source type xml.
func (o *Orchestrator) processXML(ctx context.Context, start time.Time, log *slog.Logger, tenantID uuid.UUID, input ocr.DocumentInput) Outcome {
	xml := input.Bytes
	state := constants.StateValidating
	log.Info("pipeline.xml_passthrough", "state", state)

	valRes, err := o.validator.Validate(ctx, xml)
	if err != nil {
		if !common.IsKind(err, common.ErrValidatorUnreachable) {
			return o.fail(ctx, start, log, tenantID, input, err)
		}
		log.Warn("pipeline.validator_unreachable", "error", err)
		valRes = validator.UnreachableResult()
	}

	status := constants.ValidationPending
	switch {
	case valRes.Unreachable:
	case valRes.Valid:
		state = constants.StateValid
		status = constants.ValidationValid
	default:
		state = constants.StateInvalid
		status = constants.ValidationInvalid
	}
	o.metrics.ObserveValidation(o.service, string(status))

	xmlKey := o.keyFunc("xml")
	if err := o.artifacts.Save(ctx, xmlKey, bytes.NewReader(xml)); err != nil {
		return o.fail(ctx, start, log, tenantID, input, wrapPersistence("store xml artifact", err))
	}

	inv := &entity.Invoice{
		TenantID:        tenantID,
		InvoiceNumber:   xmlInvoiceNumber(xml),
		SourceType:      constants.SourceXML,
		ValidationState: status,
		ValidationErrs:  valRes.Errors(),
		XMLKey:          xmlKey,
	}
	upload := &entity.UploadLog{
		Filename:     input.Filename,
		DeclaredType: input.DeclaredType,
		SizeBytes:    int64(len(input.Bytes)),
	}
	if err := o.store.SaveAttempt(ctx, inv, valRes, upload); err != nil {
		return o.fail(ctx, start, log, tenantID, input, err)
	}
	state = constants.StatePersisted
	o.notifier.InvoicePersisted(ctx, inv)

	o.metrics.FinishDocument(o.service, "success", time.Since(start))
	log.Info("pipeline.done",
		"state", state,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"validation_status", status,
		"elapsed_ms", time.Since(start).Milliseconds())
	return Outcome{State: state, InvoiceID: inv.ID}
}

func isXMLUpload(input ocr.DocumentInput) bool {
	if input.DeclaredType == "xml" {
		return true
	}
	return input.DeclaredType == "" &&
		constants.MapExtToFormat(filepath.Ext(input.Filename)) == constants.XML
}

// xmlInvoiceNumber pulls BT-1 out of an uploaded UBL document so the row is
// searchable by number. The first cbc:ID in an Invoice is the invoice number.
func xmlInvoiceNumber(xml []byte) string {
	m := reInvoiceID.FindSubmatch(xml)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}

var reInvoiceID = regexp.MustCompile(`<cbc:ID[^>]*>([^<]+)</cbc:ID>`)

// fail records the absorbing FAILED state: an error upload log row and a
// classified outcome. The failure row is best effort; losing it must not
// mask the original error.
func (o *Orchestrator) fail(ctx context.Context, start time.Time, log *slog.Logger, tenantID uuid.UUID, input ocr.DocumentInput, err error) Outcome {
	kind := common.ClassifyKind(err)
	log.Error("pipeline.failed", "kind", kind, "error", err)

	upload := &entity.UploadLog{
		TenantID:     tenantID,
		Filename:     input.Filename,
		DeclaredType: input.DeclaredType,
		SizeBytes:    int64(len(input.Bytes)),
		ErrorKind:    kind,
		ErrorDetail:  err.Error(),
	}
	if logErr := o.store.RecordFailure(ctx, upload); logErr != nil {
		log.Error("pipeline.failure_log_lost", "error", logErr)
	}

	o.metrics.FinishDocument(o.service, kind, time.Since(start))
	return Outcome{State: constants.StateFailed, Err: err}
}

func wrapPersistence(op string, err error) error {
	return common.WrapKind(common.ErrPersistenceFailure, "pipeline."+op, err)
}

// amountMismatch re-checks the gross = net + tax invariant at persistence
// time so the stored error list always reflects it, even when the external
// validator was unreachable.
func amountMismatch(d *entity.InvoiceDraft) string {
	if err := d.CheckAmounts(); err != nil {
		return fmt.Sprintf("amount mismatch: %v", err)
	}
	return ""
}
