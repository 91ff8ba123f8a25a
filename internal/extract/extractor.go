package extract

import (
	"context"
	"log/slog"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/confidence"
	"github.com/belegwerk/einvoice/internal/entity"
	"github.com/belegwerk/einvoice/internal/llm"
	"github.com/belegwerk/einvoice/internal/ocr"
)

// Categorizer is the slice of the provider router this package needs.
type Categorizer interface {
	Categorize(ctx context.Context, req llm.CategoryRequest) (llm.Category, error)
}

// FieldExtractor turns a raw extraction into a scored, categorized draft. It
// composes structuring, confidence scoring, and the provider-routed
// categorization call.
type FieldExtractor struct {
	structurer  *Structurer
	categorizer Categorizer
	logger      *slog.Logger
}

// NewFieldExtractor wires the extractor.
func NewFieldExtractor(structurer *Structurer, categorizer Categorizer, logger *slog.Logger) *FieldExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldExtractor{structurer: structurer, categorizer: categorizer, logger: logger}
}

// Result is everything downstream stages need from field extraction.
type Result struct {
	Draft    entity.InvoiceDraft
	Report   confidence.Report
	Category llm.Category
}

// Extract structures, scores, then categorizes. Categorization failure is
// fatal only when the local provider tier itself failed (the router absorbs
// everything above it); the draft is still returned for diagnostics.
func (e *FieldExtractor) Extract(ctx context.Context, raw ocr.RawExtraction) (Result, error) {
	structured := e.structurer.Build(raw)
	report := confidence.Score(raw, structured.Regions)

	desc := firstLineItemDescription(structured.Draft)
	amount := 0.0
	if structured.Draft.GrossAmount != nil {
		amount = *structured.Draft.GrossAmount
	}
	cat, err := e.categorizer.Categorize(ctx, llm.CategoryRequest{
		SellerName:  structured.Draft.Seller.Name,
		Description: desc,
		Amount:      amount,
		Currency:    structured.Draft.CurrencyCode,
	})
	if err != nil {
		return Result{Draft: structured.Draft, Report: report}, err
	}
	if _, known := constants.LookupAccount(cat.SKR03Account); !known {
		e.logger.Warn("extract.category.unknown_account", "account", cat.SKR03Account, "label", cat.Label)
	}

	e.logger.Debug("extract.fields.done",
		"document_score", report.Document,
		"account", cat.SKR03Account,
		"degradations", len(structured.Draft.Degradations),
	)
	return Result{Draft: structured.Draft, Report: report, Category: cat}, nil
}

func firstLineItemDescription(d entity.InvoiceDraft) string {
	if len(d.LineItems) > 0 {
		return d.LineItems[0].Description
	}
	return ""
}
