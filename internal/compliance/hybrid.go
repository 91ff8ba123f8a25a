package compliance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/compliance/pdfa"
	"github.com/wudi/pdfkit/ir/semantic"
	"github.com/wudi/pdfkit/writer"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// A4 in points.
const (
	pageWidth  = 595.28
	pageHeight = 841.89
)

// embeddedXMLName is the filename validators look for inside a ZUGFeRD
// container.
const embeddedXMLName = "factur-x.xml"

// HybridBuilder produces the ZUGFeRD-style container: a PDF/A-3b document
// with a human-readable rendition and the compliance XML embedded as an
// alternative representation.
type HybridBuilder struct {
	logger *slog.Logger
}

func NewHybridBuilder(logger *slog.Logger) *HybridBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridBuilder{logger: logger}
}

// Build renders the draft onto a single page, attaches xmlData and enforces
// PDF/A-3b before serializing. The rendition is informational; the embedded
// XML is the machine-readable source of truth.
func (h *HybridBuilder) Build(ctx context.Context, d *entity.InvoiceDraft, invoiceNumber string, xmlData []byte) ([]byte, error) {
	b := builder.NewBuilder()
	b.SetInfo(&semantic.DocumentInfo{
		Title:   "Rechnung " + invoiceNumber,
		Author:  d.Seller.Name,
		Subject: "Rechnung " + invoiceNumber,
	})

	h.drawPage(b, d, invoiceNumber)

	b.AddEmbeddedFile(semantic.EmbeddedFile{
		Name:         embeddedXMLName,
		Description:  "Rechnungsdaten",
		Subtype:      "text/xml",
		Data:         xmlData,
		Relationship: "Alternative",
	})

	doc, err := b.Build()
	if err != nil {
		return nil, common.WrapKind(common.ErrGeneration, "compliance.hybrid", err)
	}
	if err := pdfa.NewEnforcer().Enforce(ctx, doc, pdfa.PDFA3B); err != nil {
		return nil, common.WrapKind(common.ErrGeneration, "compliance.hybrid", fmt.Errorf("enforce pdf/a-3b: %w", err))
	}

	var buf bytes.Buffer
	if err := writer.NewWriter().Write(ctx, doc, &buf, writer.Config{Deterministic: true}); err != nil {
		return nil, common.WrapKind(common.ErrGeneration, "compliance.hybrid", fmt.Errorf("serialize: %w", err))
	}
	h.logger.Debug("compliance.hybrid.ok", "invoice_number", invoiceNumber, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (h *HybridBuilder) drawPage(b builder.PDFBuilder, d *entity.InvoiceDraft, invoiceNumber string) {
	page := b.NewPage(pageWidth, pageHeight).
		DrawText("Rechnung "+invoiceNumber, 50, 790, builder.TextOptions{FontSize: 20}).
		DrawLine(50, 780, pageWidth-50, 780, builder.LineOptions{LineWidth: 1})

	y := 755.0
	line := func(s string) {
		if s == "" {
			return
		}
		page = page.DrawText(s, 50, y, builder.TextOptions{FontSize: 10})
		y -= 14
	}
	line(d.Seller.Name)
	line(d.Seller.Address)
	if d.Seller.VATID != "" {
		line("USt-IdNr. " + d.Seller.VATID)
	}
	y -= 10
	line(d.Buyer.Name)
	line(d.Buyer.Address)
	y -= 10
	if d.IssueDate != "" {
		line("Rechnungsdatum: " + d.IssueDate)
	}
	if d.DueDate != "" {
		line("Faelligkeit: " + d.DueDate)
	}
	if d.Payment.BuyerReference != "" {
		line("Leitweg-ID: " + d.Payment.BuyerReference)
	}

	if len(d.LineItems) > 0 {
		page = page.DrawTable(h.itemTable(d), builder.TableOptions{X: 50, Y: y - 10, RowHeight: 20})
		y -= 10 + float64(len(d.LineItems)+1)*20 + 20
	}

	amount := func(label string, p *float64) {
		if p == nil {
			return
		}
		page = page.DrawText(fmt.Sprintf("%s %.2f EUR", label, *p), 360, y, builder.TextOptions{FontSize: 11})
		y -= 16
	}
	amount("Nettobetrag", d.NetAmount)
	amount("Umsatzsteuer", d.TaxAmount)
	amount("Gesamtbetrag", d.GrossAmount)

	if d.Payment.IBAN != "" {
		y -= 10
		line("IBAN: " + d.Payment.IBAN)
		if d.Payment.BIC != "" {
			line("BIC: " + d.Payment.BIC)
		}
	}
	page.Finish()
}

func (h *HybridBuilder) itemTable(d *entity.InvoiceDraft) builder.Table {
	header := builder.Color{R: 0.92, G: 0.92, B: 0.92}
	rows := []builder.TableRow{{Cells: []builder.TableCell{
		{Text: "Bezeichnung", BackgroundColor: header},
		{Text: "Menge", BackgroundColor: header},
		{Text: "Einzelpreis", BackgroundColor: header},
		{Text: "Betrag", BackgroundColor: header},
	}}}
	for _, item := range d.LineItems {
		rows = append(rows, builder.TableRow{Cells: []builder.TableCell{
			{Text: item.Description},
			{Text: strconv.FormatFloat(item.Quantity, 'f', -1, 64)},
			{Text: fmt.Sprintf("%.2f", item.UnitPrice)},
			{Text: fmt.Sprintf("%.2f", item.Quantity*item.UnitPrice), HAlign: builder.HAlignRight},
		}})
	}
	return builder.Table{
		Columns:    []float64{265, 60, 85, 85},
		HeaderRows: 1,
		Rows:       rows,
	}
}
