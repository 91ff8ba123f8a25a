// Package export produces XLSX workbooks of processed invoices for handover
// to bookkeeping.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/belegwerk/einvoice/internal/entity"
)

// invoiceLister is the slice of the repository the exporter needs.
type invoiceLister interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*entity.Invoice, error)
}

// Service is a tiny façade over the invoice repository that produces XLSX
// bytes for exports.
type Service struct {
	invoices invoiceLister
	logger   *slog.Logger
}

func NewService(invoices invoiceLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger}
}

// ExportInvoicesXLSX returns a workbook of the tenant's invoices, newest
// first. limit <= 0 exports the repository default page.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, tenantID uuid.UUID, limit int) ([]byte, error) {
	start := time.Now()

	invs, err := s.invoices.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Rechnungen"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet so the workbook opens on ours
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Rechnungsnummer",
		"Rechnungsdatum",
		"Lieferant",
		"Netto",
		"USt",
		"Brutto",
		"Steuersatz",
		"SKR03-Konto",
		"Kategorie",
		"Konfidenz",
		"Validierung",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, inv := range invs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		writeAmount := func(col int, p *float64) {
			if p != nil {
				write(col, *p)
			}
		}

		write(1, inv.InvoiceNumber)
		write(2, inv.Draft.IssueDate)
		write(3, inv.Draft.Seller.Name)
		writeAmount(4, inv.Draft.NetAmount)
		writeAmount(5, inv.Draft.TaxAmount)
		writeAmount(6, inv.Draft.GrossAmount)
		writeAmount(7, inv.Draft.TaxRate)
		write(8, inv.SKR03Account)
		write(9, inv.CategoryLabel)
		write(10, inv.Confidence)
		write(11, string(inv.ValidationState))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // invoice number
	_ = f.SetColWidth(sheet, "B", "B", 14) // date
	_ = f.SetColWidth(sheet, "C", "C", 32) // seller
	_ = f.SetColWidth(sheet, "D", "G", 12) // amounts
	_ = f.SetColWidth(sheet, "H", "I", 20) // account, category
	_ = f.SetColWidth(sheet, "J", "K", 12) // confidence, status

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"tenant_id", tenantID.String(),
		"rows", len(invs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
