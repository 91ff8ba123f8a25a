package entity

import (
	"fmt"
	"math"

	"github.com/belegwerk/einvoice/constants"
)

// LineItem is one ordered position on an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Party identifies a seller or buyer on a draft.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	VATID   string `json:"vat_id,omitempty"`
	// EN16931 electronic address (BT-34 / BT-49).
	EndpointID     string `json:"endpoint_id,omitempty"`
	EndpointScheme string `json:"endpoint_scheme,omitempty"`
}

// Payment carries the EN16931 payment and reference terms.
type Payment struct {
	IBAN           string `json:"iban,omitempty"`
	BIC            string `json:"bic,omitempty"`
	AccountHolder  string `json:"account_holder,omitempty"`
	BuyerReference string `json:"buyer_reference,omitempty"`
}

// InvoiceDraft is the structured pre-persistence representation produced by
// field extraction and consumed by the compliance generator. Zero-valued
// optional fields mean "not extracted".
type InvoiceDraft struct {
	InvoiceNumber string `json:"invoice_number,omitempty"`
	IssueDate     string `json:"issue_date,omitempty"` // YYYY-MM-DD
	DueDate       string `json:"due_date,omitempty"`   // YYYY-MM-DD
	CurrencyCode  string `json:"currency_code,omitempty"`

	Seller Party `json:"seller"`
	Buyer  Party `json:"buyer"`

	// Amounts in currency units. GrossAmount is extracted independently,
	// never derived from NetAmount+TaxAmount.
	NetAmount   *float64 `json:"net_amount,omitempty"`
	TaxAmount   *float64 `json:"tax_amount,omitempty"`
	GrossAmount *float64 `json:"gross_amount,omitempty"`
	TaxRate     *float64 `json:"tax_rate,omitempty"` // percent, from the permitted set

	LineItems []LineItem `json:"line_items,omitempty"`
	Payment   Payment    `json:"payment"`

	// Degradations records non-terminal extraction problems (parse failures,
	// out-of-set tax rate, amount mismatch). They lower confidence and feed
	// the validation error list; they never abort the document.
	Degradations []string `json:"degradations,omitempty"`
}

// Degrade records a non-terminal extraction problem on the draft.
func (d *InvoiceDraft) Degrade(format string, args ...any) {
	d.Degradations = append(d.Degradations, fmt.Sprintf(format, args...))
}

// CheckAmounts verifies gross == net + tax within the accepted tolerance.
// A violation is reported, never silently corrected.
func (d *InvoiceDraft) CheckAmounts() error {
	if d.NetAmount == nil || d.TaxAmount == nil || d.GrossAmount == nil {
		return nil
	}
	diff := math.Abs(*d.GrossAmount - (*d.NetAmount + *d.TaxAmount))
	if diff > constants.AmountTolerance+1e-9 {
		return fmt.Errorf("gross %.2f does not equal net %.2f + tax %.2f (diff %.2f)",
			*d.GrossAmount, *d.NetAmount, *d.TaxAmount, diff)
	}
	return nil
}
