package compliance

import (
	_ "embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/belegwerk/einvoice/internal/entity"
)

//go:embed mapping.yaml
var mappingYAML []byte

// Mapping is one row of the field table: a domain field bound to a schema
// element path and its business term.
type Mapping struct {
	Field        string `yaml:"field"`
	BT           string `yaml:"bt"`
	Path         string `yaml:"path"`
	Required     bool   `yaml:"required"`
	CurrencyAttr bool   `yaml:"currency_attr"`
	SchemeAttr   bool   `yaml:"scheme_attr"`
}

// LoadMappings parses the embedded field table.
func LoadMappings() ([]Mapping, error) {
	var out []Mapping
	if err := yaml.Unmarshal(mappingYAML, &out); err != nil {
		return nil, fmt.Errorf("parse field mapping: %w", err)
	}
	return out, nil
}

// valueFor resolves a mapped field from the draft. The second return reports
// whether the field carries a value; absent optionals are skipped, absent
// required fields are a generation-time error.
func valueFor(d *entity.InvoiceDraft, invoiceNumber, field string) (string, bool) {
	amt := func(p *float64) (string, bool) {
		if p == nil {
			return "", false
		}
		return strconv.FormatFloat(*p, 'f', 2, 64), true
	}
	str := func(s string) (string, bool) { return s, s != "" }

	switch field {
	case "invoice_number":
		if invoiceNumber != "" {
			return invoiceNumber, true
		}
		return str(d.InvoiceNumber)
	case "issue_date":
		return str(d.IssueDate)
	case "due_date":
		return str(d.DueDate)
	case "currency_code":
		return str(d.CurrencyCode)
	case "buyer_reference":
		return str(d.Payment.BuyerReference)
	case "seller_name":
		return str(d.Seller.Name)
	case "seller_vat_id":
		return str(d.Seller.VATID)
	case "seller_endpoint_id":
		return str(d.Seller.EndpointID)
	case "buyer_name":
		return str(d.Buyer.Name)
	case "buyer_endpoint_id":
		return str(d.Buyer.EndpointID)
	case "account_holder":
		return str(d.Payment.AccountHolder)
	case "iban":
		return str(d.Payment.IBAN)
	case "bic":
		return str(d.Payment.BIC)
	case "tax_amount":
		return amt(d.TaxAmount)
	case "tax_rate":
		if d.TaxRate == nil {
			return "", false
		}
		return strconv.FormatFloat(*d.TaxRate, 'f', 1, 64), true
	case "net_amount":
		return amt(d.NetAmount)
	case "gross_amount", "payable_amount":
		return amt(d.GrossAmount)
	default:
		return "", false
	}
}

// schemeFor returns the endpoint scheme attribute value for scheme-bearing fields.
func schemeFor(d *entity.InvoiceDraft, field string) string {
	switch field {
	case "seller_endpoint_id":
		return d.Seller.EndpointScheme
	case "buyer_endpoint_id":
		return d.Buyer.EndpointScheme
	}
	return ""
}
