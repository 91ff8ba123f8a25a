package compliance

import (
	"strings"
	"testing"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

func fptr(v float64) *float64 { return &v }

func fullDraft() *entity.InvoiceDraft {
	return &entity.InvoiceDraft{
		InvoiceNumber: "RE-EXTRACTED-1",
		IssueDate:     "2026-08-12",
		DueDate:       "2026-09-11",
		CurrencyCode:  "EUR",
		Seller: entity.Party{
			Name:    "Staples Buerobedarf GmbH",
			Address: "Musterstr. 1, 10115 Berlin",
			VATID:   "DE123456789",
		},
		Buyer: entity.Party{
			Name:           "Beispiel AG",
			EndpointID:     "buyer@beispiel.de",
			EndpointScheme: "EM",
		},
		Payment: entity.Payment{
			IBAN:           "DE89370400440532013000",
			BIC:            "COBADEFFXXX",
			AccountHolder:  "Staples Buerobedarf GmbH",
			BuyerReference: "04011000-12345-67",
		},
		NetAmount:   fptr(50.42),
		TaxAmount:   fptr(9.58),
		GrossAmount: fptr(60.00),
		TaxRate:     fptr(19),
		LineItems: []entity.LineItem{
			{Description: "Bueroartikel Set", Quantity: 2, UnitPrice: 25.21},
		},
	}
}

func mustGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestBuildXML_CompleteDraft(t *testing.T) {
	g := mustGenerator(t)
	out, err := g.BuildXML(fullDraft(), "RE-2026-00042")
	if err != nil {
		t.Fatalf("BuildXML: %v", err)
	}
	xml := string(out)

	// the sequence number wins over the extracted one
	for _, want := range []string{
		"<cbc:ID>RE-2026-00042</cbc:ID>",
		"urn:xeinkauf.de:kosit:xrechnung_3.0",
		"<cbc:IssueDate>2026-08-12</cbc:IssueDate>",
		"<cbc:InvoiceTypeCode>380</cbc:InvoiceTypeCode>",
		"<cbc:BuyerReference>04011000-12345-67</cbc:BuyerReference>",
		`<cbc:EndpointID schemeID="EM">buyer@beispiel.de</cbc:EndpointID>`,
		`<cbc:TaxAmount currencyID="EUR">9.58</cbc:TaxAmount>`,
		"<cbc:Percent>19.0</cbc:Percent>",
		`<cbc:TaxExclusiveAmount currencyID="EUR">50.42</cbc:TaxExclusiveAmount>`,
		`<cbc:TaxInclusiveAmount currencyID="EUR">60.00</cbc:TaxInclusiveAmount>`,
		`<cbc:PayableAmount currencyID="EUR">60.00</cbc:PayableAmount>`,
		"<cbc:Name>Bueroartikel Set</cbc:Name>",
		`<cbc:PriceAmount currencyID="EUR">25.21</cbc:PriceAmount>`,
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(xml, "RE-EXTRACTED-1") {
		t.Error("extracted invoice number leaked into output")
	}
	if strings.Count(xml, "<cac:InvoiceLine>") != 1 {
		t.Errorf("want one invoice line, got %d", strings.Count(xml, "<cac:InvoiceLine>"))
	}
}

func TestBuildXML_MissingRequiredFields(t *testing.T) {
	g := mustGenerator(t)
	d := fullDraft()
	d.GrossAmount = nil
	d.Payment.BuyerReference = ""

	_, err := g.BuildXML(d, "RE-2026-00042")
	if err == nil {
		t.Fatal("expected an error for missing required fields")
	}
	if !common.IsKind(err, common.ErrGeneration) {
		t.Fatalf("want generation kind, got %v", err)
	}
	for _, term := range []string{"BT-112", "BT-115", "BT-10"} {
		if !strings.Contains(err.Error(), term) {
			t.Errorf("error should name %s: %v", term, err)
		}
	}
}

func TestBuildXML_DefaultsCurrencyToEUR(t *testing.T) {
	g := mustGenerator(t)
	d := fullDraft()
	d.CurrencyCode = ""

	out, err := g.BuildXML(d, "RE-2026-00042")
	if err != nil {
		t.Fatalf("BuildXML: %v", err)
	}
	if !strings.Contains(string(out), "<cbc:DocumentCurrencyCode>EUR</cbc:DocumentCurrencyCode>") {
		t.Error("missing EUR currency default")
	}
}

func TestBuildXML_FallsBackToExtractedNumber(t *testing.T) {
	g := mustGenerator(t)
	out, err := g.BuildXML(fullDraft(), "")
	if err != nil {
		t.Fatalf("BuildXML: %v", err)
	}
	if !strings.Contains(string(out), "<cbc:ID>RE-EXTRACTED-1</cbc:ID>") {
		t.Error("extracted number should be used when no sequence number is drawn")
	}
}

func TestBuildXML_EscapesMarkup(t *testing.T) {
	g := mustGenerator(t)
	d := fullDraft()
	d.Seller.Name = "Mueller & Soehne <GmbH>"

	out, err := g.BuildXML(d, "RE-2026-00042")
	if err != nil {
		t.Fatalf("BuildXML: %v", err)
	}
	if !strings.Contains(string(out), "Mueller &amp; Soehne &lt;GmbH&gt;") {
		t.Error("markup characters not escaped")
	}
}
