package confidence

import (
	"testing"

	"github.com/belegwerk/einvoice/internal/ocr"
)

func raw(confs ...float64) ocr.RawExtraction {
	tokens := make([]ocr.Token, len(confs))
	for i, c := range confs {
		tokens[i] = ocr.Token{Text: "t", Confidence: c}
	}
	return ocr.RawExtraction{Tokens: tokens}
}

func TestScalarFieldsUseMinimum(t *testing.T) {
	rep := Score(raw(95, 40, 88), FieldRegions{"gross_amount": {0, 1, 2}})
	if rep.Fields["gross_amount"] != 40 {
		t.Fatalf("gross_amount = %v, want 40 (min of tokens)", rep.Fields["gross_amount"])
	}
}

func TestFreeTextFieldsUseMean(t *testing.T) {
	rep := Score(raw(90, 60), FieldRegions{"seller_name": {0, 1}})
	if rep.Fields["seller_name"] != 75 {
		t.Fatalf("seller_name = %v, want 75 (mean of tokens)", rep.Fields["seller_name"])
	}
}

func TestDocumentScoreWithinBounds(t *testing.T) {
	cases := []FieldRegions{
		{},
		{"gross_amount": {0}},
		{"gross_amount": {0}, "seller_name": {1}, "iban": {0, 1}},
	}
	for _, regions := range cases {
		rep := Score(raw(100, 100), regions)
		if rep.Document < 0 || rep.Document > 100 {
			t.Fatalf("document score %v outside [0,100]", rep.Document)
		}
		for name, s := range rep.Fields {
			if s < 0 || s > 100 {
				t.Fatalf("field %s score %v outside [0,100]", name, s)
			}
		}
	}
}

// Removing a located field (simulating a parse failure, which drops its
// region) must never raise the document score.
func TestDocumentScoreMonotoneUnderParseFailures(t *testing.T) {
	r := raw(90, 85, 95, 80)
	full := FieldRegions{
		"gross_amount": {0},
		"net_amount":   {1},
		"tax_amount":   {2},
		"issue_date":   {3},
	}

	prev := Score(r, full).Document
	degraded := FieldRegions{}
	for name, idx := range full {
		degraded[name] = idx
	}
	for _, drop := range []string{"gross_amount", "net_amount", "tax_amount", "issue_date"} {
		delete(degraded, drop)
		cur := Score(r, degraded).Document
		if cur > prev {
			t.Fatalf("dropping %s raised the score: %v -> %v", drop, prev, cur)
		}
		prev = cur
	}
	if prev != 0 {
		t.Fatalf("all fields failed but document score is %v, want 0", prev)
	}
}

func TestOutOfRangeTokenIndexesIgnored(t *testing.T) {
	rep := Score(raw(70), FieldRegions{"iban": {0, 7, -1}})
	if rep.Fields["iban"] != 70 {
		t.Fatalf("iban = %v, want 70", rep.Fields["iban"])
	}
}
