// Package confidence aggregates token-level OCR confidences into per-field
// and document-level scores. Pure; no side effects.
package confidence

import (
	"sort"

	"github.com/belegwerk/einvoice/internal/ocr"
)

// FieldKind selects the aggregation policy for a field.
type FieldKind int

const (
	// Scalar fields (amounts, dates, IBAN): a single garbled character
	// invalidates the value, so the weakest token decides.
	Scalar FieldKind = iota
	// FreeText fields (names, addresses, descriptions): partial legibility is
	// still useful, so the mean decides.
	FreeText
)

// fieldPolicy fixes kind and document weight per known field. Amounts and tax
// rate carry the highest weight; free-text address fields the lowest.
type fieldPolicy struct {
	kind   FieldKind
	weight float64
}

var policies = map[string]fieldPolicy{
	"invoice_number":  {Scalar, 2},
	"issue_date":      {Scalar, 2},
	"due_date":        {Scalar, 1},
	"net_amount":      {Scalar, 3},
	"tax_amount":      {Scalar, 3},
	"gross_amount":    {Scalar, 3},
	"tax_rate":        {Scalar, 3},
	"iban":            {Scalar, 2},
	"bic":             {Scalar, 1},
	"buyer_reference": {Scalar, 1},
	"seller_name":     {FreeText, 1},
	"seller_address":  {FreeText, 1},
	"seller_vat_id":   {Scalar, 2},
	"buyer_name":      {FreeText, 1},
	"buyer_address":   {FreeText, 1},
	"line_items":      {FreeText, 1},
}

const defaultWeight = 1

// Report maps field names to confidence scores in [0,100] plus one weighted
// aggregate document score. Immutable once produced.
type Report struct {
	Fields   map[string]float64
	Document float64
}

// FieldRegions assigns each field the indexes of its contributing tokens,
// as located by the structuring pass.
type FieldRegions map[string][]int

// Score combines token confidences into a report. Fields present in regions
// but with no usable tokens score 0; fields absent from regions also score 0
// at their policy weight, so adding parse failures never raises the document
// score.
func Score(raw ocr.RawExtraction, regions FieldRegions) Report {
	fields := make(map[string]float64, len(policies))

	for name := range policies {
		idx := regions[name]
		fields[name] = scoreField(raw, name, idx)
	}
	// Unknown fields the structurer located still get individual scores.
	for name, idx := range regions {
		if _, known := policies[name]; !known {
			fields[name] = scoreField(raw, name, idx)
		}
	}

	return Report{Fields: fields, Document: documentScore(fields)}
}

func scoreField(raw ocr.RawExtraction, name string, idx []int) float64 {
	confs := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(raw.Tokens) {
			confs = append(confs, raw.Tokens[i].Confidence)
		}
	}
	if len(confs) == 0 {
		return 0
	}
	if policyFor(name).kind == Scalar {
		return minOf(confs)
	}
	return meanOf(confs)
}

func documentScore(fields map[string]float64) float64 {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var weighted, total float64
	for _, name := range names {
		w := policyFor(name).weight
		weighted += fields[name] * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp(weighted / total)
}

func policyFor(name string) fieldPolicy {
	if p, ok := policies[name]; ok {
		return p
	}
	return fieldPolicy{FreeText, defaultWeight}
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return clamp(m)
}

func meanOf(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return clamp(sum / float64(len(vs)))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
