package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/confidence"
	"github.com/belegwerk/einvoice/internal/entity"
	"github.com/belegwerk/einvoice/internal/ocr"
)

// Structurer maps raw tokens into the InvoiceDraft shape using label and
// pattern heuristics, and records which tokens contributed to each field so
// the confidence scorer can attribute token confidences.
type Structurer struct {
	logger *slog.Logger
}

// NewStructurer builds a structurer.
func NewStructurer(logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Structurer{logger: logger}
}

// StructuredResult is the draft plus the field-to-token attribution.
type StructuredResult struct {
	Draft   entity.InvoiceDraft
	Regions confidence.FieldRegions
}

var (
	reInvoiceNoLabel = regexp.MustCompile(`(?i)\b(rechnungs?-?\s?(nr|nummer)|invoice\s?(no|number))\b`)
	reIssueDateLabel = regexp.MustCompile(`(?i)\b(rechnungsdatum|datum|invoice\s?date|date)\b`)
	reDueDateLabel   = regexp.MustCompile(`(?i)\b(f[aä]e?llig(keit)?(sdatum)?|zahlbar\s?bis|due)\b`)
	reNetLabel       = regexp.MustCompile(`(?i)\b(netto|nettobetrag|net)\b`)
	reTaxLabel       = regexp.MustCompile(`(?i)\b(mwst|ust|umsatzsteuer|vat|steuer)\b`)
	reGrossLabel     = regexp.MustCompile(`(?i)\b(brutto|gesamt(betrag)?|endbetrag|total|summe)\b`)
	reIBANLabel      = regexp.MustCompile(`(?i)\biban\b`)
	reBICLabel       = regexp.MustCompile(`(?i)\bbic\b`)
	reBuyerRefLabel  = regexp.MustCompile(`(?i)\b(leitweg-?id|referenz|buyer\s?reference)\b`)
	reVATIDLabel     = regexp.MustCompile(`(?i)\b(ust-?idnr|vat\s?id)\b`)
	reBuyerLabel     = regexp.MustCompile(`(?i)(empf(ae|ä)nger|rechnung\s+an|\bkunde\b|bill\s?to)`)

	reDate     = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$|^\d{4}-\d{2}-\d{2}$`)
	reDecimal  = regexp.MustCompile(`^-?[\d.,]+$`)
	reIBAN     = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{8,30}$`)
	rePercent  = regexp.MustCompile(`^(\d{1,2}(?:[.,]\d)?)\s?%$`)
	reBareRate = regexp.MustCompile(`^(\d{1,2}(?:[.,]\d)?)$`)
)

// Build maps tokens to a draft. A parse failure on a required field leaves the
// field unset, records a degradation, and drops the field's region so its
// confidence scores 0. It never aborts the document.
func (s *Structurer) Build(raw ocr.RawExtraction) StructuredResult {
	lines := groupLines(raw)
	draft := entity.InvoiceDraft{CurrencyCode: "EUR"}
	regions := confidence.FieldRegions{}

	s.extractSellerName(lines, &draft, regions)
	s.extractBuyer(lines, &draft, regions)
	s.extractInvoiceNumber(lines, &draft, regions)
	s.extractDates(lines, &draft, regions)
	s.extractAmounts(lines, &draft, regions)
	s.extractTaxRate(raw, &draft, regions)
	s.extractPayment(lines, &draft, regions)
	s.extractLineItems(lines, &draft, regions)

	if draft.InvoiceNumber == "" {
		draft.Degrade("invoice number not found")
	}
	if draft.Buyer.Name == "" {
		draft.Degrade("buyer not found")
	}
	if draft.IssueDate == "" {
		draft.Degrade("issue date not found")
	}
	if draft.GrossAmount == nil {
		draft.Degrade("gross amount not found")
	}
	if err := draft.CheckAmounts(); err != nil {
		// flagged for validation, never auto-corrected
		draft.Degrade("amount mismatch: %v", err)
	}
	if draft.TaxRate != nil && !constants.IsAllowedTaxRate(*draft.TaxRate) {
		draft.Degrade("tax rate %.1f outside permitted set", *draft.TaxRate)
	}

	s.logger.Debug("extract.structure.done",
		"fields_located", len(regions),
		"degradations", len(draft.Degradations),
		"line_items", len(draft.LineItems),
	)
	return StructuredResult{Draft: draft, Regions: regions}
}

// line is a reading-order row of tokens with their global indexes.
type line struct {
	text string
	idx  []int
	toks []ocr.Token
}

func groupLines(raw ocr.RawExtraction) []line {
	byLine := map[int]*line{}
	order := []int{}
	for i, t := range raw.Tokens {
		l, ok := byLine[t.Line]
		if !ok {
			l = &line{}
			byLine[t.Line] = l
			order = append(order, t.Line)
		}
		l.idx = append(l.idx, i)
		l.toks = append(l.toks, t)
	}
	lines := make([]line, 0, len(order))
	for _, n := range order {
		l := byLine[n]
		parts := make([]string, len(l.toks))
		for i, t := range l.toks {
			parts[i] = t.Text
		}
		l.text = strings.Join(parts, " ")
		lines = append(lines, *l)
	}
	return lines
}

func (s *Structurer) extractSellerName(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	if len(lines) == 0 {
		return
	}
	draft.Seller.Name = lines[0].text
	regions["seller_name"] = lines[0].idx
	if len(lines) > 1 && !anyLabel(lines[1].text) {
		draft.Seller.Address = lines[1].text
		regions["seller_address"] = lines[1].idx
	}
}

func anyLabel(text string) bool {
	for _, re := range []*regexp.Regexp{reInvoiceNoLabel, reIssueDateLabel, reNetLabel, reGrossLabel, reIBANLabel, reBuyerLabel, reBuyerRefLabel} {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// extractBuyer locates the recipient block by its label line. The buyer name
// is either on the label line itself ("Rechnungsempfaenger: Beispiel AG") or
// on the following line; the line after the name, unless it is another
// labeled field, is the buyer address.
func (s *Structurer) extractBuyer(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	for n := 0; n < len(lines); n++ {
		if !reBuyerLabel.MatchString(lines[n].text) {
			continue
		}

		name, idx := afterLabel(lines[n], reBuyerLabel)
		if name == "" && n+1 < len(lines) && !anyLabel(lines[n+1].text) {
			n++
			name, idx = lines[n].text, lines[n].idx
		}
		if name == "" {
			return
		}
		draft.Buyer.Name = name
		regions["buyer_name"] = idx

		if n+1 < len(lines) && !anyLabel(lines[n+1].text) {
			draft.Buyer.Address = lines[n+1].text
			regions["buyer_address"] = lines[n+1].idx
		}
		return
	}
}

// afterLabel returns the text of the tokens following the label on a line.
// Tokens overlapping the label match are skipped, so multi-word labels like
// "Rechnung an" work too.
func afterLabel(l line, labelRe *regexp.Regexp) (string, []int) {
	loc := labelRe.FindStringIndex(l.text)
	if loc == nil {
		return "", nil
	}
	var parts []string
	var idx []int
	pos := 0
	for i, tok := range l.toks {
		start := pos
		pos += len(tok.Text) + 1
		if start < loc[1] {
			continue
		}
		parts = append(parts, tok.Text)
		idx = append(idx, l.idx[i])
	}
	return strings.Join(parts, " "), idx
}

func (s *Structurer) extractInvoiceNumber(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	for _, l := range lines {
		if !reInvoiceNoLabel.MatchString(l.text) {
			continue
		}
		// the value is the last token that is not part of the label
		for i := len(l.toks) - 1; i >= 0; i-- {
			tok := l.toks[i]
			if reInvoiceNoLabel.MatchString(tok.Text) || strings.EqualFold(tok.Text, "nr") || tok.Text == ":" {
				continue
			}
			draft.InvoiceNumber = strings.TrimSuffix(tok.Text, ":")
			regions["invoice_number"] = []int{l.idx[i]}
			return
		}
	}
}

func (s *Structurer) extractDates(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	find := func(labelRe, skipRe *regexp.Regexp) (string, []int) {
		for _, l := range lines {
			if !labelRe.MatchString(l.text) {
				continue
			}
			if skipRe != nil && skipRe.MatchString(l.text) {
				continue
			}
			for i, tok := range l.toks {
				if reDate.MatchString(tok.Text) {
					if iso, err := normalizeDate(tok.Text); err == nil {
						return iso, []int{l.idx[i]}
					}
					s.logger.Warn("extract.date.unparsable", "token", tok.Text)
				}
			}
		}
		return "", nil
	}

	if iso, idx := find(reDueDateLabel, nil); iso != "" {
		draft.DueDate = iso
		regions["due_date"] = idx
	}
	if iso, idx := find(reIssueDateLabel, reDueDateLabel); iso != "" {
		draft.IssueDate = iso
		regions["issue_date"] = idx
	}
}

func normalizeDate(s string) (string, error) {
	for _, layout := range []string{"02.01.2006", "2.1.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", &time.ParseError{Layout: "02.01.2006", Value: s}
}

func (s *Structurer) extractAmounts(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	set := func(field string, labelRe *regexp.Regexp, excludeRe *regexp.Regexp, dst **float64) {
		for _, l := range lines {
			if !labelRe.MatchString(l.text) {
				continue
			}
			if excludeRe != nil && excludeRe.MatchString(l.text) {
				continue
			}
			// the amount is the last decimal-shaped token on the line
			for i := len(l.toks) - 1; i >= 0; i-- {
				tok := l.toks[i]
				if !reDecimal.MatchString(tok.Text) || !strings.ContainsAny(tok.Text, ",.") {
					continue
				}
				v, err := ParseDecimal(tok.Text)
				if err != nil {
					draft.Degrade("%s: unparsable amount %q", field, tok.Text)
					s.logger.Warn("extract.amount.unparsable", "field", field, "token", tok.Text, "error", err)
					return
				}
				*dst = &v
				regions[field] = []int{l.idx[i]}
				return
			}
		}
	}

	set("net_amount", reNetLabel, nil, &draft.NetAmount)
	set("tax_amount", reTaxLabel, nil, &draft.TaxAmount)
	set("gross_amount", reGrossLabel, reNetLabel, &draft.GrossAmount)
}

func (s *Structurer) extractTaxRate(raw ocr.RawExtraction, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	for i, tok := range raw.Tokens {
		var rateText string
		if m := rePercent.FindStringSubmatch(tok.Text); m != nil {
			rateText = m[1]
		} else if i+1 < len(raw.Tokens) && raw.Tokens[i+1].Text == "%" && reBareRate.MatchString(tok.Text) {
			rateText = tok.Text
		} else {
			continue
		}
		v, err := ParseDecimal(rateText)
		if err != nil {
			continue
		}
		if snapped, ok := constants.SnapTaxRate(v); ok {
			v = snapped
		}
		draft.TaxRate = &v
		regions["tax_rate"] = []int{i}
		return
	}
}

func (s *Structurer) extractPayment(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	for _, l := range lines {
		if reIBANLabel.MatchString(l.text) && draft.Payment.IBAN == "" {
			// IBANs are often split across tokens; join the trailing tokens
			var parts []string
			var idx []int
			for i, tok := range l.toks {
				up := strings.ToUpper(strings.TrimSuffix(tok.Text, ":"))
				if up == "IBAN" {
					parts = parts[:0]
					idx = idx[:0]
					continue
				}
				parts = append(parts, up)
				idx = append(idx, l.idx[i])
			}
			joined := strings.Join(parts, "")
			if reIBAN.MatchString(joined) {
				draft.Payment.IBAN = joined
				regions["iban"] = idx
			} else if joined != "" {
				draft.Degrade("iban candidate %q failed shape check", joined)
			}
		}
		if reBICLabel.MatchString(l.text) && draft.Payment.BIC == "" {
			for i := len(l.toks) - 1; i >= 0; i-- {
				tok := strings.ToUpper(strings.TrimSuffix(l.toks[i].Text, ":"))
				if tok != "BIC" && len(tok) >= 8 && len(tok) <= 11 {
					draft.Payment.BIC = tok
					regions["bic"] = []int{l.idx[i]}
					break
				}
			}
		}
		if reBuyerRefLabel.MatchString(l.text) && draft.Payment.BuyerReference == "" {
			last := len(l.toks) - 1
			if last >= 0 && !reBuyerRefLabel.MatchString(l.toks[last].Text) {
				draft.Payment.BuyerReference = l.toks[last].Text
				regions["buyer_reference"] = []int{l.idx[last]}
			}
		}
		if reVATIDLabel.MatchString(l.text) && draft.Seller.VATID == "" {
			last := len(l.toks) - 1
			if last >= 0 && !reVATIDLabel.MatchString(l.toks[last].Text) {
				draft.Seller.VATID = l.toks[last].Text
				regions["seller_vat_id"] = []int{l.idx[last]}
			}
		}
	}
}

// extractLineItems treats a row ending in three numeric tokens as
// "description qty unit-price total" and keeps the first three.
func (s *Structurer) extractLineItems(lines []line, draft *entity.InvoiceDraft, regions confidence.FieldRegions) {
	var itemIdx []int
	for _, l := range lines {
		n := len(l.toks)
		if n < 4 {
			continue
		}
		nums := make([]float64, 0, 3)
		for _, tok := range l.toks[n-3:] {
			if !reDecimal.MatchString(tok.Text) {
				break
			}
			v, err := ParseDecimal(tok.Text)
			if err != nil {
				break
			}
			nums = append(nums, v)
		}
		if len(nums) != 3 {
			continue
		}
		descToks := l.toks[:n-3]
		if anyLabel(l.text) {
			continue
		}
		parts := make([]string, len(descToks))
		for i, t := range descToks {
			parts[i] = t.Text
		}
		draft.LineItems = append(draft.LineItems, entity.LineItem{
			Description: strings.Join(parts, " "),
			Quantity:    nums[0],
			UnitPrice:   nums[1],
		})
		itemIdx = append(itemIdx, l.idx...)
	}
	if len(itemIdx) > 0 {
		regions["line_items"] = itemIdx
	}
}
