package compliance

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/entity"
)

// UBL namespaces and the XRechnung customization identifier.
const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"

	customizationID = "urn:cen.eu:en16931:2017#compliant#urn:xeinkauf.de:kosit:xrechnung_3.0"
	invoiceTypeCode = "380" // commercial invoice
)

// Generator produces XRechnung XML from a draft through the embedded field
// table. Pure transform; a missing required field aborts generation.
type Generator struct {
	mappings []Mapping
	logger   *slog.Logger
}

// NewGenerator loads the field table.
func NewGenerator(logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mappings, err := LoadMappings()
	if err != nil {
		return nil, err
	}
	return &Generator{mappings: mappings, logger: logger}, nil
}

// BuildXML renders the compliance document. invoiceNumber overrides the
// draft's extracted number with the tenant-sequence number when non-empty.
// Optional fields may be absent; required-field omission is a GenerationError
// naming the missing business terms.
func (g *Generator) BuildXML(d *entity.InvoiceDraft, invoiceNumber string) ([]byte, error) {
	root := newElement("Invoice")
	root.attrs = append(root.attrs,
		attr{"xmlns", nsInvoice},
		attr{"xmlns:cac", nsCAC},
		attr{"xmlns:cbc", nsCBC},
	)
	root.child("cbc:CustomizationID").text = customizationID

	var missing []string
	currency := d.CurrencyCode
	if currency == "" {
		currency = "EUR"
	}

	for _, m := range g.mappings {
		value, ok := valueFor(d, invoiceNumber, m.Field)
		if !ok && m.Field == "currency_code" {
			// German domestic invoices without an explicit currency are EUR.
			value, ok = currency, true
		}
		if !ok {
			if m.Required {
				missing = append(missing, fmt.Sprintf("%s (%s)", m.BT, m.Field))
			}
			continue
		}
		el := root.ensurePath(m.Path)
		el.text = value
		if m.CurrencyAttr {
			el.attrs = append(el.attrs, attr{"currencyID", currency})
		}
		if m.SchemeAttr {
			if scheme := schemeFor(d, m.Field); scheme != "" {
				el.attrs = append(el.attrs, attr{"schemeID", scheme})
			}
		}
	}
	if len(missing) > 0 {
		return nil, common.WrapKind(common.ErrGeneration, "compliance.build",
			fmt.Errorf("required fields missing: %s", strings.Join(missing, ", ")))
	}

	// InvoiceTypeCode sits after IssueDate in UBL element order.
	root.insertAfter("cbc:IssueDate", "cbc:InvoiceTypeCode").text = invoiceTypeCode

	g.appendLines(root, d, currency)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	root.write(&buf, 0)
	g.logger.Debug("compliance.build.ok", "bytes", buf.Len(), "lines", len(d.LineItems))
	return buf.Bytes(), nil
}

// appendLines emits one cac:InvoiceLine per draft line item. Lines are
// positional, so they are handled here rather than in the field table.
func (g *Generator) appendLines(root *element, d *entity.InvoiceDraft, currency string) {
	for i, item := range d.LineItems {
		line := root.child("cac:InvoiceLine")
		line.child("cbc:ID").text = strconv.Itoa(i + 1)
		qty := line.child("cbc:InvoicedQuantity")
		qty.text = strconv.FormatFloat(item.Quantity, 'f', -1, 64)
		qty.attrs = append(qty.attrs, attr{"unitCode", "C62"})
		total := line.child("cbc:LineExtensionAmount")
		total.text = strconv.FormatFloat(item.Quantity*item.UnitPrice, 'f', 2, 64)
		total.attrs = append(total.attrs, attr{"currencyID", currency})
		line.child("cac:Item").child("cbc:Name").text = item.Description
		price := line.child("cac:Price").child("cbc:PriceAmount")
		price.text = strconv.FormatFloat(item.UnitPrice, 'f', 2, 64)
		price.attrs = append(price.attrs, attr{"currencyID", currency})
	}
}

// element is a minimal ordered XML tree; paths from the mapping table are
// materialized on demand so sibling terms share their aggregate parents.
type element struct {
	name     string
	attrs    []attr
	text     string
	children []*element
}

type attr struct {
	name  string
	value string
}

func newElement(name string) *element { return &element{name: name} }

func (e *element) child(name string) *element {
	c := &element{name: name}
	e.children = append(e.children, c)
	return c
}

// ensurePath walks or creates the path, reusing existing aggregate elements
// but always appending a fresh leaf... except that repeated table rows under
// the same aggregate share it (e.g. TaxTotal).
func (e *element) ensurePath(path string) *element {
	cur := e
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		last := i == len(segs)-1
		if !last {
			if existing := cur.find(seg); existing != nil {
				cur = existing
				continue
			}
		}
		cur = cur.child(seg)
	}
	return cur
}

func (e *element) find(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (e *element) insertAfter(sibling, name string) *element {
	c := &element{name: name}
	for i, existing := range e.children {
		if existing.name == sibling {
			e.children = append(e.children[:i+1], append([]*element{c}, e.children[i+1:]...)...)
			return c
		}
	}
	e.children = append(e.children, c)
	return c
}

func (e *element) write(buf *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)
	buf.WriteString(indent + "<" + e.name)
	for _, a := range e.attrs {
		buf.WriteString(" " + a.name + `="` + escapeXML(a.value) + `"`)
	}
	if e.text == "" && len(e.children) == 0 {
		buf.WriteString("/>\n")
		return
	}
	buf.WriteString(">")
	if len(e.children) == 0 {
		buf.WriteString(escapeXML(e.text) + "</" + e.name + ">\n")
		return
	}
	buf.WriteString("\n")
	for _, c := range e.children {
		c.write(buf, depth+1)
	}
	buf.WriteString(indent + "</" + e.name + ">\n")
}

func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
