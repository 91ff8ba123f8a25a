package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// pdfTextConfidence is assigned to tokens read from a PDF text layer: the
// bytes are deterministic, not probabilistic.
const pdfTextConfidence = 100.0

// PDFTextEngine reads the embedded text layer of a PDF. It fails when the
// document carries no extractable text (scanned-only PDFs must be rasterized
// upstream before they reach the pipeline).
type PDFTextEngine struct{}

// NewPDFTextEngine constructs a text-layer extraction engine.
func NewPDFTextEngine() *PDFTextEngine {
	return &PDFTextEngine{}
}

// Extract parses the PDF and synthesizes word tokens from positioned text runs.
func (e *PDFTextEngine) Extract(ctx context.Context, input DocumentInput) (RawExtraction, error) {
	if err := ctx.Err(); err != nil {
		return RawExtraction{}, err
	}
	start := time.Now()

	r, err := pdf.NewReader(bytes.NewReader(input.Bytes), int64(len(input.Bytes)))
	if err != nil {
		return RawExtraction{}, fmt.Errorf("open pdf: %w", err)
	}

	var tokens []Token
	var sb strings.Builder
	pages := r.NumPage()
	line := 0
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageTokens, pageLines := groupTextRuns(p.Content().Text, line)
		line = pageLines
		for _, t := range pageTokens {
			tokens = append(tokens, t)
			sb.WriteString(t.Text)
			sb.WriteByte(' ')
		}
	}

	if len(tokens) == 0 {
		return RawExtraction{}, fmt.Errorf("pdf has no text layer")
	}

	return RawExtraction{
		Tokens:   tokens,
		Text:     strings.TrimSpace(sb.String()),
		Pages:    pages,
		Method:   "pdf-text",
		Duration: time.Since(start),
	}, nil
}

// groupTextRuns merges positioned character runs into word tokens. Runs on the
// same baseline are joined until a gap wider than half the average run width
// or an explicit space ends the word. Returns the tokens and the next line index.
func groupTextRuns(runs []pdf.Text, startLine int) ([]Token, int) {
	var tokens []Token
	line := startLine

	var word strings.Builder
	var wx, wy, wEnd, wh float64

	flush := func() {
		w := strings.TrimSpace(word.String())
		if w != "" {
			tokens = append(tokens, Token{
				Text:       w,
				X:          wx,
				Y:          wy,
				W:          wEnd - wx,
				H:          wh,
				Line:       line,
				Confidence: pdfTextConfidence,
			})
		}
		word.Reset()
	}

	lastY := -1.0
	for _, run := range runs {
		if run.S == "" {
			continue
		}
		newLine := lastY >= 0 && run.Y != lastY
		if newLine {
			flush()
			line++
		}
		lastY = run.Y

		if strings.TrimSpace(run.S) == "" {
			flush()
			continue
		}
		gap := run.X - wEnd
		if word.Len() > 0 && gap > run.W {
			flush()
		}
		if word.Len() == 0 {
			wx, wy = run.X, run.Y
			if run.FontSize > 0 {
				wh = run.FontSize
			}
		}
		word.WriteString(run.S)
		wEnd = run.X + run.W
	}
	flush()
	return tokens, line + 1
}
