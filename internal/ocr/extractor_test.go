package ocr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/belegwerk/einvoice/internal/common"
)

// stubEngine lets us drive the adapter without a tesseract install.
type stubEngine struct {
	res RawExtraction
	err error
}

func (s *stubEngine) Extract(_ context.Context, _ DocumentInput) (RawExtraction, error) {
	return s.res, s.err
}

func TestExtractorDispatchesByDeclaredType(t *testing.T) {
	image := &stubEngine{res: RawExtraction{Method: "image-ocr", Tokens: []Token{{Text: "x", Confidence: 90}}}}
	pdfText := &stubEngine{res: RawExtraction{Method: "pdf-text", Tokens: []Token{{Text: "y", Confidence: 100}}}}
	e := NewExtractor(image, pdfText, time.Second, nil)

	tests := []struct {
		name       string
		input      DocumentInput
		wantMethod string
	}{
		{"declared pdf", DocumentInput{Filename: "a.bin", DeclaredType: "pdf"}, "pdf-text"},
		{"declared image", DocumentInput{Filename: "a.bin", DeclaredType: "image"}, "image-ocr"},
		{"extension fallback", DocumentInput{Filename: "scan.jpg"}, "image-ocr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if res.Method != tt.wantMethod {
				t.Fatalf("method = %q, want %q", res.Method, tt.wantMethod)
			}
		})
	}
}

func TestExtractorUnsupportedFormatIsTerminal(t *testing.T) {
	e := NewExtractor(&stubEngine{}, &stubEngine{}, time.Second, nil)
	_, err := e.Extract(context.Background(), DocumentInput{Filename: "data.csv"})
	if !common.IsKind(err, common.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestExtractorWrapsEngineFailure(t *testing.T) {
	image := &stubEngine{err: fmt.Errorf("corrupt image header")}
	e := NewExtractor(image, &stubEngine{}, time.Second, nil)
	_, err := e.Extract(context.Background(), DocumentInput{Filename: "scan.png"})
	if !common.IsKind(err, common.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if !errors.Is(err, common.ErrExtractionFailed) {
		t.Fatalf("kind not preserved through wrapping: %v", err)
	}
}

func TestMeanConfidence(t *testing.T) {
	r := RawExtraction{Tokens: []Token{{Confidence: 80}, {Confidence: 100}}}
	if got := r.MeanConfidence(); got != 90 {
		t.Fatalf("MeanConfidence() = %v, want 90", got)
	}
	if got := (RawExtraction{}).MeanConfidence(); got != 0 {
		t.Fatalf("empty MeanConfidence() = %v, want 0", got)
	}
}
