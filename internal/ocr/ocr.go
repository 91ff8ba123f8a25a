package ocr

import (
	"context"
	"time"
)

// Token is one recognized word with pixel geometry and a confidence in [0,100].
type Token struct {
	Text       string
	X, Y       float64
	W, H       float64
	Line       int
	Confidence float64
}

// RawExtraction is the transient output of the extraction engine. It is owned
// by a single pipeline run and discarded after field extraction.
type RawExtraction struct {
	Tokens   []Token
	Text     string
	Pages    int
	Method   string // "image-ocr" | "pdf-text"
	Language string
	Duration time.Duration
	Warnings []string
}

// MeanConfidence returns the average token confidence, 0 for empty extractions.
func (r RawExtraction) MeanConfidence() float64 {
	if len(r.Tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range r.Tokens {
		sum += t.Confidence
	}
	return sum / float64(len(r.Tokens))
}

// DocumentInput is raw upload content plus its declared type.
type DocumentInput struct {
	Filename     string
	DeclaredType string // "pdf" | "image" | "xml"
	Bytes        []byte
}

// Engine normalizes an OCR backend's native token representation into the
// system token model. Implementations are pure adapters to external engines.
type Engine interface {
	Extract(ctx context.Context, input DocumentInput) (RawExtraction, error)
}
