package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractConfig tunes the gosseract-backed engine.
type TesseractConfig struct {
	Language string // default "deu"
	DPI      int    // default 300
}

// TesseractEngine runs OCR on image bytes through the gosseract client and
// returns word-level tokens with bounding boxes and confidences.
type TesseractEngine struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed extraction engine.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if cfg.Language == "" {
		cfg.Language = "deu"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &TesseractEngine{cfg: cfg, clientFactory: gosseract.NewClient}
}

// Extract recognizes the image and normalizes tesseract's word boxes into
// tokens. Confidences are scaled to [0,100].
func (e *TesseractEngine) Extract(ctx context.Context, input DocumentInput) (RawExtraction, error) {
	if err := ctx.Err(); err != nil {
		return RawExtraction{}, err
	}
	start := time.Now()

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(input.Bytes); err != nil {
		return RawExtraction{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.cfg.Language); err != nil {
		return RawExtraction{}, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.cfg.DPI)); err != nil {
		return RawExtraction{}, fmt.Errorf("set dpi: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return RawExtraction{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return RawExtraction{}, fmt.Errorf("word boxes: %w", err)
	}

	tokens := make([]Token, 0, len(boxes))
	line, lastY := 0, -1
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		// tesseract reports boxes in reading order; a jump in Y starts a new line
		if lastY >= 0 && b.Box.Min.Y > lastY+b.Box.Dy()/2 {
			line++
		}
		lastY = b.Box.Min.Y
		tokens = append(tokens, Token{
			Text:       word,
			X:          float64(b.Box.Min.X),
			Y:          float64(b.Box.Min.Y),
			W:          float64(b.Box.Dx()),
			H:          float64(b.Box.Dy()),
			Line:       line,
			Confidence: clampConfidence(b.Confidence),
		})
	}

	return RawExtraction{
		Tokens:   tokens,
		Text:     strings.TrimSpace(text),
		Pages:    1,
		Method:   "image-ocr",
		Language: e.cfg.Language,
		Duration: time.Since(start),
	}, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
