package ocr

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
)

// Extractor picks an extraction strategy for a document and normalizes engine
// failures into the ExtractionFailed kind. It is the single entry point the
// orchestrator drives.
type Extractor struct {
	image   Engine
	pdfText Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor wires the image and PDF engines behind one adapter.
func NewExtractor(image, pdfText Engine, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Extractor{image: image, pdfText: pdfText, timeout: timeout, logger: logger}
}

// Extract dispatches on the document format. Unsupported or corrupt inputs are
// terminal for the document: the caller must not retry in place.
func (e *Extractor) Extract(ctx context.Context, input DocumentInput) (RawExtraction, error) {
	format := formatFor(input)
	e.logger.Debug("ocr.extract.start", "filename", input.Filename, "format", format, "bytes", len(input.Bytes))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res RawExtraction
	var err error
	switch format {
	case constants.PDF:
		res, err = e.pdfText.Extract(ctx, input)
	case constants.IMAGE:
		res, err = e.image.Extract(ctx, input)
	default:
		e.logger.Error("ocr.extract.unsupported", "filename", input.Filename, "declared_type", input.DeclaredType)
		return RawExtraction{}, common.WrapKind(common.ErrExtractionFailed, "ocr.extract",
			&unsupportedFormatError{filename: input.Filename})
	}
	if err != nil {
		e.logger.Error("ocr.extract.failed", "filename", input.Filename, "format", format, "error", err)
		return RawExtraction{}, common.WrapKind(common.ErrExtractionFailed, "ocr.extract", err)
	}

	e.logger.Debug("ocr.extract.ok",
		"filename", input.Filename,
		"method", res.Method,
		"tokens", len(res.Tokens),
		"pages", res.Pages,
		"mean_confidence", res.MeanConfidence(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func formatFor(input DocumentInput) string {
	switch input.DeclaredType {
	case "pdf":
		return constants.PDF
	case "image":
		return constants.IMAGE
	case "xml":
		return constants.XML
	}
	return constants.MapExtToFormat(filepath.Ext(input.Filename))
}

type unsupportedFormatError struct {
	filename string
}

func (e *unsupportedFormatError) Error() string {
	return "unsupported document format: " + e.filename
}
