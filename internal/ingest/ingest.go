// Package ingest checks raw uploads before they enter the pipeline. A
// rejected upload never reaches the OCR engine and is logged as an error
// outcome at the gate.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/belegwerk/einvoice/constants"
	"github.com/belegwerk/einvoice/internal/common"
	"github.com/belegwerk/einvoice/internal/ocr"
)

// Limits bounds what the gate accepts.
type Limits struct {
	MaxBytes int64
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: constants.DefaultMaxUploadBytes}
}

// ValidateUpload rejects empty, oversized and unsupported-type uploads.
// Returns the invalid-input kind so the caller can log a machine-readable
// rejection reason.
func ValidateUpload(in ocr.DocumentInput, limits Limits) error {
	if len(in.Bytes) == 0 {
		return common.WrapKind(common.ErrInvalidInput, "ingest.validate",
			fmt.Errorf("empty upload %q", in.Filename))
	}
	if limits.MaxBytes > 0 && int64(len(in.Bytes)) > limits.MaxBytes {
		return common.WrapKind(common.ErrInvalidInput, "ingest.validate",
			fmt.Errorf("upload %q exceeds %d bytes", in.Filename, limits.MaxBytes))
	}

	ext := constants.NormalizeExt(filepath.Ext(in.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return common.WrapKind(common.ErrInvalidInput, "ingest.validate",
			fmt.Errorf("unsupported file extension %q", ext))
	}

	if in.DeclaredType != "" {
		declared := constants.MapExtToFormat(in.DeclaredType)
		if declared == "" {
			return common.WrapKind(common.ErrInvalidInput, "ingest.validate",
				fmt.Errorf("unknown declared type %q", in.DeclaredType))
		}
		if fromExt := constants.MapExtToFormat(ext); fromExt != "" && fromExt != declared {
			return common.WrapKind(common.ErrInvalidInput, "ingest.validate",
				fmt.Errorf("declared type %q does not match extension %q", in.DeclaredType, ext))
		}
	}
	return nil
}

// SanitizeFilename strips path components and control characters from a
// client-supplied filename before it is logged or persisted.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
}
