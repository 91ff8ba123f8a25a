package constants

import "strings"

// Document formats the pipeline distinguishes between.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	XML   = "XML"
)

// AllowedExtensions holds the file extensions accepted at upload intake.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"xml":  {},
}

// DefaultMaxUploadBytes bounds the size of a single upload.
const DefaultMaxUploadBytes = 25 << 20 // 25 MiB

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a document format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	case "xml":
		return XML
	default:
		return ""
	}
}
