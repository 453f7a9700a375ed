package constants

import "strings"

// Document formats recorded on extract jobs.
const (
	PDF  = "PDF"
	TEXT = "TXT"
)

// Supported media types.
const (
	MimePDF  = "application/pdf"
	MimeXPDF = "application/x-pdf"
	MimeText = "text/plain"
)

// FileTypes holds the allowed values for the format column in extract_jobs.
var FileTypes = []string{PDF, TEXT}

// AllowedExtensions holds the file extensions picked up by directory imports and the watcher.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"txt":  {},
	"text": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without dot) is importable.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MimeForExt maps a file extension to its media type, or "" when unsupported.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MimePDF
	case "txt", "text":
		return MimeText
	default:
		return ""
	}
}

// MapMimeToFormat maps a bare media type (no parameters) to a document format.
// Returns "" for unsupported types.
func MapMimeToFormat(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case MimePDF, MimeXPDF:
		return PDF
	case MimeText:
		return TEXT
	default:
		return ""
	}
}
