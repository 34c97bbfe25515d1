// Package ingestion turns uploaded documents into embedded, tagged chunks in
// the document store.
package ingestion

import (
	"bytes"
	"mime"
	"strings"
)

// DocumentFormat enumerates supported document payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = ""
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
)

var pdfMagic = []byte("%PDF-")

// DetectFormat infers a document format from the declared content type and
// the leading bytes of the payload. Magic bytes win over the declared type.
func DetectFormat(contentType string, data []byte) DocumentFormat {
	if bytes.HasPrefix(data, pdfMagic) {
		return FormatPDF
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "application/pdf", "application/x-pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}
