package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docqa/internal/core"
)

const (
	mimePDF   = "application/pdf"
	mimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlain = "text/plain"
)

// Extractor pulls plain text out of raw document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

var _ Extractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements Extractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// Extract returns best-effort text. An empty result is not an error; bytes that
// do not parse as the declared format fail with core.ErrExtraction.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mime := baseMime(contentType)
	switch mime {
	case mimePlain:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text/plain body is not valid UTF-8", core.ErrExtraction)
		}
		return string(data), nil
	case mimePDF:
		// pdftotext happily reports garbage as an empty document; reject early.
		if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
			return "", fmt.Errorf("%w: missing PDF header", core.ErrExtraction)
		}
	case "":
		return "", fmt.Errorf("%w: unknown content type", core.ErrExtraction)
	}

	res, err := docconv.Convert(bytes.NewReader(data), mime, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrExtraction, mime, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		log.Printf("docconv: extracted empty text for content type '%s'", mime)
	}
	return res.Body, nil
}

// ContentTypeFor picks the MIME type used for extraction from an upload's
// file name, falling back to the declared header value.
func ContentTypeFor(filename, declared string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return mimePlain
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	}
	if mt := docconv.MimeTypeByExtension(filename); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return baseMime(declared)
}

func baseMime(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
