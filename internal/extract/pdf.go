// Package extract pulls plain text out of source PDF documents.
package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/logger"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Clean normalizes extracted text: NUL bytes become spaces and runs of
// whitespace collapse to a single space.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\x00", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// PDFExtractor reads PDF files page by page. A page that cannot be decoded
// degrades to partial output with a warning rather than failing the document.
type PDFExtractor struct {
	log logger.Logger
}

func NewPDFExtractor(log logger.Logger) *PDFExtractor {
	return &PDFExtractor{log: log}
}

// Extract returns the cleaned per-page text of the PDF at path. The document
// id is the file name without its extension. An unreadable file yields an
// ExtractionError.
func (e *PDFExtractor) Extract(path string) (domain.Document, error) {
	fileName := filepath.Base(path)
	docID := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	doc := domain.Document{ID: docID, FileName: fileName}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, &domain.ExtractionError{DocID: docID, Err: err}
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			e.log.Warn("page extraction failed, skipping", "doc", docID, "page", i, "error", err)
			continue
		}
		text = Clean(text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, domain.Page{Number: i, Text: text})
	}
	if len(doc.Pages) == 0 {
		return domain.Document{}, &domain.ExtractionError{
			DocID: docID,
			Err:   fmt.Errorf("no extractable text in %d pages", total),
		}
	}
	return doc, nil
}

// pageText decodes one page. The pdf library panics on some malformed content
// streams; those are converted to per-page errors.
func pageText(reader *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}
	return page.GetPlainText(nil)
}
