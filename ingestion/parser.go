package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted text of one 1-based page.
type Page struct {
	Number int
	Text   string
}

type DocumentParser interface {
	Parse(ctx context.Context, data []byte) ([]Page, error)
}

// PDFParser extracts per-page plain text. Pages without content yield an
// empty Text so that the page count matches the document.
type PDFParser struct{}

func (PDFParser) Parse(_ context.Context, data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := doc.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			f := p.Font(name)
			fonts[name] = &f
		}

		text, textErr := p.GetPlainText(fonts)
		if textErr != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, textErr)
		}
		pages = append(pages, Page{Number: i, Text: normalizePlainText(text)})
	}

	return pages, nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
