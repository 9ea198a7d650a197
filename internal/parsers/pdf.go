package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

// PDFParser extracts the text layer of a PDF, page by page.
// Scanned pages without a text layer contribute nothing.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) SupportedTypes() []string {
	return []string{mimePDF}
}

func (p *PDFParser) Priority() int {
	return 50
}

// Parse joins the text of every page with a newline, in page order.
func (p *PDFParser) Parse(ctx context.Context, data []byte) (text string, err error) {
	if !hasPDFHeader(data) {
		return "", fmt.Errorf("%w: missing PDF header", domain.ErrParse)
	}

	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", domain.ErrParse, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domain.ErrParse, i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}

func hasPDFHeader(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
