package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// buildPDF writes a minimal single-font PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pages {
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestPDFParser_InterfaceCompliance(t *testing.T) {
	var _ driven.DocumentParser = (*PDFParser)(nil)
}

func TestPDFParser_SupportedTypes(t *testing.T) {
	p := NewPDFParser()
	assert.Equal(t, []string{"application/pdf"}, p.SupportedTypes())
	assert.Equal(t, 50, p.Priority())
}

func TestPDFParser_ExtractsPagesInOrder(t *testing.T) {
	data := buildPDF("Alpha Capital overview", "Gamma growth metrics")

	text, err := NewPDFParser().Parse(context.Background(), data)
	require.NoError(t, err)

	alpha := strings.Index(text, "Alpha")
	gamma := strings.Index(text, "Gamma")
	require.NotEqual(t, -1, alpha, "missing page 1 text in %q", text)
	require.NotEqual(t, -1, gamma, "missing page 2 text in %q", text)
	assert.Less(t, alpha, gamma)
}

func TestPDFParser_NotAPDF(t *testing.T) {
	_, err := NewPDFParser().Parse(context.Background(), []byte("just some text"))
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestPDFParser_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"header only":   []byte("%PDF-1.4\n"),
		"garbage":       []byte("%PDF-1.7\n\x00\x01\x02 not a pdf at all %%EOF"),
		"bad startxref": []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\nstartxref\n999999\n%%EOF\n"),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			text, err := NewPDFParser().Parse(context.Background(), data)
			assert.ErrorIs(t, err, domain.ErrParse)
			assert.Empty(t, text)
		})
	}
}

func TestPDFParser_TruncatedDocument(t *testing.T) {
	data := buildPDF("Truncated deal memo")
	_, err := NewPDFParser().Parse(context.Background(), data[:len(data)/2])
	assert.ErrorIs(t, err, domain.ErrParse)
}
