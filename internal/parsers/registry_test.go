package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

type stubParser struct {
	types    []string
	priority int
	text     string
}

func (s *stubParser) Parse(context.Context, []byte) (string, error) { return s.text, nil }
func (s *stubParser) SupportedTypes() []string                      { return s.types }
func (s *stubParser) Priority() int                                 { return s.priority }

func TestRegistry_Get_PrioritySelection(t *testing.T) {
	r := NewRegistry()
	low := &stubParser{types: []string{"text/*"}, priority: 1}
	high := &stubParser{types: []string{"text/plain"}, priority: 90}
	r.Register(low)
	r.Register(high)

	assert.Same(t, high, r.Get("text/plain; charset=utf-8"))
	assert.Same(t, low, r.Get("text/html"))
	assert.Nil(t, r.Get("application/zip"))
}

func TestRegistry_SupportedTypes(t *testing.T) {
	types := DefaultRegistry().SupportedTypes()
	assert.Contains(t, types, "application/pdf")
	assert.Contains(t, types, "text/plain")
}

func TestRegistry_ParsePlaintext(t *testing.T) {
	r := DefaultRegistry()

	text, err := r.Parse(context.Background(), []byte("Gamma  fund\r\n\r\n\r\n\r\nSeries A  "))
	require.NoError(t, err)
	assert.Equal(t, "Gamma fund\n\nSeries A", text)
}

func TestRegistry_ParsePDF(t *testing.T) {
	text, err := DefaultRegistry().Parse(context.Background(), buildPDF("Beta runway analysis"))
	require.NoError(t, err)
	assert.Contains(t, text, "Beta runway analysis")
}

func TestRegistry_Errors(t *testing.T) {
	r := DefaultRegistry()
	ctx := context.Background()

	_, err := r.Parse(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrParse)

	_, err = r.Parse(ctx, []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0x00})
	assert.ErrorIs(t, err, domain.ErrParse, "zip archives are not supported")

	_, err = r.ParseAs(ctx, []byte{0xff, 0xfe, 0xfd}, "text/plain")
	assert.ErrorIs(t, err, domain.ErrParse, "invalid UTF-8")
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", DetectContentType([]byte("%PDF-1.7 ...")))
	assert.Equal(t, "text/plain", DetectContentType([]byte("hello world")))
}

func TestMatchesMIMEType(t *testing.T) {
	tests := []struct {
		supported []string
		mime      string
		want      bool
	}{
		{[]string{"application/pdf"}, "application/pdf", true},
		{[]string{"application/pdf"}, "APPLICATION/PDF", true},
		{[]string{"text/*"}, "text/csv", true},
		{[]string{"text/*"}, "application/json", false},
		{[]string{"*/*"}, "anything/else", true},
		{[]string{"text/plain"}, "text/plain; charset=utf-8", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesMIMEType(tt.supported, tt.mime), "%v vs %s", tt.supported, tt.mime)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"  padded  ":               "padded",
		"a\r\nb\rc":                "a\nb\nc",
		"tabs\tand   spaces":       "tabs and spaces",
		"p1\n\n\n\n\np2":           "p1\n\np2",
		"line one   \n  line two ": "line one\nline two",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}
