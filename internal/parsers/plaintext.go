package parsers

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// PlaintextParser accepts UTF-8 text documents as they are.
type PlaintextParser struct{}

// NewPlaintextParser creates a plaintext parser.
func NewPlaintextParser() *PlaintextParser {
	return &PlaintextParser{}
}

func (p *PlaintextParser) Parse(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", domain.ErrParse)
	}
	return string(data), nil
}

func (p *PlaintextParser) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown", "text/csv"}
}

func (p *PlaintextParser) Priority() int {
	return 10
}
