package mocks

import (
	"context"
	"fmt"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// MockDocumentParser treats the input bytes as the extracted text
type MockDocumentParser struct {
	ParseFn func(data []byte) (string, error)
}

// NewMockDocumentParser creates a new MockDocumentParser
func NewMockDocumentParser() *MockDocumentParser {
	return &MockDocumentParser{}
}

func (m *MockDocumentParser) Parse(ctx context.Context, data []byte) (string, error) {
	if m.ParseFn != nil {
		return m.ParseFn(data)
	}
	if data == nil {
		return "", fmt.Errorf("%w: nil buffer", domain.ErrParse)
	}
	return string(data), nil
}

func (m *MockDocumentParser) SupportedTypes() []string {
	return []string{"*/*"}
}
