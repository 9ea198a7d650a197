// Package parsers extracts plain text from uploaded documents.
package parsers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentParser = (*Registry)(nil)

// Parser is a DocumentParser with a selection priority.
type Parser interface {
	driven.DocumentParser

	// Priority returns the parser priority (higher = more specific).
	Priority() int
}

// Registry sniffs the content type of a buffer and dispatches it to the
// highest priority parser registered for that type. Extracted text is
// normalised before it is returned.
type Registry struct {
	mu      sync.RWMutex
	parsers []Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry creates a registry with the built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPDFParser())
	r.Register(NewPlaintextParser())
	return r
}

// Register registers a parser.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, p)
	sort.SliceStable(r.parsers, func(i, j int) bool {
		return r.parsers[i].Priority() > r.parsers[j].Priority()
	})
}

// Get returns the best parser for a MIME type, or nil.
func (r *Registry) Get(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parsers {
		if matchesMIMEType(p.SupportedTypes(), mimeType) {
			return p
		}
	}
	return nil
}

// SupportedTypes returns every MIME type a registered parser accepts.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, p := range r.parsers {
		for _, t := range p.SupportedTypes() {
			set[t] = struct{}{}
		}
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Parse detects the buffer's type and extracts its text.
func (r *Registry) Parse(ctx context.Context, data []byte) (string, error) {
	return r.ParseAs(ctx, data, DetectContentType(data))
}

// ParseAs extracts text using the parser registered for mimeType.
func (r *Registry) ParseAs(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty buffer", domain.ErrParse)
	}
	p := r.Get(mimeType)
	if p == nil {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrParse, mimeType)
	}
	text, err := p.Parse(ctx, data)
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}

// DetectContentType sniffs the MIME type of a document buffer.
func DetectContentType(data []byte) string {
	if hasPDFHeader(data) {
		return mimePDF
	}
	ct := http.DetectContentType(data)
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

// matchesMIMEType checks if any of the supported types match the given MIME type.
// Supports wildcard matching (e.g., "text/*" matches "text/plain").
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		if supported == mimeType || supported == "*/*" {
			return true
		}
		if strings.HasSuffix(supported, "/*") && strings.HasPrefix(mimeType, supported[:len(supported)-1]) {
			return true
		}
	}
	return false
}
