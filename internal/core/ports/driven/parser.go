package driven

import "context"

// DocumentParser extracts plain text from a binary document.
// Unreadable input fails with domain.ErrParse.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte) (string, error)

	// SupportedTypes returns the MIME types this parser handles
	SupportedTypes() []string
}

// TextSplitter cuts extracted text into bounded, overlapping segments.
type TextSplitter interface {
	// Split returns the segments in document order. Empty text yields none.
	Split(text string) []string
}
