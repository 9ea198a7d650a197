// Package chunking splits extracted document text into overlapping segments.
package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TextSplitter = (*Chunker)(nil)

// Config configures the chunker behavior. Sizes are counted in runes.
type Config struct {
	// MaxChunkSize is the maximum characters per chunk
	MaxChunkSize int

	// Overlap is the character overlap between consecutive chunks
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultConfig returns the ingestion defaults: 500 characters with 50 overlap,
// fixed windows.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 500,
		Overlap:      50,
	}
}

// Validate checks the window sizes.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive", domain.ErrInvalidInput)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d)", domain.ErrInvalidInput, c.MaxChunkSize)
	}
	return nil
}

func (c Config) preserving() bool {
	return c.PreserveSentences || c.PreserveParagraphs
}

// Chunk is one window of the input with its rune offsets.
type Chunk struct {
	Content     string
	Position    int
	StartOffset int
	EndOffset   int
}

// Chunker cuts text into windows of at most MaxChunkSize runes where each
// window repeats the last Overlap runes of the previous one.
type Chunker struct {
	config Config
}

// NewChunker creates a new chunker with the given config.
func NewChunker(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Split returns the chunk texts in document order.
func (c *Chunker) Split(text string) []string {
	chunks := c.Chunks(text)
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Content
	}
	return out
}

// Chunks splits text into positioned chunks.
//
// In fixed mode the number of chunks for a text of L > MaxChunkSize runes is
// ceil((L-Overlap)/(MaxChunkSize-Overlap)). Boundary-preserving mode may
// produce a few more.
func (c *Chunker) Chunks(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.config.MaxChunkSize {
		return []Chunk{{Content: text, Position: 0, StartOffset: 0, EndOffset: len(runes)}}
	}

	var chunks []Chunk
	start := 0

	for start < len(runes) {
		end := start + c.config.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) && c.config.preserving() {
			if bp := c.findBreakPoint(runes, start, end); bp > start+c.config.Overlap {
				end = bp
			}
		}

		chunks = append(chunks, Chunk{
			Content:     string(runes[start:end]),
			Position:    len(chunks),
			StartOffset: start,
			EndOffset:   end,
		})

		if end >= len(runes) {
			break
		}

		next := end - c.config.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// findBreakPoint returns a rune index in (start, maxEnd] that ends on a
// paragraph, sentence or word boundary, or maxEnd when none is found.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd int) int {
	searchStart := maxEnd - 100
	if searchStart < start {
		searchStart = start
	}

	window := string(runes[searchStart:maxEnd])
	toRunes := func(byteIdx int) int {
		return searchStart + utf8.RuneCountInString(window[:byteIdx])
	}

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return toRunes(idx + 2)
		}
	}

	if c.config.PreserveSentences {
		best := -1
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if idx := strings.LastIndex(window, ender); idx != -1 && idx+len(ender) > best {
				best = idx + len(ender)
			}
		}
		if best > 0 {
			return toRunes(best)
		}
	}

	if idx := strings.LastIndex(window, " "); idx != -1 {
		return toRunes(idx + 1)
	}

	return maxEnd
}
