package chunking

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

func newDefaultChunker(t *testing.T) *Chunker {
	t.Helper()
	c, err := NewChunker(DefaultConfig())
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	return c
}

func expectedCount(length, max, overlap int) int {
	if length == 0 {
		return 0
	}
	if length <= max {
		return 1
	}
	step := max - overlap
	return (length - overlap + step - 1) / step
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	tests := []Config{
		{MaxChunkSize: 0, Overlap: 0},
		{MaxChunkSize: 10, Overlap: 10},
		{MaxChunkSize: 10, Overlap: -1},
	}
	for _, cfg := range tests {
		if _, err := NewChunker(cfg); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("config %+v: expected ErrInvalidInput, got %v", cfg, err)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	c := newDefaultChunker(t)
	if got := c.Split(""); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
}

func TestSplit_ShortText(t *testing.T) {
	c := newDefaultChunker(t)
	got := c.Split("short text")
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("expected [\"short text\"], got %q", got)
	}
}

func TestSplit_ExactlyMax(t *testing.T) {
	c := newDefaultChunker(t)
	text := strings.Repeat("a", 500)
	if got := c.Split(text); len(got) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(got))
	}
}

func TestSplit_SixHundredChars(t *testing.T) {
	c := newDefaultChunker(t)
	text := strings.Repeat("abcdefghij", 60)

	got := c.Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if len([]rune(got[0])) != 500 {
		t.Errorf("expected first chunk of 500, got %d", len([]rune(got[0])))
	}
	if got[1] != text[450:] {
		t.Error("second chunk should start 50 characters before the end of the first")
	}
}

func TestSplit_CountFormula(t *testing.T) {
	c := newDefaultChunker(t)
	for _, length := range []int{1, 499, 500, 501, 549, 550, 551, 950, 951, 1000, 4321, 10000} {
		t.Run(fmt.Sprintf("len=%d", length), func(t *testing.T) {
			got := c.Split(strings.Repeat("x", length))
			if want := expectedCount(length, 500, 50); len(got) != want {
				t.Errorf("expected %d chunks, got %d", want, len(got))
			}
		})
	}
}

func TestSplit_OverlapAndBounds(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 20})
	if err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	for i := 0; b.Len() < 1000; i++ {
		fmt.Fprintf(&b, "%d,", i)
	}
	text := b.String()

	chunks := c.Chunks(text)
	for i, ch := range chunks {
		if n := len([]rune(ch.Content)); n > 100 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if ch.Position != i {
			t.Errorf("chunk %d has position %d", i, ch.Position)
		}
		if i > 0 {
			prev := chunks[i-1]
			if prev.EndOffset-ch.StartOffset != 20 {
				t.Errorf("chunk %d overlaps previous by %d", i, prev.EndOffset-ch.StartOffset)
			}
		}
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len([]rune(text)) {
		t.Error("chunks must cover the whole text")
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	c := newDefaultChunker(t)
	text := strings.Repeat("é", 600)

	got := c.Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	for _, s := range got {
		if !strings.HasPrefix(s, "é") {
			t.Error("chunk split inside a rune")
		}
	}
}

func TestSplit_PreserveSentences(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 100, Overlap: 10, PreserveSentences: true})
	if err != nil {
		t.Fatal(err)
	}
	sentence := "The fund closed its seed round. "
	text := strings.Repeat(sentence, 10)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ". ") {
		t.Errorf("expected first chunk to end on a sentence, got %q", chunks[0])
	}
	for i, ch := range chunks {
		if len([]rune(ch)) > 100 {
			t.Errorf("chunk %d exceeds max size", i)
		}
	}
}

func TestSplit_PreserveParagraphs(t *testing.T) {
	c, err := NewChunker(Config{MaxChunkSize: 60, Overlap: 5, PreserveParagraphs: true})
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)

	chunks := c.Split(text)
	if chunks[0] != strings.Repeat("a", 40)+"\n\n" {
		t.Errorf("expected break after paragraph, got %q", chunks[0])
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := newDefaultChunker(t)
	text := strings.Repeat("deal memo ", 300)
	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatal("expected identical output")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}
