package main

import (
	"strings"
	"testing"

	"github.com/innovest/innovest-rag/internal/chunking"
	"github.com/innovest/innovest-rag/internal/config"
)

func TestChunkerConfig(t *testing.T) {
	got := chunkerConfig(config.ChunkingConfig{Size: 60, Overlap: 5, PreserveParagraphs: true})
	want := chunking.Config{MaxChunkSize: 60, Overlap: 5, PreserveParagraphs: true}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	chunker, err := chunking.NewChunker(got)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	if chunks := chunker.Split(text); chunks[0] != strings.Repeat("a", 40)+"\n\n" {
		t.Errorf("expected a paragraph break, got %q", chunks[0])
	}
}

func TestChunkerConfig_FixedWindowsByDefault(t *testing.T) {
	got := chunkerConfig(config.ChunkingConfig{Size: 500, Overlap: 50})
	if got != chunking.DefaultConfig() {
		t.Errorf("expected the fixed-window defaults, got %+v", got)
	}
}
