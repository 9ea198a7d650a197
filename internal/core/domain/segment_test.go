package domain

import "testing"

func TestNewSegment_CopiesMetadata(t *testing.T) {
	shared := map[string]string{MetadataParentID: "deal-1"}

	s1 := NewSegment("alpha", nil, shared)
	s2 := NewSegment("beta", nil, shared)
	s1.Metadata[MetadataChunkIndex] = "0"

	if _, ok := s2.Metadata[MetadataChunkIndex]; ok {
		t.Error("segments must not share a metadata map")
	}
	if _, ok := shared[MetadataChunkIndex]; ok {
		t.Error("shared metadata must not be mutated")
	}
	if s1.ParentID() != "deal-1" || s2.ParentID() != "deal-1" {
		t.Error("expected parent id on every segment")
	}
	if s1.CreatedAt.IsZero() {
		t.Error("expected CreatedAt")
	}
}

func TestSegment_ParentIDMissing(t *testing.T) {
	s := &Segment{Text: "x"}
	if s.ParentID() != "" {
		t.Error("expected empty parent id")
	}
}
