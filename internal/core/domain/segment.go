package domain

import "time"

// Dimension is the fixed length of every embedding vector.
const Dimension = 384

// Metadata keys attached to stored segments.
const (
	// MetadataParentID links a segment to the deal its document belongs to
	MetadataParentID = "parent_id"

	// MetadataDocumentKey records the storage key the segment was cut from
	MetadataDocumentKey = "document_key"

	// MetadataChunkIndex is the zero-based position of the segment in its document
	MetadataChunkIndex = "chunk_index"
)

// Segment is a bounded slice of document text together with its embedding.
type Segment struct {
	// ID is assigned by the vector store on upsert
	ID string `json:"id,omitempty"`

	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewSegment creates a segment with a copy of the shared metadata.
func NewSegment(text string, embedding []float32, metadata map[string]string) *Segment {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Segment{
		Text:      text,
		Embedding: embedding,
		Metadata:  md,
		CreatedAt: time.Now(),
	}
}

// ParentID returns the parent record identifier, or "" when absent.
func (s *Segment) ParentID() string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[MetadataParentID]
}

// Match is a single nearest-neighbour result.
type Match struct {
	Segment *Segment `json:"segment"`

	// Score is cosine similarity, higher is closer
	Score float64 `json:"score"`
}
