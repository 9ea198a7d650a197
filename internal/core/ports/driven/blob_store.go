package driven

import "context"

// BlobStore is the raw file storage collaborator that holds uploaded documents.
type BlobStore interface {
	// FetchBytes returns the full content stored under key.
	// Missing keys return domain.ErrNotFound.
	FetchBytes(ctx context.Context, key string) ([]byte, error)
}
