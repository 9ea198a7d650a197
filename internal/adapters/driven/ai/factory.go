// Package ai selects and builds the embedding model used by ingestion and retrieval.
package ai

import (
	"fmt"

	"github.com/innovest/innovest-rag/internal/adapters/driven/embedding"
	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Provider names accepted in configuration.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
)

// EmbeddingConfig selects an embedding backend.
type EmbeddingConfig struct {
	Provider string
	OpenAI   OpenAIConfig
}

// NewEmbeddingService builds the configured embedding model. An empty provider
// selects the in-process hashing model. Every backend produces domain.Dimension
// sized vectors so stored segments stay comparable.
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "", ProviderHashing:
		return embedding.NewHashingEmbedder(domain.Dimension), nil
	case ProviderOpenAI:
		openAI := cfg.OpenAI
		openAI.Dimensions = domain.Dimension
		return NewOpenAIEmbedding(openAI)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}
