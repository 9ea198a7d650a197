// Package embedding provides the in-process embedding model.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingService = (*HashingEmbedder)(nil)

const (
	// ModelName identifies vectors produced by the hashing embedder.
	ModelName = "feature-hash-384"

	wordWeight    = 1.0
	trigramWeight = 0.5
)

// HashingEmbedder maps text to a dense vector by hashing word unigrams and
// character trigrams into signed buckets, then L2-normalising. The mapping is
// pure: it needs no model files, no network, and identical input always
// yields an identical vector.
type HashingEmbedder struct {
	dimensions int
	closed     atomic.Bool
}

// NewHashingEmbedder creates an embedder producing vectors of the given size.
// A non-positive size selects domain.Dimension.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = domain.Dimension
	}
	return &HashingEmbedder{dimensions: dimensions}
}

func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("%w: model is closed", domain.ErrEmbedding)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashingEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashingEmbedder) Model() string {
	return ModelName
}

func (e *HashingEmbedder) HealthCheck(ctx context.Context) error {
	if e.closed.Load() {
		return fmt.Errorf("%w: model is closed", domain.ErrEmbedding)
	}
	return nil
}

// Close unloads the model. Later calls fail with domain.ErrEmbedding.
func (e *HashingEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dimensions)

	words := tokenize(text)
	for _, w := range words {
		e.add(acc, "w:"+w, wordWeight)

		padded := []rune("#" + w + "#")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(acc, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}

	vec := make([]float32, e.dimensions)
	if norm == 0 {
		// text without tokens maps to a fixed unit vector
		u := float32(1 / math.Sqrt(float64(e.dimensions)))
		for i := range vec {
			vec[i] = u
		}
		return vec
	}

	inv := 1 / math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v * inv)
	}
	return vec
}

func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
