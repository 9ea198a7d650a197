package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore on the pgvector embeddings table.
// Queries go through the HNSW cosine index; ties are ordered by seq.
type VectorStore struct {
	db        *DB
	dimension int

	// efSearch widens the HNSW candidate list for a query when > 0
	efSearch int
}

// NewVectorStore creates a new VectorStore. The schema must already exist.
func NewVectorStore(db *DB, efSearch int) *VectorStore {
	return &VectorStore{db: db, dimension: domain.Dimension, efSearch: efSearch}
}

// Upsert inserts one row. Each row is its own statement, so it commits on its own.
func (s *VectorStore) Upsert(ctx context.Context, segment *domain.Segment) (string, error) {
	if segment == nil {
		return "", fmt.Errorf("%w: nil segment", domain.ErrStore)
	}
	if len(segment.Embedding) != s.dimension {
		return "", fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrStore, len(segment.Embedding), s.dimension)
	}

	metadata, err := json.Marshal(segment.Metadata)
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %v", domain.ErrStore, err)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO embeddings (embedding_id, text, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		id,
		segment.Text,
		metadata,
		pgvector.NewVector(segment.Embedding),
		segment.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert embedding: %v", domain.ErrStore, err)
	}

	segment.ID = id
	return id, nil
}

func (s *VectorStore) UpsertBatch(ctx context.Context, segments []*domain.Segment) ([]string, error) {
	ids := make([]string, 0, len(segments))
	for _, seg := range segments {
		id, err := s.Upsert(ctx, seg)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// searchQuery takes the k nearest rows through the HNSW index, then orders
// them by distance and insertion order. The index only serves an ORDER BY on
// the distance alone, so the seq tie-break has to sit outside it.
const searchQuery = `
	SELECT embedding_id, text, metadata, created_at, 1 - distance AS score
	FROM (
		SELECT embedding_id, text, metadata, created_at, seq, embedding <=> $1 AS distance
		FROM embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	) nearest
	ORDER BY distance, seq
`

// Search returns the k nearest rows by cosine distance.
func (s *VectorStore) Search(ctx context.Context, vector []float32, k int) ([]*domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", domain.ErrStore, len(vector), s.dimension)
	}
	if k <= 0 {
		return []*domain.Match{}, nil
	}

	var matches []*domain.Match
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if s.efSearch > 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", s.efSearch)); err != nil {
				return err
			}
		}

		rows, err := tx.QueryContext(ctx, searchQuery, pgvector.NewVector(vector), k)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			seg := &domain.Segment{}
			var metadata []byte
			var score float64
			if err := rows.Scan(&seg.ID, &seg.Text, &metadata, &seg.CreatedAt, &score); err != nil {
				return err
			}
			if len(metadata) > 0 {
				if err := json.Unmarshal(metadata, &seg.Metadata); err != nil {
					return err
				}
			}
			matches = append(matches, &domain.Match{Segment: seg, Score: score})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search embeddings: %v", domain.ErrStore, err)
	}

	if matches == nil {
		matches = []*domain.Match{}
	}
	return matches, nil
}

func (s *VectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count embeddings: %v", domain.ErrStore, err)
	}
	return n, nil
}

func (s *VectorStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by whoever called Connect.
func (s *VectorStore) Close() error {
	return nil
}
