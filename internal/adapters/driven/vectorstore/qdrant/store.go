// Package qdrant stores segments in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/innovest/innovest-rag/internal/core/domain"
	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*Store)(nil)

// Payload keys. Segment metadata is nested under payloadMetadata so its keys
// can never collide with the others.
const (
	payloadText      = "text"
	payloadSeq       = "_seq"
	payloadCreatedAt = "_created_at"
	payloadMetadata  = "metadata"
)

// Config holds connection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
}

// Store implements VectorStore on a cosine-distance Qdrant collection.
// Each point carries an insertion sequence so equal scores can be ordered.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	health      pb.QdrantClient
	collection  string
	dimension   int
	lastSeq     atomic.Int64
}

// New connects to Qdrant and creates the collection if it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = domain.Dimension
	}
	if cfg.Collection == "" {
		cfg.Collection = "embeddings"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		health:      pb.NewQdrantClient(conn),
		collection:  cfg.Collection,
		dimension:   cfg.Dimension,
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("%w: get collection %s: %v", domain.ErrStore, s.collection, err)
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(s.dimension),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", domain.ErrStore, s.collection, err)
	}
	return nil
}

// nextSeq returns a strictly increasing, roughly time-ordered sequence number.
func (s *Store) nextSeq() int64 {
	for {
		prev := s.lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if s.lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (s *Store) Upsert(ctx context.Context, segment *domain.Segment) (string, error) {
	if segment == nil {
		return "", fmt.Errorf("%w: nil segment", domain.ErrStore)
	}
	if len(segment.Embedding) != s.dimension {
		return "", fmt.Errorf("%w: embedding has %d dimensions, want %d", domain.ErrStore, len(segment.Embedding), s.dimension)
	}

	id := uuid.NewString()
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: segment.Embedding}}},
			Payload: toPayload(segment, s.nextSeq()),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: upsert point: %v", domain.ErrStore, err)
	}
	segment.ID = id
	return id, nil
}

func (s *Store) UpsertBatch(ctx context.Context, segments []*domain.Segment) ([]string, error) {
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

func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]*domain.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", domain.ErrStore, len(vector), s.dimension)
	}
	if k <= 0 {
		return []*domain.Match{}, nil
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", domain.ErrStore, err)
	}

	hits := make([]hit, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		seg, seq := fromPayload(pt.GetId().GetUuid(), pt.GetPayload())
		hits[i] = hit{match: &domain.Match{Segment: seg, Score: float64(pt.GetScore())}, seq: seq}
	}
	return rank(hits), nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrStore, err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("%w: health check: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

type hit struct {
	match *domain.Match
	seq   int64
}

// rank orders hits by score, then by insertion sequence.
func rank(hits []hit) []*domain.Match {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].match.Score != hits[j].match.Score {
			return hits[i].match.Score > hits[j].match.Score
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]*domain.Match, len(hits))
	for i, h := range hits {
		out[i] = h.match
	}
	return out
}

func toPayload(seg *domain.Segment, seq int64) map[string]*pb.Value {
	createdAt := seg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	metadata := make(map[string]*pb.Value, len(seg.Metadata))
	for k, v := range seg.Metadata {
		metadata[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return map[string]*pb.Value{
		payloadText:      {Kind: &pb.Value_StringValue{StringValue: seg.Text}},
		payloadSeq:       {Kind: &pb.Value_IntegerValue{IntegerValue: seq}},
		payloadCreatedAt: {Kind: &pb.Value_StringValue{StringValue: createdAt.UTC().Format(time.RFC3339Nano)}},
		payloadMetadata:  {Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: metadata}}},
	}
}

func fromPayload(id string, payload map[string]*pb.Value) (*domain.Segment, int64) {
	seg := &domain.Segment{ID: id, Metadata: make(map[string]string)}
	seg.Text = payload[payloadText].GetStringValue()
	seq := payload[payloadSeq].GetIntegerValue()
	seg.CreatedAt, _ = time.Parse(time.RFC3339Nano, payload[payloadCreatedAt].GetStringValue())
	for k, v := range payload[payloadMetadata].GetStructValue().GetFields() {
		seg.Metadata[k] = v.GetStringValue()
	}
	return seg, seq
}
