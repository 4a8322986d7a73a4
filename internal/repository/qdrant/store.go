// Package qdrant implements textbook vector storage on a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
)

// Config holds Qdrant connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// Store wraps the Qdrant client for the textbook chunk collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// NewStore creates a Qdrant store over gRPC.
func NewStore(cfg *Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}, nil
}

// HealthCheck performs a single health check against Qdrant.
func (s *Store) HealthCheck(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.GetTitle() == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// WaitForReady retries the health check with exponential backoff until Qdrant
// responds or the elapsed-time limit is reached.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = timeout

	operation := func() error {
		return s.HealthCheck(ctx)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("qdrant not ready: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close() //nolint:wrapcheck // closing delegate
	}
	return nil
}

// EnsureCollection creates the chunk collection and its payload indexes if
// they do not exist yet. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Chapter filtering relies on this index.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "chapter",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create chapter index: %w", err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "section",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create section index: %w", err)
	}

	return nil
}

// Search performs vector similarity search over textbook chunks.
// chapter=0 searches the whole book; chapter>0 restricts hits to that chapter.
func (s *Store) Search(ctx context.Context, vector []float32, topK, chapter int) ([]domain.SearchHit, error) {
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			domain.ErrVectorDimMismatch, len(vector), s.dimensions)
	}

	var filter *qdrant.Filter
	if chapter > 0 {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("chapter", int64(chapter)),
			},
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, result := range results {
		payload := result.GetPayload()
		hits = append(hits, domain.SearchHit{
			ID:    result.GetId().GetUuid(),
			Score: float64(result.GetScore()),
			Payload: domain.Payload{
				Chapter: int(payload["chapter"].GetIntegerValue()),
				Section: payload["section"].GetStringValue(),
				Content: payload["content"].GetStringValue(),
			},
		})
	}

	return hits, nil
}

// Chunk is a textbook fragment prepared for upsert.
type Chunk struct {
	ID        string
	Embedding []float32
	Chapter   int
	Section   string
	Content   string
}

// Upsert stores chunks in batches of 100 with backoff retry per batch.
func (s *Store) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.dimensions {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrVectorDimMismatch, i, len(chunk.Embedding), s.dimensions)
		}
	}

	const batchSize = 100
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chapter": chunk.Chapter,
					"section": chunk.Section,
					"content": chunk.Content,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err //nolint:wrapcheck // wrapped by the caller with batch bounds
	}

	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}
	return info.GetPointsCount(), nil
}
