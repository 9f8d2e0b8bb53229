package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore backs the Store interface with a remote Qdrant instance
// over gRPC. It trades the single-process model for a shared index;
// everything else about the engine stays local.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// QdrantConfig holds connection settings for a Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dim        int
}

// NewQdrantStore connects to Qdrant and ensures the collection exists
// with a cosine-distance vector index of the given width.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "memories"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.Dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}

	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// AddVectors upserts entries as Qdrant points. The source document
// rides in the payload next to the metadata.
func (s *QdrantStore) AddVectors(ctx context.Context, entries []Entry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		payload := map[string]interface{}{"document": e.Document}
		for k, v := range e.Metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	if len(points) == 0 {
		return nil
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search queries the collection. Qdrant scores cosine collections by
// similarity, converted back to distance here to match the interface.
func (s *QdrantStore) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{
			ID:       h.GetId().GetUuid(),
			Distance: 1 - float64(h.GetScore()),
			Metadata: make(map[string]interface{}),
		}
		for k, v := range h.GetPayload() {
			if k == "document" {
				r.Document = v.GetStringValue()
				continue
			}
			r.Metadata[k] = valueToInterface(v)
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteByID removes the points with the given ids.
func (s *QdrantStore) DeleteByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// DeleteAll drops the collection. Reopening the store recreates it.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// valueToInterface unwraps the qdrant payload value kinds the engine
// actually stores.
func valueToInterface(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}
