package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"paperchat/internal/contextutil"
)

const (
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
	payloadOffset     = "offset"
	payloadText       = "text"

	upsertBatchSize = 256
)

// QdrantIndex implements Index on a single Qdrant collection, using the
// document_id payload field as the namespace.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex creates a new Qdrant-backed index.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantIndex(urlStr, collection string) (*QdrantIndex, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
	}, nil
}

// grpcAddress derives the gRPC host and port from Qdrant's HTTP URL.
func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// Replace upserts entries under deterministic point IDs and then removes any
// stale points of the namespace beyond the new chunk count. If any write
// fails the namespace is cleared, so it never holds a mix of old and new chunks.
func (s *QdrantIndex) Replace(ctx context.Context, namespace string, entries []Entry) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(entries) == 0 {
		return s.DeleteNamespace(ctx, namespace)
	}

	if err := s.upsert(ctx, namespace, entries); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "document_id", namespace, "count", len(entries), "error", err)
		s.clearAfterFailure(ctx, namespace)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	stale := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadDocumentID, namespace),
			qdrant.NewRange(payloadChunkIndex, &qdrant.Range{Gte: qdrant.PtrOf(float64(len(entries)))}),
		},
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(stale),
	}); err != nil {
		logger.ErrorContext(ctx, "failed to delete stale points", "collection", s.collection, "document_id", namespace, "error", err)
		s.clearAfterFailure(ctx, namespace)
		return fmt.Errorf("failed to delete stale points: %w", err)
	}

	logger.InfoContext(ctx, "replaced points", "collection", s.collection, "document_id", namespace, "count", len(entries))
	return nil
}

func (s *QdrantIndex) upsert(ctx context.Context, namespace string, entries []Entry) error {
	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, e := range entries[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(PointID(namespace, e.Index)),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadDocumentID: namespace,
					payloadChunkIndex: e.Index,
					payloadOffset:     e.Offset,
					payloadText:       e.Text,
				}),
			})
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return err
		}
	}
	return nil
}

// clearAfterFailure runs on a fresh context since ctx may be the reason the write failed.
func (s *QdrantIndex) clearAfterFailure(ctx context.Context, namespace string) {
	if err := s.DeleteNamespace(context.WithoutCancel(ctx), namespace); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to clear namespace after failed replace", "document_id", namespace, "error", err)
	}
}

// Search performs a similarity search restricted to one namespace.
func (s *QdrantIndex) Search(ctx context.Context, namespace string, query []float32, k int) ([]Match, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	limit := uint64(k)
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         namespaceFilter(namespace),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "document_id", namespace, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]Match, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		entry := entryFromPayload(convertPayloadToMap(point.GetPayload()))
		entry.Vector = point.GetVectors().GetVector().GetData()
		matches = append(matches, Match{Entry: entry, Score: point.GetScore()})
	}

	matches = onlyNamespace(namespace, matches)
	logger.DebugContext(ctx, "search completed", "collection", s.collection, "document_id", namespace, "k", k, "results", len(matches))
	return matches, nil
}

// SearchDiverse runs maximal marginal relevance over the FetchK nearest points.
func (s *QdrantIndex) SearchDiverse(ctx context.Context, namespace string, query []float32, opts DiverseOptions) ([]Match, error) {
	candidates, err := s.Search(ctx, namespace, query, max(opts.FetchK, opts.K))
	if err != nil {
		return nil, err
	}
	return SelectDiverse(query, candidates, opts.K, opts.Lambda), nil
}

// DeleteNamespace removes every point of the namespace.
func (s *QdrantIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	logger := contextutil.LoggerFromContext(ctx)

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(namespaceFilter(namespace)),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", s.collection, "document_id", namespace, "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted namespace", "collection", s.collection, "document_id", namespace)
	return nil
}

// Count returns the exact number of points in the namespace.
func (s *QdrantIndex) Count(ctx context.Context, namespace string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         namespaceFilter(namespace),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Ping checks that the collection is reachable.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %q does not exist", s.collection)
	}
	return nil
}

// CollectionExists checks if the collection exists.
func (s *QdrantIndex) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection ensures the collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it along with a keyword index on document_id.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      payloadDocumentID,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create document_id index: %w", err)
		}

		logger.InfoContext(ctx, "collection created", "collection", s.collection, "vector_size", vectorSize)
		return nil
	}

	// Collection exists, validate vector size
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.Size == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}

	if int(params.Size) != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, params.Size)
	}

	logger.InfoContext(ctx, "collection validated", "collection", s.collection, "vector_size", vectorSize)
	return nil
}

func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocumentID, namespace)},
	}
}

// entryFromPayload maps a point's payload back onto an Entry. Vector is left empty.
func entryFromPayload(meta map[string]any) Entry {
	var e Entry
	e.DocumentID, _ = meta[payloadDocumentID].(string)
	e.Text, _ = meta[payloadText].(string)
	e.Index = payloadInt(meta[payloadChunkIndex])
	e.Offset = payloadInt(meta[payloadOffset])
	return e
}

func payloadInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
