package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/randalmurphal/metta-indexer/internal/chunk"
)

// pointNamespace derives Qdrant point ids from chunk ids, which are not
// UUIDs themselves.
var pointNamespace = uuid.MustParse("6f1b2c4e-8d0a-4c5e-9b7d-3a2f1e0c9d84")

// PointID returns the Qdrant point id for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// QdrantStore handles vector storage in Qdrant.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant store. rawURL is either a bare host
// or a URL such as http://localhost:6334 naming the gRPC port.
func NewQdrantStore(rawURL string) (*QdrantStore, error) {
	cfg, err := qdrantConfig(rawURL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

func qdrantConfig(rawURL string) (*qdrant.Config, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return &qdrant.Config{Host: rawURL}, nil
	}

	cfg := &qdrant.Config{Host: u.Hostname(), UseTLS: u.Scheme == "https"}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// Close closes the Qdrant connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollection creates collection if it doesn't exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// DeleteCollection removes a collection.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	return s.client.DeleteCollection(ctx, name)
}

// UpsertChunks inserts or updates embedded chunks.
func (s *QdrantStore) UpsertChunks(ctx context.Context, collection string, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s has no vector", c.ID)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(c.ID)),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: qdrant.NewValueMap(chunkPayload(c)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})

	return err
}

func chunkPayload(c chunk.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":     c.ID,
		"source":       c.Source,
		"chunk":        c.Text,
		"origin_paths": toAnySlice(c.OriginPaths),
		"project":      c.Project,
		"repo":         c.Repo,
		"section":      toAnySlice(c.Sections),
		"file":         toAnySlice(c.Files),
		"version":      c.Version,
	}
}

func payloadToChunk(payload map[string]*qdrant.Value) chunk.Chunk {
	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getList := func(key string) []string {
		v, ok := payload[key]
		if !ok {
			return nil
		}
		values := v.GetListValue().GetValues()
		if len(values) == 0 {
			return nil
		}
		out := make([]string, len(values))
		for i, item := range values {
			out[i] = item.GetStringValue()
		}
		return out
	}

	return chunk.Chunk{
		ID:          getString("chunk_id"),
		Source:      getString("source"),
		Text:        getString("chunk"),
		OriginPaths: getList("origin_paths"),
		Project:     getString("project"),
		Repo:        getString("repo"),
		Sections:    getList("section"),
		Files:       getList("file"),
		Version:     getString("version"),
		IsEmbedded:  true,
	}
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// SearchResult is a chunk matched by a vector query.
type SearchResult struct {
	Chunk chunk.Chunk
	Score float32
}

// Search returns up to limit chunks nearest to vector. A non-empty repo
// restricts the results to that repo.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, repo string) ([]SearchResult, error) {
	var filter *qdrant.Filter
	if repo != "" {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("repo", repo)}}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{Chunk: payloadToChunk(r.Payload), Score: r.Score}
	}
	return out, nil
}

// CollectionInfo contains collection metadata.
type CollectionInfo struct {
	PointsCount int64
	VectorSize  int
	Status      string
}

// CollectionInfo gets collection metadata.
func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}

	vectorSize := 0
	if params := info.Config.GetParams(); params != nil {
		if vecConfig := params.GetVectorsConfig(); vecConfig != nil {
			if vecParams := vecConfig.GetParams(); vecParams != nil {
				vectorSize = int(vecParams.GetSize())
			}
		}
	}

	pointsCount := int64(0)
	if info.PointsCount != nil {
		pointsCount = int64(*info.PointsCount)
	}

	return &CollectionInfo{
		PointsCount: pointsCount,
		VectorSize:  vectorSize,
		Status:      info.Status.String(),
	}, nil
}
