package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

// MilvusConfig holds configuration for the Milvus connection and collection.
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string
	Dimension      int // must match the embedder

	// HNSW index parameters
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultMilvusConfig returns the default local configuration.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "beanstalk_stories",
		Dimension:      1536,
		M:              16,
		EfConstruction: 256,
		EfSearch:       64,
	}
}

// MilvusStore implements VectorStore on Milvus.
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the collection exists.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{client: c, config: config}
	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return store, nil
}

func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return m.client.LoadCollection(ctx, m.config.CollectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:       "story_id",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.config.Dimension)},
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64, // Unix timestamp
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// Insert stores docs. An empty slice is a no-op.
func (m *MilvusStore) Insert(ctx context.Context, docs []StoryDocument) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	titles := make([]string, len(docs))
	texts := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	created := make([]int64, len(docs))

	for i, d := range docs {
		if len(d.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: story %s has %d dimensions, expected %d", ErrInvalidDimension, d.StoryID, len(d.Embedding), m.config.Dimension)
		}
		ids[i] = d.StoryID
		titles[i] = d.Title
		texts[i] = d.Text
		embeddings[i] = d.Embedding
		created[i] = d.CreatedAt.Unix()
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("story_id", ids),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
		entity.NewColumnInt64("created_at", created),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

func (m *MilvusStore) Flush(ctx context.Context) error {
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",
		[]string{"story_id", "title", "text", "created_at"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(results) == 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		match := Match{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			switch field.Name() {
			case "story_id":
				match.StoryID = field.(*entity.ColumnVarChar).Data()[i]
			case "title":
				match.Title = field.(*entity.ColumnVarChar).Data()[i]
			case "text":
				match.Text = field.(*entity.ColumnVarChar).Data()[i]
			case "created_at":
				match.CreatedAt = time.Unix(field.(*entity.ColumnInt64).Data()[i], 0)
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (m *MilvusStore) Query(ctx context.Context, storyIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(storyIDs))
	if len(storyIDs) == 0 {
		return existing, nil
	}
	for _, id := range storyIDs {
		existing[id] = false
	}

	results, err := m.client.Query(ctx, m.config.CollectionName, nil, idFilter(storyIDs), []string{"story_id"})
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	for _, column := range results {
		if column.Name() != "story_id" {
			continue
		}
		if varchar, ok := column.(*entity.ColumnVarChar); ok {
			for _, id := range varchar.Data() {
				existing[id] = true
			}
		}
	}
	return existing, nil
}

func (m *MilvusStore) Delete(ctx context.Context, storyIDs []string) error {
	if len(storyIDs) == 0 {
		return nil
	}
	if err := m.client.Delete(ctx, m.config.CollectionName, "", idFilter(storyIDs)); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (m *MilvusStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return map[string]interface{}{"row_count": stats["row_count"]}, nil
}

func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// idFilter builds a boolean expression matching any of ids.
func idFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("story_id in [%s]", strings.Join(quoted, ", "))
}
