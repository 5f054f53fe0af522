package memory

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestMilvusStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	address := os.Getenv("MILVUS_ADDRESS")
	if address == "" {
		t.Skip("MILVUS_ADDRESS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := DefaultMilvusConfig()
	cfg.Address = address
	cfg.Dimension = 4
	cfg.CollectionName = fmt.Sprintf("beanstalk_test_%d", time.Now().UnixNano())

	store, err := NewMilvusStore(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	defer store.client.DropCollection(context.Background(), cfg.CollectionName)

	docs := []StoryDocument{
		{StoryID: "1", Title: "Owl", Text: "owl", Embedding: []float32{1, 0, 0, 0}, CreatedAt: time.Now()},
		{StoryID: "2", Title: "Fox", Text: "fox", Embedding: []float32{0, 1, 0, 0}, CreatedAt: time.Now()},
	}
	if err := store.Insert(ctx, docs); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].StoryID != "1" {
		t.Errorf("expected story 1, got %+v", matches)
	}

	existing, err := store.Query(ctx, []string{"1", "3"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !existing["1"] || existing["3"] {
		t.Errorf("unexpected existence map %v", existing)
	}

	if err := store.Delete(ctx, []string{"1", "2"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestMilvusStore_InsertDimensionMismatch(t *testing.T) {
	store := &MilvusStore{config: MilvusConfig{Dimension: 4}}
	err := store.Insert(context.Background(), []StoryDocument{{StoryID: "1", Embedding: []float32{1}}})
	if err == nil {
		t.Error("expected dimension error")
	}
}
