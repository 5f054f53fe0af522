// Package memory remembers past stories in a vector store so new stories can
// steer away from plots the reader has already heard.
package memory

import (
	"context"
	"time"
)

// StoryDocument is one remembered story with its embedding.
type StoryDocument struct {
	StoryID   string    `json:"story_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a remembered story returned by similarity search.
type Match struct {
	StoryID   string    `json:"story_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Score     float32   `json:"score"` // cosine similarity
	CreatedAt time.Time `json:"created_at"`
}

// VectorStore defines the storage and similarity search used by story memory.
type VectorStore interface {
	// Insert stores documents in a single operation
	Insert(ctx context.Context, docs []StoryDocument) error

	// Flush ensures all pending data is persisted
	Flush(ctx context.Context) error

	// Search returns the topK documents closest to queryVector
	Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error)

	// Query reports which story IDs are already stored
	Query(ctx context.Context, storyIDs []string) (map[string]bool, error)

	// Delete removes documents by story ID
	Delete(ctx context.Context, storyIDs []string) error

	// GetStats returns collection statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	Close() error
}

// IndexOptions configures batch indexing.
type IndexOptions struct {
	// BatchSize determines how many stories to embed at once
	BatchSize int

	// ForceReindex deletes and re-inserts stories that already exist
	ForceReindex bool

	// SkipExisting leaves already stored stories untouched
	SkipExisting bool
}

// DefaultIndexOptions returns sensible defaults for indexing.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:    10,
		ForceReindex: false,
		SkipExisting: true,
	}
}
