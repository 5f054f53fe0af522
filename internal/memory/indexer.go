package memory

import (
	"context"
	"fmt"
	"time"
)

// StorySummary is the text remembered for one story.
type StorySummary struct {
	StoryID   string
	Title     string
	Text      string
	CreatedAt time.Time
}

// IndexStories embeds summaries in batches and stores them.
func IndexStories(ctx context.Context, summaries []StorySummary, embedder Embedder, store VectorStore, opts IndexOptions) error {
	if len(summaries) == 0 {
		return nil
	}
	if embedder == nil {
		return fmt.Errorf("embedder cannot be nil")
	}
	if store == nil {
		return fmt.Errorf("vector store cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	if opts.ForceReindex {
		if err := store.Delete(ctx, storyIDs(summaries)); err != nil {
			return fmt.Errorf("failed to delete existing stories: %w", err)
		}
	}

	toIndex := summaries
	if opts.SkipExisting && !opts.ForceReindex {
		toIndex = filterNewStories(ctx, summaries, store)
	}

	for start := 0; start < len(toIndex); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(toIndex) {
			end = len(toIndex)
		}
		batch := toIndex[start:end]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.Text
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d stories", len(vectors), len(batch))
		}

		docs := make([]StoryDocument, len(batch))
		for i, s := range batch {
			docs[i] = StoryDocument{
				StoryID:   s.StoryID,
				Title:     s.Title,
				Text:      s.Text,
				Embedding: vectors[i],
				CreatedAt: s.CreatedAt,
			}
		}

		if err := store.Insert(ctx, docs); err != nil {
			return fmt.Errorf("failed to insert batch starting at %d: %w", start, err)
		}
		if err := store.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush batch starting at %d: %w", start, err)
		}
	}
	return nil
}

func storyIDs(summaries []StorySummary) []string {
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.StoryID
	}
	return ids
}

// filterNewStories drops summaries already in the store. If the lookup
// fails every summary is kept.
func filterNewStories(ctx context.Context, summaries []StorySummary, store VectorStore) []StorySummary {
	existing, err := store.Query(ctx, storyIDs(summaries))
	if err != nil {
		return summaries
	}

	fresh := make([]StorySummary, 0, len(summaries))
	for _, s := range summaries {
		if !existing[s.StoryID] {
			fresh = append(fresh, s)
		}
	}
	return fresh
}
