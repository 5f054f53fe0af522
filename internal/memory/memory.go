package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/sirupsen/logrus"
)

const summaryPrefixChars = 500

// Config controls recall.
type Config struct {
	// TopK is the number of similar stories recalled
	TopK int

	// MinScore drops matches below this cosine similarity
	MinScore float32
}

// DefaultConfig returns the default recall settings.
func DefaultConfig() Config {
	return Config{TopK: 3, MinScore: 0.75}
}

// Memory remembers finished stories and recalls similar ones.
type Memory struct {
	embedder Embedder
	store    VectorStore
	config   Config
	logger   logrus.FieldLogger
}

// New creates a story memory.
func New(embedder Embedder, store VectorStore, config Config, logger logrus.FieldLogger) (*Memory, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", config.TopK)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Memory{
		embedder: embedder,
		store:    store,
		config:   config,
		logger:   logger.WithField("component", "memory"),
	}, nil
}

// Summarize builds the remembered text: title, moral and the opening of the body.
func Summarize(story engine.Story) string {
	body := story.Body
	if utf8.RuneCountInString(body) > summaryPrefixChars {
		body = string([]rune(body)[:summaryPrefixChars])
	}
	return fmt.Sprintf("Title: %s\nMoral: %s\n%s", story.Title, story.Moral, body)
}

// Remember stores story under the tracker record id, replacing any story
// previously remembered under the same id.
func (m *Memory) Remember(ctx context.Context, recordID int, story engine.Story) error {
	summary := StorySummary{
		StoryID:   strconv.Itoa(recordID),
		Title:     story.Title,
		Text:      Summarize(story),
		CreatedAt: time.Now(),
	}
	opts := DefaultIndexOptions()
	opts.ForceReindex = true
	if err := IndexStories(ctx, []StorySummary{summary}, m.embedder, m.store, opts); err != nil {
		return fmt.Errorf("failed to remember story %d: %w", recordID, err)
	}
	m.logger.Debugf("Remembered story %d (%s)", recordID, story.Title)
	return nil
}

// Backfill remembers stories keyed by tracker record id, skipping ids that
// are already remembered.
func (m *Memory) Backfill(ctx context.Context, stories map[int]engine.Story) error {
	summaries := make([]StorySummary, 0, len(stories))
	for id, story := range stories {
		summaries = append(summaries, StorySummary{
			StoryID:   strconv.Itoa(id),
			Title:     story.Title,
			Text:      Summarize(story),
			CreatedAt: time.Now(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].StoryID < summaries[j].StoryID })

	if err := IndexStories(ctx, summaries, m.embedder, m.store, DefaultIndexOptions()); err != nil {
		return fmt.Errorf("failed to backfill story memory: %w", err)
	}
	m.logger.Infof("Backfilled story memory with up to %d stories", len(summaries))
	return nil
}

// Recall returns titles of remembered stories similar to request, most
// similar first.
func (m *Memory) Recall(ctx context.Context, request string) ([]string, error) {
	matches, err := m.Similar(ctx, request)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	titles := make([]string, 0, len(matches))
	for _, match := range matches {
		t := strings.TrimSpace(match.Title)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		titles = append(titles, t)
	}
	return titles, nil
}

// Similar returns the matches above the minimum score.
func (m *Memory) Similar(ctx context.Context, query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	matches, err := m.store.Search(ctx, vectors[0], m.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar stories: %w", err)
	}

	kept := make([]Match, 0, len(matches))
	for _, match := range matches {
		if match.Score >= m.config.MinScore {
			kept = append(kept, match)
		}
	}
	return kept, nil
}

// Count returns the number of remembered stories.
func (m *Memory) Count(ctx context.Context) (int64, error) {
	stats, err := m.store.GetStats(ctx)
	if err != nil {
		return 0, err
	}
	switch v := stats["row_count"].(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid row count %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("row count missing from stats")
	}
}

// Close releases the vector store.
func (m *Memory) Close() error {
	return m.store.Close()
}
