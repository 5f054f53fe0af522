package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Yates-Labs/beanstalk/internal/engine"
)

// keywordEmbedder maps texts onto a small fixed vocabulary.
type keywordEmbedder struct {
	vocab []string
	calls int
	err   error
}

func (e *keywordEmbedder) Dimension() int { return len(e.vocab) }

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.vocab))
		lower := strings.ToLower(text)
		for j, word := range e.vocab {
			vec[j] = float32(strings.Count(lower, word))
		}
		out[i] = vec
	}
	return out, nil
}

type fakeStore struct {
	mu      sync.Mutex
	docs    []StoryDocument
	flushes int
}

func (s *fakeStore) Insert(ctx context.Context, docs []StoryDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

func (s *fakeStore) Flush(ctx context.Context) error {
	s.flushes++
	return nil
}

func (s *fakeStore) Search(ctx context.Context, query []float32, topK int) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]Match, 0, len(s.docs))
	for _, d := range s.docs {
		matches = append(matches, Match{StoryID: d.StoryID, Title: d.Title, Text: d.Text, Score: cosine(query, d.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *fakeStore) Query(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		for _, d := range s.docs {
			if d.StoryID == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool)
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.docs[:0]
	for _, d := range s.docs {
		if !drop[d.StoryID] {
			kept = append(kept, d)
		}
	}
	s.docs = kept
	return nil
}

func (s *fakeStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"row_count": len(s.docs)}, nil
}

func (s *fakeStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func newMemory(t *testing.T) (*Memory, *fakeStore, *keywordEmbedder) {
	t.Helper()
	emb := &keywordEmbedder{vocab: []string{"dragon", "mouse", "library", "ocean"}}
	store := &fakeStore{}
	m, err := New(emb, store, Config{TopK: 3, MinScore: 0.5}, nil)
	if err != nil {
		t.Fatalf("new memory: %v", err)
	}
	return m, store, emb
}

func TestMemory_RememberAndRecall(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMemory(t)

	stories := []engine.Story{
		{Title: "The Library Mouse", Body: "A mouse lived in a library.", Moral: "Read often."},
		{Title: "Dragon by the Ocean", Body: "A dragon swam in the ocean.", Moral: "Be brave."},
	}
	for i, s := range stories {
		if err := m.Remember(ctx, i+1, s); err != nil {
			t.Fatalf("remember: %v", err)
		}
	}
	if len(store.docs) != 2 || store.docs[0].StoryID != "1" || store.flushes != 2 {
		t.Fatalf("unexpected store state: %d docs, %d flushes", len(store.docs), store.flushes)
	}

	titles, err := m.Recall(ctx, "a mouse in a library")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(titles) != 1 || titles[0] != "The Library Mouse" {
		t.Errorf("expected only the library story, got %v", titles)
	}
}

func TestMemory_RememberReplacesReusedID(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMemory(t)

	if err := m.Remember(ctx, 1, engine.Story{Title: "The Library Mouse", Body: "A mouse lived in a library."}); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := m.Remember(ctx, 1, engine.Story{Title: "Dragon by the Ocean", Body: "A dragon swam in the ocean."}); err != nil {
		t.Fatalf("remember: %v", err)
	}

	if len(store.docs) != 1 || store.docs[0].Title != "Dragon by the Ocean" {
		t.Fatalf("expected the newer story only, got %+v", store.docs)
	}
	count, err := m.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("count = %d, err %v; want 1", count, err)
	}
}

func TestMemory_BackfillSkipsRemembered(t *testing.T) {
	ctx := context.Background()
	m, store, emb := newMemory(t)

	if err := m.Remember(ctx, 1, engine.Story{Title: "The Library Mouse", Body: "A mouse lived in a library."}); err != nil {
		t.Fatalf("remember: %v", err)
	}
	calls := emb.calls

	stories := map[int]engine.Story{
		1: {Title: "Renamed Mouse", Body: "A mouse lived in a library."},
		2: {Title: "Dragon by the Ocean", Body: "A dragon swam in the ocean."},
	}
	if err := m.Backfill(ctx, stories); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	if len(store.docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(store.docs))
	}
	if store.docs[0].Title != "The Library Mouse" || store.docs[1].StoryID != "2" {
		t.Errorf("existing story should be left alone, got %+v", store.docs)
	}
	if emb.calls != calls+1 {
		t.Errorf("expected one embedding batch for the new story, got %d", emb.calls-calls)
	}
}

func TestMemory_Count(t *testing.T) {
	tests := []struct {
		name    string
		stats   map[string]interface{}
		want    int64
		wantErr bool
	}{
		{"milvus string", map[string]interface{}{"row_count": "42"}, 42, false},
		{"int", map[string]interface{}{"row_count": 7}, 7, false},
		{"garbage", map[string]interface{}{"row_count": "many"}, 0, true},
		{"missing", map[string]interface{}{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(&keywordEmbedder{vocab: []string{"mouse"}}, &statsStore{stats: tt.stats}, DefaultConfig(), nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := m.Count(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}
}

type statsStore struct {
	fakeStore
	stats map[string]interface{}
}

func (s *statsStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return s.stats, nil
}

func TestMemory_RecallEmptyQuery(t *testing.T) {
	m, _, emb := newMemory(t)
	if _, err := m.Recall(context.Background(), "  "); err == nil {
		t.Error("expected error for empty query")
	}
	if emb.calls != 0 {
		t.Error("empty query should not be embedded")
	}
}

func TestMemory_EmbedderError(t *testing.T) {
	m, _, emb := newMemory(t)
	emb.err = errors.New("quota")

	if err := m.Remember(context.Background(), 1, engine.Story{Title: "T", Body: "B", Moral: "M"}); err == nil {
		t.Error("expected remember to fail")
	}
	if _, err := m.Recall(context.Background(), "dragon"); err == nil {
		t.Error("expected recall to fail")
	}
}

func TestNew_Validation(t *testing.T) {
	emb := &keywordEmbedder{}
	if _, err := New(nil, &fakeStore{}, DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := New(emb, nil, DefaultConfig(), nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(emb, &fakeStore{}, Config{TopK: 0}, nil); err == nil {
		t.Error("expected error for zero topK")
	}
}

func TestSummarize_TruncatesBody(t *testing.T) {
	story := engine.Story{Title: "Long", Body: strings.Repeat("é", 800), Moral: "Short"}
	got := Summarize(story)

	if !strings.HasPrefix(got, "Title: Long\nMoral: Short\n") {
		t.Errorf("unexpected header %q", got[:30])
	}
	if n := strings.Count(got, "é"); n != summaryPrefixChars {
		t.Errorf("expected %d body characters, got %d", summaryPrefixChars, n)
	}
}

func TestIndexStories(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{vocab: []string{"owl"}}
	store := &fakeStore{}

	summaries := []StorySummary{
		{StoryID: "1", Title: "A", Text: "owl"},
		{StoryID: "2", Title: "B", Text: "owl owl"},
		{StoryID: "3", Title: "C", Text: "no birds"},
	}

	if err := IndexStories(ctx, summaries, emb, store, IndexOptions{BatchSize: 2, SkipExisting: true}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(store.docs) != 3 || emb.calls != 2 || store.flushes != 2 {
		t.Fatalf("expected 3 docs in 2 batches, got %d docs, %d embeds, %d flushes", len(store.docs), emb.calls, store.flushes)
	}

	// re-indexing with SkipExisting is a no-op
	if err := IndexStories(ctx, summaries, emb, store, IndexOptions{BatchSize: 2, SkipExisting: true}); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if len(store.docs) != 3 {
		t.Errorf("skip existing should not duplicate, got %d docs", len(store.docs))
	}

	// forced re-indexing replaces documents
	if err := IndexStories(ctx, summaries[:1], emb, store, IndexOptions{BatchSize: 2, ForceReindex: true}); err != nil {
		t.Fatalf("force reindex: %v", err)
	}
	if len(store.docs) != 3 {
		t.Errorf("force reindex should replace, got %d docs", len(store.docs))
	}
}

func TestIdFilter(t *testing.T) {
	if got := idFilter([]string{"1", "2"}); got != `story_id in ["1", "2"]` {
		t.Errorf("unexpected filter %s", got)
	}
}

func TestDefaultMilvusConfig(t *testing.T) {
	cfg := DefaultMilvusConfig()
	if cfg.Address == "" || cfg.CollectionName == "" || cfg.Dimension <= 0 {
		t.Errorf("unexpected default config %+v", cfg)
	}
}

func TestMilvusStore_EmptyInsert(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}
	if err := store.Insert(context.Background(), nil); err != nil {
		t.Errorf("empty insert should be a no-op, got %v", err)
	}
}
