package story

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
)

const outlineReply = `{
	"protagonist": {"name": "Pip", "age": "7", "personality": "curious", "type": "mouse"},
	"helpers": [{"name": "Owl", "type": "bird", "role": "guide"}],
	"setting": "a quiet library",
	"conflict": "a lost book",
	"key_events": ["finds a map", "meets Owl", "returns the book"],
	"resolution": "everyone sleeps",
	"theme": "kindness"
}`

func storyReply(title, body, moral string) string {
	return `{"title": "` + title + `", "story": "` + body + `", "moral": "` + moral + `"}`
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestGenerate_TwoPass(t *testing.T) {
	gw := llm.NewScriptedGateway(outlineReply, storyReply("Pip's Map", "Pip found a map.\n\nThen Pip slept.", "Be kind."))
	s := NewSynthesizer(gw, DefaultConfig(), nil)

	got, outline := s.Generate(context.Background(), "a mouse in a library", nil)

	if outline == nil {
		t.Fatal("expected outline from two-pass generation")
	}
	if outline.Protagonist.Name != "Pip" || len(outline.KeyEvents) != 3 {
		t.Errorf("unexpected outline %+v", outline)
	}
	if got.Title != "Pip's Map" || got.Moral != "Be kind." {
		t.Errorf("unexpected story %+v", got)
	}
	if gw.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", gw.Calls())
	}
	if !strings.Contains(gw.LastPrompt(), "a quiet library") {
		t.Error("write prompt should include the outline")
	}
	if opts := gw.LastOptions(); opts.MaxTokens != 3000 || opts.Temperature != 0.7 {
		t.Errorf("unexpected write options %+v", opts)
	}
}

func TestGenerate_OutlineFailureFallsBackToSinglePass(t *testing.T) {
	gw := llm.NewScriptedGateway(`{"setting": "forest"}`, storyReply("Fox", "A fox napped.", "Rest well."))
	s := NewSynthesizer(gw, DefaultConfig(), nil)

	got, outline := s.Generate(context.Background(), "a fox", nil)

	if outline != nil {
		t.Error("outline should be nil after outline failure")
	}
	if got.Title != "Fox" {
		t.Errorf("unexpected story %+v", got)
	}
	if !strings.Contains(gw.LastPrompt(), "Create a bedtime story") {
		t.Error("second call should use the single-pass prompt")
	}
}

func TestGenerate_SinglePassConfig(t *testing.T) {
	gw := llm.NewMockGateway(storyReply("Fox", "A fox napped.", "Rest well."))
	s := NewSynthesizer(gw, Config{TwoPass: false, MinWords: 800}, nil)

	_, outline := s.Generate(context.Background(), "a fox", []string{"The Sleepy Fox"})

	if outline != nil {
		t.Error("single-pass generation has no outline")
	}
	if gw.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", gw.Calls())
	}
	if !strings.Contains(gw.LastPrompt(), "The Sleepy Fox") {
		t.Error("avoid titles should reach the prompt")
	}
}

func TestGenerate_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		gw   *llm.MockGateway
	}{
		{"gateway error", llm.NewMockGatewayWithError(errors.New("down"))},
		{"empty moral", llm.NewMockGateway(storyReply("T", "Body.", ""))},
		{"missing story", llm.NewMockGateway(`{"title": "T", "moral": "M"}`)},
		{"prose", llm.NewMockGateway("Once upon a time...")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(tt.gw, Config{TwoPass: false}, nil)
			got, _ := s.Generate(context.Background(), "anything", nil)
			if got != FallbackStory {
				t.Errorf("expected fallback story, got %+v", got)
			}
		})
	}
}

func TestGenerate_AcceptsPlaceholder(t *testing.T) {
	s := NewSynthesizer(llm.PlaceholderGateway{}, Config{TwoPass: false}, nil)
	got, _ := s.Generate(context.Background(), "anything", nil)
	if got.Title != "Mock Story" {
		t.Errorf("placeholder reply should be accepted, got %+v", got)
	}
}

func TestGenerate_RepairsWallOfText(t *testing.T) {
	body := "One. Two. Three. Four. Five."
	gw := llm.NewMockGateway(storyReply("T", body, "M"))
	got, _ := NewSynthesizer(gw, Config{}, nil).Generate(context.Background(), "x", nil)

	if !HasParagraphBreaks(got.Body) {
		t.Errorf("expected repaired paragraphs, got %q", got.Body)
	}
}

func TestRefine(t *testing.T) {
	original := engine.Story{Title: "Old Title", Body: words(50), Moral: "Old moral."}

	tests := []struct {
		name         string
		reply        string
		instructions string
		minWords     int
		want         engine.Story
	}{
		{
			name:         "accepted keeps title and moral",
			reply:        storyReply("New Title", words(60), "New moral."),
			instructions: "- Add a calmer ending",
			minWords:     10,
			want:         engine.Story{Title: "Old Title", Body: words(60), Moral: "Old moral."},
		},
		{
			name:         "title instruction changes title",
			reply:        storyReply("New Title", words(60), "New moral."),
			instructions: "- Give it a warmer Title",
			minWords:     10,
			want:         engine.Story{Title: "New Title", Body: words(60), Moral: "Old moral."},
		},
		{
			name:         "moral instruction changes moral",
			reply:        storyReply("New Title", words(60), "New moral."),
			instructions: "- Make the moral gentler",
			minWords:     10,
			want:         engine.Story{Title: "Old Title", Body: words(60), Moral: "New moral."},
		},
		{
			name:         "short and shrinking is rejected",
			reply:        storyReply("T", words(40), "M"),
			instructions: "- Trim",
			minWords:     800,
			want:         original,
		},
		{
			name:         "short but growing is accepted",
			reply:        storyReply("T", words(70), "M"),
			instructions: "- Expand",
			minWords:     800,
			want:         engine.Story{Title: "Old Title", Body: words(70), Moral: "Old moral."},
		},
		{
			name:         "invalid reply keeps original",
			reply:        `{"title": "T"}`,
			instructions: "- Anything",
			minWords:     10,
			want:         original,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(llm.NewMockGateway(tt.reply), Config{MinWords: tt.minWords}, nil)
			got := s.Refine(context.Background(), original, tt.instructions)
			if got != tt.want {
				t.Errorf("Refine = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRefine_Stateless(t *testing.T) {
	original := engine.Story{Title: "T", Body: words(20), Moral: "M"}
	gw := llm.NewMockGateway(storyReply("T2", words(30), "M2"))
	s := NewSynthesizer(gw, Config{MinWords: 5}, nil)

	first := s.Refine(context.Background(), original, "- Add detail")
	second := s.Refine(context.Background(), original, "- Add detail")
	if first != second {
		t.Errorf("refine should be stateless: %+v vs %+v", first, second)
	}
	if opts := gw.LastOptions(); opts.MaxTokens != 2000 || opts.Temperature != 0.3 {
		t.Errorf("unexpected refine options %+v", opts)
	}
}
