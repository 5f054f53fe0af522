// Package story generates and refines bedtime stories through the model gateway.
package story

import (
	"context"
	"errors"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/prompt"
	"github.com/sirupsen/logrus"
)

var (
	outlineOptions = llm.CallOptions{MaxTokens: 1500, Temperature: 0.7}
	writeOptions   = llm.CallOptions{MaxTokens: 3000, Temperature: 0.7}
	refineOptions  = llm.CallOptions{MaxTokens: 2000, Temperature: 0.3}
)

// FallbackStory is returned whenever generation cannot produce a valid story.
var FallbackStory = engine.Story{
	Title: "A Magical Adventure",
	Body:  "Once upon a time, there was a kind and curious child who loved adventures. One evening, they discovered something wonderful that led to an amazing journey filled with friendship and joy. After their adventure, they returned home feeling happy and safe, ready for sweet dreams.",
	Moral: "Every day holds the possibility of magic and wonder.",
}

// Config controls how stories are generated.
type Config struct {
	// TwoPass plans an outline before writing (false = single prompt)
	TwoPass bool

	// MinWords is the length below which a refinement that also shrinks
	// the story is rejected
	MinWords int
}

// DefaultConfig returns the default synthesizer settings.
func DefaultConfig() Config {
	return Config{TwoPass: true, MinWords: 800}
}

var storySchema = llm.Schema[engine.Story]{
	Name:     "story",
	Required: []string{"title", "story", "moral"},
	Validate: func(s engine.Story) error {
		if !s.Complete() {
			return errors.New("title, story and moral must be non-empty")
		}
		return nil
	},
}

var outlineSchema = llm.Schema[engine.StoryOutline]{
	Name:     "outline",
	Required: []string{"protagonist", "setting", "key_events"},
	Validate: func(o engine.StoryOutline) error {
		if strings.TrimSpace(o.Setting) == "" {
			return errors.New("empty setting")
		}
		if len(o.KeyEvents) == 0 {
			return errors.New("no key events")
		}
		return nil
	},
}

// Synthesizer writes stories for validated requests.
type Synthesizer struct {
	gateway llm.Gateway
	config  Config
	logger  logrus.FieldLogger
}

// NewSynthesizer creates a synthesizer. A nil logger uses the standard logger.
func NewSynthesizer(gateway llm.Gateway, config Config, logger logrus.FieldLogger) *Synthesizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Synthesizer{
		gateway: gateway,
		config:  config,
		logger:  logger.WithField("component", "story"),
	}
}

// Generate writes a story for request. avoid lists titles of similar past
// stories the model should not repeat.
//
// The returned outline is nil when single-pass generation was used, either by
// configuration or because the outline stage failed. The story is always
// complete: FallbackStory is returned when writing fails.
func (s *Synthesizer) Generate(ctx context.Context, request string, avoid []string) (engine.Story, *engine.StoryOutline) {
	if !s.config.TwoPass {
		return s.write(ctx, prompt.SinglePass(request, avoid)), nil
	}

	res := llm.Call(ctx, s.gateway, prompt.Outline(request, avoid), outlineOptions, outlineSchema)
	outline, ok := res.Value()
	if !ok {
		s.logger.WithError(res.Err()).WithField("schema", outlineSchema.Name).
			Warn("Outline stage failed, falling back to single-pass generation")
		return s.write(ctx, prompt.SinglePass(request, avoid)), nil
	}

	s.logger.WithField("stage", "outline").Debugf("Outline ready: %d key events in %s", len(outline.KeyEvents), outline.Setting)
	return s.write(ctx, prompt.WriteFromOutline(request, outline)), &outline
}

func (s *Synthesizer) write(ctx context.Context, p string) engine.Story {
	res := llm.Call(ctx, s.gateway, p, writeOptions, storySchema)
	story, ok := res.Value()
	if !ok {
		s.logger.WithError(res.Err()).WithField("schema", storySchema.Name).Warn("Story generation failed, using fallback story")
		return FallbackStory
	}
	return normalize(story)
}

// Refine applies instructions to story and returns the refined version, or
// the original unchanged when the refinement is invalid or shrinks an
// already short story.
func (s *Synthesizer) Refine(ctx context.Context, original engine.Story, instructions string) engine.Story {
	res := llm.Call(ctx, s.gateway, prompt.Refine(original, instructions), refineOptions, storySchema)
	refined, ok := res.Value()
	if !ok {
		s.logger.WithError(res.Err()).WithField("schema", "refine").Warn("Refinement failed, keeping original story")
		return original
	}
	refined = normalize(refined)

	words, originalWords := refined.WordCount(), original.WordCount()
	if words < s.config.MinWords && words < originalWords {
		s.logger.WithField("stage", "refine").
			Warnf("Refined story too short (%d words, original %d), keeping original", words, originalWords)
		return original
	}

	lower := strings.ToLower(instructions)
	if !strings.Contains(lower, "title") {
		refined.Title = original.Title
	}
	if !strings.Contains(lower, "moral") {
		refined.Moral = original.Moral
	}
	return refined
}

func normalize(s engine.Story) engine.Story {
	s.Title = strings.TrimSpace(s.Title)
	s.Moral = strings.TrimSpace(s.Moral)
	s.Body = strings.TrimSpace(s.Body)
	if !HasParagraphBreaks(s.Body) {
		s.Body = RepairParagraphs(s.Body)
	}
	return s
}
