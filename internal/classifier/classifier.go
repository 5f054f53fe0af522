// Package classifier decides whether raw user input is a usable story seed.
package classifier

import (
	"context"
	"errors"
	"strings"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/prompt"
	"github.com/sirupsen/logrus"
)

const (
	// ShortInputHint is returned for input too short to send to the model.
	ShortInputHint = "I need a bit more to work with! Try something like: 'A story about a brave mouse who lives in a library'"

	// FailureHint is returned whenever the model reply cannot be validated.
	FailureHint = "Something went wrong! Please try again with a story idea like: 'A story about a curious cat who explores a magical garden'"

	minInputLength = 2
)

var callOptions = llm.CallOptions{MaxTokens: 300, Temperature: 0.1}

type verdict struct {
	Valid         bool   `json:"valid"`
	StoryElements string `json:"story_elements"`
	Suggestion    string `json:"suggestion"`
}

var verdictSchema = llm.Schema[verdict]{
	Name:     "classify",
	Required: []string{"valid", "story_elements", "suggestion"},
	Validate: func(v verdict) error {
		if v.Valid && strings.TrimSpace(v.StoryElements) == "" {
			return errors.New("valid verdict without story_elements")
		}
		if !v.Valid && strings.TrimSpace(v.Suggestion) == "" {
			return errors.New("invalid verdict without suggestion")
		}
		return nil
	},
}

// FailureRequest is the classification returned when the model cannot be trusted.
func FailureRequest(raw string) engine.StoryRequest {
	return engine.StoryRequest{RawText: raw, Valid: false, RejectionHint: FailureHint}
}

// Classifier turns raw text into a StoryRequest.
type Classifier struct {
	gateway llm.Gateway
	logger  logrus.FieldLogger
}

// New creates a classifier backed by gateway. A nil logger uses the standard logger.
func New(gateway llm.Gateway, logger logrus.FieldLogger) *Classifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Classifier{gateway: gateway, logger: logger.WithField("component", "classifier")}
}

// Classify never fails: every problem is mapped to a rejected request with a hint.
func (c *Classifier) Classify(ctx context.Context, raw string) engine.StoryRequest {
	if len(strings.TrimSpace(raw)) < minInputLength {
		return engine.StoryRequest{RawText: raw, Valid: false, RejectionHint: ShortInputHint}
	}

	res := llm.Call(ctx, c.gateway, prompt.Classify(raw), callOptions, verdictSchema)
	v, ok := res.Value()
	if !ok {
		c.logger.WithError(res.Err()).WithField("schema", verdictSchema.Name).Warn("Classification failed, using fallback")
		return FailureRequest(raw)
	}

	if !v.Valid {
		return engine.StoryRequest{RawText: raw, Valid: false, RejectionHint: strings.TrimSpace(v.Suggestion)}
	}
	return engine.StoryRequest{RawText: raw, Valid: true, NormalizedText: strings.TrimSpace(v.StoryElements)}
}
