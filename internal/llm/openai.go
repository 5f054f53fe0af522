package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"
)

// OpenAIGateway implements Gateway using OpenAI's chat completions API.
type OpenAIGateway struct {
	client openai.Client
	model  string
}

// NewOpenAIGateway creates an OpenAI-backed gateway.
// Returns an error if the API key or model is missing.
func NewOpenAIGateway(config Config) (*OpenAIGateway, error) {
	apiKey := resolveAPIKey(config)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set OPENAI_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIGateway{
		client: openai.NewClient(opts...),
		model:  config.Model,
	}, nil
}

// NewGateway returns an OpenAI gateway, or the placeholder gateway when no
// API key is configured so that the pipeline keeps running on fallbacks.
func NewGateway(config Config, logger logrus.FieldLogger) (Gateway, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if resolveAPIKey(config) == "" {
		logger.WithField("component", "llm").
			Warn("No OpenAI API key found, using placeholder replies. Add OPENAI_API_KEY to your .env file")
		return PlaceholderGateway{}, nil
	}
	return NewOpenAIGateway(config)
}

func resolveAPIKey(config Config) string {
	if config.APIKey != "" {
		return config.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Complete sends the prompt to OpenAI and returns the generated text.
func (o *OpenAIGateway) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(float64(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	return completion.Choices[0].Message.Content, nil
}

// PlaceholderGateway answers every prompt with PlaceholderResponse.
type PlaceholderGateway struct{}

// Complete returns the fixed placeholder reply.
func (PlaceholderGateway) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return PlaceholderResponse, nil
}
