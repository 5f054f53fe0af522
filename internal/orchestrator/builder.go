package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Yates-Labs/beanstalk/internal/config"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/memory"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

// NewGatewayFromConfig builds the model gateway with its timeout, rate limit
// and metrics decorators, applied in that order.
func NewGatewayFromConfig(cfg *config.Config, logger logrus.FieldLogger) (llm.Gateway, error) {
	gwConfig := cfg.GatewayConfig()

	gateway, err := llm.NewGateway(gwConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	gateway = llm.WithTimeout(gateway, gwConfig.Timeout)
	gateway = llm.WithRateLimit(gateway, gwConfig.RequestsPerMinute)
	gateway = llm.WithMetrics(gateway, gwConfig.Model)
	return gateway, nil
}

// NewFromConfig wires a complete pipeline: gateway, record store and, when
// enabled, story memory. Story memory is optional; if Milvus cannot be
// reached the pipeline runs without it.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	gateway, err := NewGatewayFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := tracker.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open story store: %w", err)
	}

	opts := Options{Store: store, Logger: logger}
	if cfg.Memory.Enabled {
		mem, err := OpenMemory(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Warn("Story memory unavailable, continuing without it")
		} else {
			opts.Memory = mem
		}
	}

	pipelineConfig := Config{
		Story:            cfg.SynthesizerConfig(),
		Rubric:           cfg.Rubric,
		SuggestQuestions: cfg.Story.SuggestQuestions,
	}
	return New(gateway, pipelineConfig, opts), nil
}

// OpenMemory connects story memory to the configured embedder and Milvus.
func OpenMemory(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*memory.Memory, error) {
	embedder, err := memory.NewOpenAIEmbedder(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := memory.NewMilvusStore(ctx, cfg.MilvusConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	mem, err := memory.New(embedder, store, cfg.RecallConfig(), logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create story memory: %w", err)
	}
	return mem, nil
}
