// Package config loads beanstalk settings from a TOML or YAML file, a .env
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Yates-Labs/beanstalk/internal/judge"
	"github.com/Yates-Labs/beanstalk/internal/llm"
	"github.com/Yates-Labs/beanstalk/internal/memory"
	"github.com/Yates-Labs/beanstalk/internal/story"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// SearchPaths are tried in order when no config file is given.
var SearchPaths = []string{"beanstalk.toml", "beanstalk.yaml", "beanstalk.yml"}

// Config is the full application configuration.
type Config struct {
	LLM    LLMConfig    `toml:"llm" yaml:"llm"`
	Story  StoryConfig  `toml:"story" yaml:"story"`
	Rubric judge.Rubric `toml:"rubric" yaml:"rubric"`
	Store  StoreConfig  `toml:"store" yaml:"store"`
	Memory MemoryConfig `toml:"memory" yaml:"memory"`
	Server ServerConfig `toml:"server" yaml:"server"`
	Log    LogConfig    `toml:"log" yaml:"log"`

	// Source is the file the configuration was read from ("" for defaults only)
	Source string `toml:"-" yaml:"-"`
}

type LLMConfig struct {
	Model             string `toml:"model" yaml:"model" validate:"required"`
	BaseURL           string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds    int    `toml:"timeout" yaml:"timeout" validate:"gte=0,lte=3600"`
	RequestsPerMinute int    `toml:"requests_per_minute" yaml:"requests_per_minute" validate:"gte=0"`

	// APIKey only ever comes from the environment
	APIKey string `toml:"-" yaml:"-"`
}

type StoryConfig struct {
	TwoPass          bool `toml:"two_pass" yaml:"two_pass"`
	SuggestQuestions bool `toml:"suggest_questions" yaml:"suggest_questions"`
}

type StoreConfig struct {
	Driver string `toml:"driver" yaml:"driver" validate:"oneof=json sqlite"`
	Path   string `toml:"path" yaml:"path" validate:"required"`
}

type MemoryConfig struct {
	Enabled        bool    `toml:"enabled" yaml:"enabled"`
	Address        string  `toml:"address" yaml:"address" validate:"required_if=Enabled true"`
	Collection     string  `toml:"collection" yaml:"collection" validate:"required_if=Enabled true"`
	EmbeddingModel string  `toml:"embedding_model" yaml:"embedding_model" validate:"required_if=Enabled true"`
	Dimension      int     `toml:"dimension" yaml:"dimension" validate:"gt=0"`
	TopK           int     `toml:"top_k" yaml:"top_k" validate:"gt=0,lte=20"`
	MinScore       float64 `toml:"min_score" yaml:"min_score" validate:"gte=0,lte=1"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr" validate:"required"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level" validate:"oneof=trace debug info warn warning error"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	llmDefaults := llm.DefaultConfig()
	milvus := memory.DefaultMilvusConfig()
	recall := memory.DefaultConfig()

	return Config{
		LLM: LLMConfig{
			Model:             llmDefaults.Model,
			TimeoutSeconds:    int(llmDefaults.Timeout / time.Second),
			RequestsPerMinute: llmDefaults.RequestsPerMinute,
		},
		Story: StoryConfig{
			TwoPass:          true,
			SuggestQuestions: true,
		},
		Rubric: judge.DefaultRubric(),
		Store: StoreConfig{
			Driver: "json",
			Path:   tracker.DefaultPath,
		},
		Memory: MemoryConfig{
			Address:        milvus.Address,
			Collection:     milvus.CollectionName,
			EmbeddingModel: "text-embedding-3-small",
			Dimension:      milvus.Dimension,
			TopK:           recall.TopK,
			MinScore:       float64(recall.MinScore),
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the configuration. An empty path searches SearchPaths in the
// working directory; finding nothing yields the defaults. Values from .env and
// the environment override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile() string {
	for _, p := range SearchPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// decodeFile overlays the file onto cfg; keys absent from the file keep
// their current values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: unsupported config format %q (use .toml, .yaml or .yml)", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("BEANSTALK_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.Memory.Address = v
	}
	if v := os.Getenv("BEANSTALK_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// applyDefaults fills values a file may have blanked.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == def.Store.Path {
		cfg.Store.Path = tracker.DefaultSQLitePath
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Memory.TopK == 0 {
		cfg.Memory.TopK = def.Memory.TopK
	}
	if cfg.Memory.Dimension == 0 {
		cfg.Memory.Dimension = def.Memory.Dimension
	}
	if cfg.Rubric.ReadingWPM == 0 {
		cfg.Rubric.ReadingWPM = def.Rubric.ReadingWPM
	}
}

// Validate checks struct constraints and then the rubric.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Rubric.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// GatewayConfig converts the LLM section for the gateway constructor.
func (c *Config) GatewayConfig() llm.Config {
	return llm.Config{
		Model:             c.LLM.Model,
		APIKey:            c.LLM.APIKey,
		BaseURL:           c.LLM.BaseURL,
		Timeout:           time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
	}
}

// SynthesizerConfig converts the story section.
func (c *Config) SynthesizerConfig() story.Config {
	return story.Config{TwoPass: c.Story.TwoPass, MinWords: c.Rubric.MinWords}
}

// MilvusConfig converts the memory section for the vector store.
func (c *Config) MilvusConfig() memory.MilvusConfig {
	m := memory.DefaultMilvusConfig()
	m.Address = c.Memory.Address
	m.CollectionName = c.Memory.Collection
	m.Dimension = c.Memory.Dimension
	return m
}

// EmbedderConfig converts the memory section for the embedder.
func (c *Config) EmbedderConfig() memory.EmbedderConfig {
	return memory.EmbedderConfig{
		Model:     c.Memory.EmbeddingModel,
		Dimension: c.Memory.Dimension,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
	}
}

// RecallConfig converts the memory section for recall.
func (c *Config) RecallConfig() memory.Config {
	return memory.Config{TopK: c.Memory.TopK, MinScore: float32(c.Memory.MinScore)}
}
