package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FORECAST_SERVER_ADDRESS.
const EnvPrefix = "FORECAST"

// Config captures the settings required to boot the forecast engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Model     ModelConfig     `yaml:"model"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address" split_words:"true" validate:"required"`
	HTTPAddress     string        `yaml:"httpAddress" split_words:"true"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" split_words:"true" validate:"gte=0"`
	MaxBatchRows    int           `yaml:"maxBatchRows" split_words:"true" validate:"gte=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json" split_words:"true"`
}

// ArtifactsConfig points at the pre-fit transformer files.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" split_words:"true" validate:"required"`
}

// ModelConfig selects the sales model.
type ModelConfig struct {
	Kind        string        `yaml:"kind" split_words:"true" validate:"oneof=linear remote"`
	Path        string        `yaml:"path" split_words:"true"`
	Endpoint    string        `yaml:"endpoint" split_words:"true" validate:"omitempty,url"`
	PredictPath string        `yaml:"predictPath" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
}

// PipelineConfig tunes categorical handling.
type PipelineConfig struct {
	StrictCategories    bool `yaml:"strictCategories" split_words:"true"`
	UnknownCategoryCode int  `yaml:"unknownCategoryCode" split_words:"true"`
	ChunkRows           int  `yaml:"chunkRows" split_words:"true" validate:"gt=0"`
	Workers             int  `yaml:"workers" split_words:"true" validate:"gt=0"`
}

// CacheConfig controls caching of scored batches and remote predictions.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" split_words:"true"`
	Backend      string        `yaml:"backend" split_words:"true" validate:"oneof=memory redis"`
	Addr         string        `yaml:"addr" split_words:"true"`
	Username     string        `yaml:"username" split_words:"true"`
	Password     string        `yaml:"password" split_words:"true"`
	DB           int           `yaml:"db" split_words:"true" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dialTimeout" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"writeTimeout" split_words:"true"`
	MaxRetries   int           `yaml:"maxRetries" split_words:"true"`
	KeyPrefix    string        `yaml:"keyPrefix" split_words:"true"`
	BatchTTL     time.Duration `yaml:"batchTTL" split_words:"true"`
	ScoreTTL     time.Duration `yaml:"scoreTTL" split_words:"true"`
}

// Load initialises Config from defaults, an optional YAML file and
// FORECAST_* environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-section rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch {
	case c.Model.Kind == "linear" && c.Model.Path == "":
		return errors.New("invalid config: model.path is required for the linear model")
	case c.Model.Kind == "remote" && c.Model.Endpoint == "":
		return errors.New("invalid config: model.endpoint is required for the remote model")
	}
	if c.Cache.Enabled && c.Cache.Backend == "redis" && c.Cache.Addr == "" {
		return errors.New("invalid config: cache.addr is required for the redis backend")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
			MaxBatchRows:    50000,
		},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Artifacts: ArtifactsConfig{Dir: "configs/artifacts"},
		Model: ModelConfig{
			Kind:        "linear",
			Path:        "configs/model/linear.yaml",
			PredictPath: "/v1/score",
			Timeout:     5 * time.Second,
		},
		Pipeline: PipelineConfig{
			UnknownCategoryCode: -1,
			ChunkRows:           5000,
			Workers:             4,
		},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      "memory",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KeyPrefix:    "forecast:",
			BatchTTL:     10 * time.Minute,
			ScoreTTL:     10 * time.Minute,
		},
	}
}
