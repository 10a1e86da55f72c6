package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlFile is the expected filename of the configuration overlay inside
// the config directory. The file is optional; built-in defaults apply
// when it is absent.
const yamlFile = "vidsum.yaml"

// fileConfig is the YAML shape of vidsum.yaml. It differs from Config
// only where merge semantics need it: chat.persist_errors is a pointer
// so an explicit `false` survives the merge.
type fileConfig struct {
	ListenAddr string            `yaml:"listen_addr"`
	ContentDir string            `yaml:"content_dir"`
	Groq       *GroqConfig       `yaml:"groq"`
	Pipeline   *PipelineConfig   `yaml:"pipeline"`
	Downloader *DownloaderConfig `yaml:"downloader"`
	Chat       *chatFileConfig   `yaml:"chat"`
}

type chatFileConfig struct {
	PersistErrors           *bool         `yaml:"persist_errors,omitempty"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout,omitempty"`
}

// Initialize loads, resolves, and validates configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Overlay the optional vidsum.yaml (environment variables expanded
//     with {{.VAR}} template syntax before parsing)
//  3. Apply environment overrides (GROQ_API_KEY, YTDLP_BIN, HTTP_PORT)
//  4. Validate and return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"listen_addr", cfg.ListenAddr,
		"content_dir", cfg.ContentDir,
		"transcription_model", cfg.Groq.TranscriptionModel,
		"summary_model", cfg.Groq.SummaryModel,
		"chat_model", cfg.Groq.ChatModel)

	return cfg, nil
}

// load builds the Config from defaults plus the optional YAML overlay.
func load(_ context.Context, configDir string) (*Config, error) {
	cfg := DefaultConfig()

	overlay, err := readYAML(filepath.Join(configDir, yamlFile))
	if err != nil {
		return nil, err
	}
	if overlay == nil {
		slog.Info("No configuration overlay found, using defaults", "file", yamlFile)
		return cfg, nil
	}

	if overlay.ListenAddr != "" {
		cfg.ListenAddr = overlay.ListenAddr
	}
	if overlay.ContentDir != "" {
		cfg.ContentDir = overlay.ContentDir
	}

	// Merge the struct sections over the defaults (non-zero values win).
	if overlay.Groq != nil {
		if err := mergo.Merge(&cfg.Groq, overlay.Groq, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge groq config: %w", err)
		}
	}
	if overlay.Pipeline != nil {
		if err := mergo.Merge(&cfg.Pipeline, overlay.Pipeline, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge pipeline config: %w", err)
		}
	}
	if overlay.Downloader != nil {
		if err := mergo.Merge(&cfg.Downloader, overlay.Downloader, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge downloader config: %w", err)
		}
	}
	if overlay.Chat != nil {
		if overlay.Chat.PersistErrors != nil {
			cfg.Chat.PersistErrors = *overlay.Chat.PersistErrors
		}
		if overlay.Chat.GracefulShutdownTimeout > 0 {
			cfg.Chat.GracefulShutdownTimeout = overlay.Chat.GracefulShutdownTimeout
		}
	}

	return cfg, nil
}

// readYAML reads and parses the overlay file. A missing file is not an
// error: it returns (nil, nil) and the caller falls back to defaults.
func readYAML(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewLoadError(filepath.Base(path), err)
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes the original bytes through on template errors so
	// the YAML parser produces the clearer error message.
	data = ExpandEnv(data)

	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, NewLoadError(filepath.Base(path), fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	return &overlay, nil
}

// applyEnvOverrides applies the environment variables that take
// precedence over both defaults and the YAML overlay.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		cfg.Groq.APIKey = key
	}
	if bin := os.Getenv("YTDLP_BIN"); bin != "" {
		cfg.Downloader.Binary = bin
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
}

// Validate checks that the resolved configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	}
	if c.ContentDir == "" {
		return fmt.Errorf("%w: content_dir is empty", ErrInvalidConfig)
	}
	if c.Groq.APIKey == "" {
		return fmt.Errorf("%w: groq api key is not set (GROQ_API_KEY)", ErrInvalidConfig)
	}
	if c.Groq.BaseURL == "" {
		return fmt.Errorf("%w: groq base_url is empty", ErrInvalidConfig)
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("%w: pipeline queue_capacity must be positive", ErrInvalidConfig)
	}
	if c.Pipeline.ErrorCapacity <= 0 {
		return fmt.Errorf("%w: pipeline error_capacity must be positive", ErrInvalidConfig)
	}
	if c.Pipeline.ChunkSeconds <= 0 {
		return fmt.Errorf("%w: pipeline chunk_seconds must be positive", ErrInvalidConfig)
	}
	if c.Pipeline.SummaryChunkTokens <= 0 {
		return fmt.Errorf("%w: pipeline summary_chunk_tokens must be positive", ErrInvalidConfig)
	}
	return nil
}
