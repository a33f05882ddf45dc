// Package config loads process settings from an optional .env file, an
// optional config file and FT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/oukeidos/fictra/internal/llm"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/providers"
)

const (
	EnvPrefix = "FT"

	DefaultDirName           = ".fiction-translator"
	DefaultDBName            = "fiction_translator.db"
	DefaultQPS               = 3.0
	DefaultMaxConcurrentRuns = 4
	MaxConcurrentRunsLimit   = 32
)

type Config struct {
	DataDir           string  `mapstructure:"data_dir"`
	DBPath            string  `mapstructure:"db_path"`
	ExportDir         string  `mapstructure:"export_dir"`
	LogLevel          string  `mapstructure:"log_level"`
	LogFile           string  `mapstructure:"log_file"`
	LLMQPS            float64 `mapstructure:"llm_qps"`
	GeminiModel       string  `mapstructure:"gemini_model"`
	ClaudeModel       string  `mapstructure:"claude_model"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	MaxConcurrentRuns int     `mapstructure:"max_concurrent_runs"`
}

// Load reads configuration. configFile may be empty. A .env file in the
// working directory is applied first when present.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, key := range []string{"data_dir", "db_path", "export_dir", "log_level", "log_file", "gemini_model", "claude_model", "openai_model"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("llm_qps", DefaultQPS)
	v.SetDefault("max_concurrent_runs", DefaultMaxConcurrentRuns)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills derived paths and clamps numeric settings, returning a
// note for every value it had to change.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if strings.TrimSpace(c.DataDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, DefaultDirName)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, DefaultDBName)
	}
	if c.ExportDir == "" {
		c.ExportDir = filepath.Join(c.DataDir, "exports")
	}
	if c.LLMQPS < 0 {
		notes = append(notes, fmt.Sprintf("llm_qps %.2f is negative; rate limiting disabled", c.LLMQPS))
		c.LLMQPS = 0
	}
	if c.MaxConcurrentRuns <= 0 {
		notes = append(notes, fmt.Sprintf("max_concurrent_runs %d is not positive; using %d", c.MaxConcurrentRuns, DefaultMaxConcurrentRuns))
		c.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if c.MaxConcurrentRuns > MaxConcurrentRunsLimit {
		notes = append(notes, fmt.Sprintf("max_concurrent_runs %d exceeds %d; clamped", c.MaxConcurrentRuns, MaxConcurrentRunsLimit))
		c.MaxConcurrentRuns = MaxConcurrentRunsLimit
	}
	return c, notes
}

func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is empty")
	}
	return nil
}

// ProviderOptions returns the model factory settings.
func (c Config) ProviderOptions() providers.Options {
	opts := providers.DefaultOptions()
	opts.QPS = c.LLMQPS
	opts.Models = map[llm.ProviderName]string{}
	for name, model := range map[llm.ProviderName]string{
		llm.Gemini: c.GeminiModel,
		llm.Claude: c.ClaudeModel,
		llm.OpenAI: c.OpenAIModel,
	} {
		if model = strings.TrimSpace(model); model != "" {
			opts.Models[name] = model
		}
	}
	return opts
}
