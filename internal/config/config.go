// Package config loads briefgate settings from defaults, an optional YAML
// file and BRIEFGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/briefgate/internal/brief"
	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/retrieval"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BRIEFGATE"

// #region types
// Config holds all configuration values.
type Config struct {
	DBPath     string                    `mapstructure:"db_path" yaml:"db_path"`
	LogFile    string                    `mapstructure:"log_file" yaml:"log_file"`
	LogLevel   string                    `mapstructure:"log_level" yaml:"log_level"`
	Retrieval  retrieval.RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Search     websearch.Config          `mapstructure:"search" yaml:"search"`
	Enrichment enrichment.Config         `mapstructure:"enrichment" yaml:"enrichment"`
	LLM        LLMConfig                 `mapstructure:"llm" yaml:"llm"`
	Codec      CodecConfig               `mapstructure:"codec" yaml:"codec"`
	Gate       gate.GateConfig           `mapstructure:"gate" yaml:"gate"`
	Research   brief.ResearchConfig      `mapstructure:"research" yaml:"research"`
}

// LLMConfig selects the synthesizer and embedder backend.
// Provider is "openai", "codec" or "none" (extractive drafts, no embeddings).
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model          string        `mapstructure:"model" yaml:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model" yaml:"embedding_model"`
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CodecConfig points at the inference sidecar.
type CodecConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// #endregion types

// #region defaults
// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:     "~/.briefgate/briefgate.db",
		LogFile:    "~/.briefgate/briefgate.log",
		LogLevel:   "INFO",
		Retrieval:  retrieval.DefaultConfig(),
		Search:     websearch.DefaultConfig(),
		Enrichment: enrichment.DefaultConfig(),
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      2000,
			Timeout:        60 * time.Second,
		},
		Codec:    CodecConfig{Address: "localhost:50051"},
		Gate:     gate.DefaultGateConfig(),
		Research: brief.DefaultResearchConfig(),
	}
}

// secretEnv lists keys that also honour a conventional unprefixed variable.
var secretEnv = map[string]string{
	"llm.api_key":        "OPENAI_API_KEY",
	"search.api_key":     "SERPAPI_API_KEY",
	"enrichment.api_key": "PDL_API_KEY",
}

// Defaults registers every default on v and binds the environment, so that
// BRIEFGATE_SEARCH_TIMEOUT overrides search.timeout.
func Defaults(v *viper.Viper) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flat := map[string]any{}
	flatten("", tree, flat)
	for k, val := range flat {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := make([]string, 0, len(secretEnv))
	for k := range secretEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k, ".", "_"))
		if err := v.BindEnv(k, envKey, secretEnv[k]); err != nil {
			return fmt.Errorf("bind %s: %w", k, err)
		}
	}
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, val := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := val.(map[string]any); ok {
			flatten(key, m, out)
			continue
		}
		out[key] = val
	}
}

// #endregion defaults

// #region load
// Load reads configuration into a Config. cfgFile may be empty, in which
// case ~/.briefgate/config.yaml is used when present.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if err := Defaults(v); err != nil {
		return Config{}, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if dir, err := Dir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBPath = ExpandHome(cfg.DBPath)
	cfg.LogFile = ExpandHome(cfg.LogFile)
	return cfg, nil
}

// Dir returns ~/.briefgate.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return filepath.Join(home, ".briefgate"), nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// #endregion load

// #region render
// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.Search.APIKey = mask(c.Search.APIKey)
	c.Enrichment.APIKey = mask(c.Enrichment.APIKey)
	return c
}

// YAML renders c as YAML.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// #endregion render
