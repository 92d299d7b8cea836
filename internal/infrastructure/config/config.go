// Package config loads settings from flags, environment and an optional YAML
// file using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// EnvPrefix prefixes every environment override, e.g. CREDITRAG_INDEX_DIR.
const EnvPrefix = "CREDITRAG"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Local     LocalConfig     `mapstructure:"local"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Server    ServerConfig    `mapstructure:"server"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"` // "dev" or "prod"
	Level string `mapstructure:"level"`
}

type CorpusConfig struct {
	Dir        string        `mapstructure:"dir"`
	Extensions []string      `mapstructure:"extensions"`
	Debounce   time.Duration `mapstructure:"debounce"`
}

type IndexConfig struct {
	Dir          string `mapstructure:"dir"`
	Metric       string `mapstructure:"metric"` // "l2" or "cosine"
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	LengthUnit   string `mapstructure:"length_unit"` // "chars" or "tokens"
	Encoding     string `mapstructure:"encoding"`    // tiktoken encoding for "tokens"
	BatchSize    int    `mapstructure:"batch_size"`
}

type EmbeddingConfig struct {
	URL         string `mapstructure:"url"`
	Model       string `mapstructure:"model"`
	Concurrency int    `mapstructure:"concurrency"`
	CacheSize   int    `mapstructure:"cache_size"` // 0 disables the query cache
}

type LocalConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type CloudConfig struct {
	Provider string `mapstructure:"provider"` // "gemini", "openai" or "none"
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type RoutingConfig struct {
	BaseThreshold       float64 `mapstructure:"base_threshold"`
	SimulationThreshold float64 `mapstructure:"simulation_threshold"`
	KExplanation        int     `mapstructure:"k_explanation"`
	KSimulation         int     `mapstructure:"k_simulation"`
	KDefault            int     `mapstructure:"k_default"`
}

type EngineConfig struct {
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PromptsConfig struct {
	File string `mapstructure:"file"` // optional catalogue override
}

// SetDefaults registers every key so environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")

	v.SetDefault("corpus.dir", "data")
	v.SetDefault("corpus.extensions", []string{".md", ".markdown", ".txt"})
	v.SetDefault("corpus.debounce", 500*time.Millisecond)

	v.SetDefault("index.dir", "vector_db")
	v.SetDefault("index.metric", "l2")
	v.SetDefault("index.chunk_size", 500)
	v.SetDefault("index.chunk_overlap", 150)
	v.SetDefault("index.length_unit", "chars")
	v.SetDefault("index.encoding", "cl100k_base")
	v.SetDefault("index.batch_size", 32)

	v.SetDefault("embedding.url", "http://localhost:11434")
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.concurrency", 4)
	v.SetDefault("embedding.cache_size", 256)

	v.SetDefault("local.url", "http://localhost:11434")
	v.SetDefault("local.model", "gemma:2b-instruct")

	v.SetDefault("cloud.provider", "gemini")
	v.SetDefault("cloud.model", "")
	v.SetDefault("cloud.api_key", "")
	v.SetDefault("cloud.base_url", "")

	v.SetDefault("routing.base_threshold", 0.55)
	v.SetDefault("routing.simulation_threshold", 0.65)
	v.SetDefault("routing.k_explanation", 6)
	v.SetDefault("routing.k_simulation", 8)
	v.SetDefault("routing.k_default", 4)

	v.SetDefault("engine.turn_timeout", time.Duration(0))

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("prompts.file", "")
}

// Load reads configuration into a Config. file may be empty, in which case
// ./creditrag.yaml is used if present. Flags bound on v take precedence.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("local.url", EnvPrefix+"_LOCAL_URL", "OLLAMA_HOST")
	_ = v.BindEnv("embedding.url", EnvPrefix+"_EMBEDDING_URL", "OLLAMA_HOST")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("creditrag")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Local.URL = normalizeOllamaURL(cfg.Local.URL)
	cfg.Embedding.URL = normalizeOllamaURL(cfg.Embedding.URL)
	if cfg.Cloud.APIKey == "" {
		cfg.Cloud.APIKey = cloudKeyFromEnv(cfg.Cloud.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// cloudKeyFromEnv falls back to the provider's conventional variables.
func cloudKeyFromEnv(provider string) string {
	var names []string
	switch provider {
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	}
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// OLLAMA_HOST is often set as host:port without a scheme.
func normalizeOllamaURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u != "" && !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return u
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	r := c.Routing
	check(r.BaseThreshold > 0 && r.BaseThreshold <= 1, "routing.base_threshold %v must be in (0, 1]", r.BaseThreshold)
	check(r.SimulationThreshold >= r.BaseThreshold && r.SimulationThreshold <= 1,
		"routing.simulation_threshold %v must be in [base_threshold, 1]", r.SimulationThreshold)
	check(r.KExplanation > 0 && r.KSimulation > 0 && r.KDefault > 0, "routing k values must be positive")

	ix := c.Index
	check(ix.ChunkSize > 0, "index.chunk_size must be positive")
	check(ix.ChunkOverlap >= 0 && ix.ChunkOverlap < ix.ChunkSize, "index.chunk_overlap must be in [0, chunk_size)")
	check(ix.Metric == "l2" || ix.Metric == "cosine", "index.metric %q must be l2 or cosine", ix.Metric)
	check(ix.LengthUnit == "chars" || ix.LengthUnit == "tokens", "index.length_unit %q must be chars or tokens", ix.LengthUnit)
	check(ix.Dir != "", "index.dir must be set")

	switch c.Cloud.Provider {
	case "gemini", "openai", "none":
	default:
		check(false, "cloud.provider %q must be gemini, openai or none", c.Cloud.Provider)
	}
	check(c.Engine.TurnTimeout >= 0, "engine.turn_timeout must not be negative")
	check(c.Embedding.CacheSize >= 0, "embedding.cache_size must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", entities.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
