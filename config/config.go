package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the frame search service.
type Config struct {
	Corpus   CorpusConfig             `yaml:"corpus"`
	Backends map[string]BackendConfig `yaml:"backends"`
	Retrieve RetrieveConfig           `yaml:"retrieve"`
	Server   ServerConfig             `yaml:"server"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// CorpusConfig locates the frame mapping database.
type CorpusConfig struct {
	DBPath string `yaml:"db_path"` // Relative paths resolve against the data dir
}

// BackendConfig describes one embedding model + index pair.
type BackendConfig struct {
	Provider  string      `yaml:"provider"` // "http", "mock"
	BaseURL   string      `yaml:"base_url"`
	Model     string      `yaml:"model"`
	APIKeyEnv string      `yaml:"api_key_env"` // Optional; empty means no auth header
	Dimension int         `yaml:"dimension"`
	Timeout   Duration    `yaml:"timeout"`
	RateLimit float64     `yaml:"rate_limit"` // Requests per second to the model server; 0 is unlimited
	Index     IndexConfig `yaml:"index"`
}

// IndexConfig selects the nearest-neighbour index behind a backend.
type IndexConfig struct {
	Provider string `yaml:"provider"` // "bolt", "pgvector"
	DSN      string `yaml:"dsn"`      // pgvector only
	Table    string `yaml:"table"`    // pgvector only
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK        int      `yaml:"top_k"`
	Parallelism int      `yaml:"parallelism"` // Concurrent per-event retrievals
	CacheSize   int      `yaml:"cache_size"`  // 0 disables the query cache
	CacheTTL    Duration `yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" (colored) or "json"
}

// Duration is a time.Duration that reads "30s"-style strings from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			DBPath: "frames.db",
		},
		Backends: map[string]BackendConfig{
			"apple_clip": {
				Provider:  "http",
				BaseURL:   "http://localhost:8001/v1",
				Model:     "apple/DFN5B-CLIP-ViT-H-14-378",
				Dimension: 1024,
				Timeout:   Duration(60 * time.Second),
				Index:     IndexConfig{Provider: "bolt"},
			},
			"laion_clip": {
				Provider:  "http",
				BaseURL:   "http://localhost:8002/v1",
				Model:     "laion/CLIP-ViT-g-14-laion2B-s12B-b42K",
				Dimension: 1024,
				Timeout:   Duration(60 * time.Second),
				Index:     IndexConfig{Provider: "bolt"},
			},
		},
		Retrieve: RetrieveConfig{
			TopK:        1500,
			Parallelism: 4,
			CacheSize:   256,
			CacheTTL:    Duration(5 * time.Minute),
		},
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    Duration(30 * time.Second),
			WriteTimeout:   Duration(120 * time.Second),
			MaxUploadBytes: 32 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	// A backends section replaces the defaults instead of merging into them,
	// so a file can leave a backend unconfigured.
	cfg.Backends = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Backends == nil {
		cfg.Backends = DefaultConfig().Backends
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for framesearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "framesearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".framesearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}
	for name, b := range c.Backends {
		switch b.Provider {
		case "http":
			if b.BaseURL == "" {
				return fmt.Errorf("backend %s: base_url is required for the http provider", name)
			}
		case "mock":
		default:
			return fmt.Errorf("backend %s: unknown provider %q", name, b.Provider)
		}
		if b.RateLimit < 0 {
			return fmt.Errorf("backend %s: rate_limit must not be negative", name)
		}
		if b.Dimension <= 0 {
			return fmt.Errorf("backend %s: dimension must be positive", name)
		}
		switch b.Index.Provider {
		case "bolt", "":
		case "pgvector":
			if b.Index.DSN == "" {
				return fmt.Errorf("backend %s: index.dsn is required for pgvector", name)
			}
		default:
			return fmt.Errorf("backend %s: unknown index provider %q", name, b.Index.Provider)
		}
	}
	return nil
}

// DBPath returns the path to the corpus database for a data directory.
func (c *Config) DBPath(dir string) string {
	if filepath.IsAbs(c.Corpus.DBPath) {
		return c.Corpus.DBPath
	}
	return filepath.Join(dir, ".framesearch", c.Corpus.DBPath)
}

// EnsureDataDir ensures the .framesearch directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".framesearch"), 0755)
}
