package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is passed explicitly to every workflow at construction time.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Index         IndexConfig         `yaml:"index"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Decomposition DecompositionConfig `yaml:"decomposition"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LLMConfig describes the Ollama endpoint used for both chat and embeddings.
type LLMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	EmbedModel string        `yaml:"embed_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

type IndexConfig struct {
	Backend  string `yaml:"backend"`
	Scheme   string `yaml:"scheme"`
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
	Class    string `yaml:"class"`
	TextKey  string `yaml:"text_key"`
	TopK     int    `yaml:"top_k"`
	PgConn   string `yaml:"pg_conn"`
}

type IngestConfig struct {
	Strategy     string `yaml:"strategy"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	// Concurrency of 1 keeps sub-question retrieval strictly sequential.
	Concurrency int `yaml:"concurrency"`
}

type DecompositionConfig struct {
	Strict bool `yaml:"strict"`
}

const (
	BackendWeaviate = "weaviate"
	BackendPgvector = "pgvector"

	StrategyHiRes = "hi_res"
	StrategyFast  = "fast"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000", UploadDir: ".", MaxUploadMB: 50},
		LLM: LLMConfig{
			BaseURL:    "http://localhost:11434",
			APIKey:     "ollama",
			Model:      "llama3",
			EmbedModel: "llama3",
		},
		Index: IndexConfig{
			Backend:  BackendWeaviate,
			Scheme:   "http",
			Host:     "localhost",
			HTTPPort: 8080,
			GRPCPort: 50051,
			Class:    "Document",
			TextKey:  "text",
			TopK:     4,
			PgConn:   "host=localhost port=5432 user=postgres password=postgres dbname=docqa sslmode=disable",
		},
		Ingest:    IngestConfig{Strategy: StrategyHiRes, ChunkSize: 220, ChunkOverlap: 40},
		Retrieval: RetrievalConfig{Concurrency: 1},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env file
// and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.LLM.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbedModel, "EMBED_MODEL")
	setString(&c.Index.Backend, "INDEX_BACKEND")
	setString(&c.Index.Host, "WEAVIATE_HOST")
	setString(&c.Index.PgConn, "PG_CONN")
	setString(&c.Server.Addr, "SERVER_ADDR")
	if v := os.Getenv("DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG value %q: %w", v, err)
		}
		c.Debug = b
	}
	if v := os.Getenv("WEAVIATE_URL"); v != "" {
		u, err := url.Parse(v)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid WEAVIATE_URL %q", v)
		}
		c.Index.Scheme = u.Scheme
		c.Index.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid WEAVIATE_URL port %q: %w", p, err)
			}
			c.Index.HTTPPort = port
		}
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.LLM.EmbedModel == "" {
		c.LLM.EmbedModel = c.LLM.Model
	}
	if c.Index.Scheme == "" {
		c.Index.Scheme = "http"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "."
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 50
	}
}

// Validate reports configuration values no workflow can run with.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case BackendWeaviate, BackendPgvector:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	switch c.Ingest.Strategy {
	case StrategyHiRes, StrategyFast:
	default:
		return fmt.Errorf("unknown ingest strategy %q", c.Ingest.Strategy)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("index.top_k must be positive, got %d", c.Index.TopK)
	}
	if c.Retrieval.Concurrency <= 0 {
		return fmt.Errorf("retrieval.concurrency must be positive, got %d", c.Retrieval.Concurrency)
	}
	if c.Index.Class == "" || c.Index.TextKey == "" {
		return errors.New("index.class and index.text_key are required")
	}
	return nil
}

// OpenAIBaseURL returns the OpenAI-compatible API root of the Ollama server.
func (l LLMConfig) OpenAIBaseURL() string {
	base := strings.TrimRight(l.BaseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// HTTPAddr is the host:port of the index HTTP endpoint.
func (i IndexConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.HTTPPort)
}

// GRPCAddr is the host:port of the index gRPC endpoint.
func (i IndexConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.GRPCPort)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
