package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration shared by the backend server and the chat client.
type Config struct {
	Server    ServerConfig              `json:"server" yaml:"server"`
	Scraper   ScraperConfig             `json:"scraper" yaml:"scraper"`
	Provider  ProviderConfig            `json:"provider" yaml:"provider"`
	Worker    WorkerConfig              `json:"worker" yaml:"worker"`
	Redis     RedisConfig               `json:"redis" yaml:"redis"`
	Databases map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Client    ClientConfig              `json:"client" yaml:"client"`
}

type ServerConfig struct {
	Address        string   `json:"address" yaml:"address"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type ScraperConfig struct {
	// Format is "text" or "markdown".
	Format           string `json:"format" yaml:"format"`
	UserAgent        string `json:"user_agent" yaml:"user_agent"`
	TimeoutSeconds   int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxBodyBytes     int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
	MaxContentLength int    `json:"max_content_length" yaml:"max_content_length"`
	// CacheTTL is expressed in minutes; zero disables caching.
	CacheTTL int  `json:"cache_ttl" yaml:"cache_ttl"`
	UseRedis bool `json:"use_redis" yaml:"use_redis"`
}

type ProviderConfig struct {
	// Name selects the chat model backend: ollama, openai, claude or gemini.
	Name    string   `json:"name" yaml:"name"`
	BaseURL string   `json:"base_url" yaml:"base_url"`
	Model   string   `json:"model" yaml:"model"`
	Models  []string `json:"models" yaml:"models"`
	APIKey  string   `json:"api_key" yaml:"api_key"`
}

type WorkerConfig struct {
	MinWorkers int `json:"min_workers" yaml:"min_workers"`
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`
	QueueSize  int `json:"queue_size" yaml:"queue_size"`
	// IdleTimeout is expressed in seconds.
	IdleTimeout int `json:"worker_idle_timeout" yaml:"worker_idle_timeout"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type ClientConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	// Storage names the persister backend: sqlite3, mysql or redis.
	Storage string `json:"storage" yaml:"storage"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path. An empty path yields Default().
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.applyDefaults()
	if sqlite, ok := cfg.Databases["sqlite3"]; ok && sqlite.DSN != "" && !isMemoryDSN(sqlite.DSN) && !filepath.IsAbs(sqlite.DSN) {
		sqlite.DSN = filepath.Join(filepath.Dir(absPath), sqlite.DSN)
		cfg.Databases["sqlite3"] = sqlite
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Scraper.Format == "" {
		c.Scraper.Format = "text"
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = "scrapechat/1.0"
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		c.Scraper.TimeoutSeconds = 30
	}
	if c.Scraper.MaxBodyBytes <= 0 {
		c.Scraper.MaxBodyBytes = 5 << 20
	}
	if c.Scraper.MaxContentLength <= 0 {
		c.Scraper.MaxContentLength = 12000
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "ollama"
	}
	if c.Provider.BaseURL == "" && c.Provider.Name == "ollama" {
		c.Provider.BaseURL = "http://localhost:11434"
	}
	if c.Worker.MinWorkers <= 0 {
		c.Worker.MinWorkers = 1
	}
	if c.Worker.MaxWorkers < c.Worker.MinWorkers {
		c.Worker.MaxWorkers = 4
		if c.Worker.MaxWorkers < c.Worker.MinWorkers {
			c.Worker.MaxWorkers = c.Worker.MinWorkers
		}
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = 32
	}
	if c.Worker.IdleTimeout <= 0 {
		c.Worker.IdleTimeout = 60
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: defaultSQLitePath()}
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8000/api"
	}
	if c.Client.Storage == "" {
		c.Client.Storage = "sqlite3"
	}
}

// defaultSQLitePath returns ~/.local/share/scrapechat/state.db, or a relative file when HOME is unknown.
func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "scrapechat.db"
	}
	return filepath.Join(home, ".local", "share", "scrapechat", "state.db")
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}
