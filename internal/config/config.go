package config

import (
	_ "embed"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Website renderers.
const (
	RendererChrome = "chrome"
	RendererHTTP   = "http"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Discovery Discovery `yaml:"discovery"`
	Website   Website   `yaml:"website"`
	Social    Social    `yaml:"social"`
	Scoring   Scoring   `yaml:"scoring"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Database  Database  `yaml:"database"`
	Niches    Niches    `yaml:"niches"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Discovery struct {
	Headless    bool          `yaml:"headless"`
	ChromePath  string        `yaml:"chrome_path"`
	Timeout     time.Duration `yaml:"timeout"`
	ScrollDelay time.Duration `yaml:"scroll_delay"`
	DetailDelay time.Duration `yaml:"detail_delay"`
}

type Website struct {
	Renderer       string        `yaml:"renderer"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	DNSPreflight   bool          `yaml:"dns_preflight"`
	Resolvers      []string      `yaml:"resolvers"`
	ProbeFeed      bool          `yaml:"probe_feed"`
	DetectLanguage bool          `yaml:"detect_language"`
}

type Social struct {
	BaseURL string        `yaml:"base_url"`
	AppID   string        `yaml:"app_id"`
	Timeout time.Duration `yaml:"timeout"`
}

type Scoring struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	OllamaURL string        `yaml:"ollama_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Pipeline struct {
	Workers             int           `yaml:"workers"`
	ThrottleConcurrency int           `yaml:"throttle_concurrency"`
	ThrottleInterval    time.Duration `yaml:"throttle_interval"`
	StageTimeout        time.Duration `yaml:"stage_timeout"`
	DiscoveryTimeout    time.Duration `yaml:"discovery_timeout"`
}

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSNEnv string `yaml:"dsn_env"`
}

type Niches struct {
	Path string `yaml:"path"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for bizscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "bizscout")
}

// DataDir returns the XDG data directory for bizscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "bizscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/bizscout/config.yaml > ./config.yaml.
// An empty path with a nil error means none exists and the embedded
// default applies.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", eris.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path loads the
// embedded default.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(DefaultConfigYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "reading config")
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Discovery: Discovery{
			Headless:    true,
			Timeout:     90 * time.Second,
			ScrollDelay: 2 * time.Second,
			DetailDelay: time.Second,
		},
		Website: Website{
			Renderer:       RendererChrome,
			Timeout:        30 * time.Second,
			MaxBodyBytes:   2 << 20,
			DNSPreflight:   true,
			ProbeFeed:      true,
			DetectLanguage: true,
		},
		Social: Social{
			BaseURL: "https://www.instagram.com",
			AppID:   "936619743392459",
			Timeout: 15 * time.Second,
		},
		Scoring: Scoring{
			Provider:  "groq",
			Model:     "llama-3.3-70b-versatile",
			BaseURL:   "https://api.groq.com/openai/v1",
			OllamaURL: "http://localhost:11434",
			APIKeyEnv: "GROQ_API_KEY",
			Timeout:   60 * time.Second,
		},
		Pipeline: Pipeline{
			Workers:             1,
			ThrottleConcurrency: 2,
			ThrottleInterval:    time.Second,
			StageTimeout:        2 * time.Minute,
			DiscoveryTimeout:    15 * time.Minute,
		},
		Database: Database{Driver: DriverSQLite, DSNEnv: "DATABASE_URL"},
		Server:   Server{Host: "127.0.0.1", Port: 5000},
		Logging:  Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrap(err, "parsing config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Website.Renderer = strings.ToLower(strings.TrimSpace(c.Website.Renderer))
	switch c.Website.Renderer {
	case RendererChrome, RendererHTTP:
	default:
		return eris.Errorf("website.renderer must be %q or %q, got %q", RendererChrome, RendererHTTP, c.Website.Renderer)
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return eris.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.Pipeline.Workers < 1 {
		c.Pipeline.Workers = 1
	}
	return nil
}

// DatabasePath returns the SQLite file from config or the XDG default.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DataDir(), "bizscout.db")
}

// DatabaseDSN returns the Postgres DSN from the configured environment
// variable.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSNEnv == "" {
		return ""
	}
	return os.Getenv(c.Database.DSNEnv)
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
