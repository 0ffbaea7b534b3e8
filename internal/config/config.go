package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env        string           `yaml:"env"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Ingest     IngestConfig     `yaml:"ingest"`
	PDF        PDFConfig        `yaml:"pdf"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Publisher  PublisherConfig  `yaml:"publisher"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the shared batch lock when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type IngestConfig struct {
	Schedule     string   `yaml:"schedule"`
	Categories   []string `yaml:"categories"`
	LookbackDays int      `yaml:"lookback_days"`
	MaxResults   int      `yaml:"max_results"`
	BaseURL      string   `yaml:"base_url"`
}

type PDFConfig struct {
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxBytes    int64         `yaml:"max_bytes"`
	MaxRetries  int           `yaml:"max_retries"`
}

type SummarizerConfig struct {
	Type             string        `yaml:"type"`
	Model            string        `yaml:"model"`
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      *float64      `yaml:"temperature"`
	MaxCharsPerChunk int           `yaml:"max_chars_per_chunk"`
	Timeout          time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	Schedule    string `yaml:"schedule"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	RunOnStart  bool   `yaml:"run_on_start"`
}

type PublisherConfig struct {
	Type    string        `yaml:"type"`
	Email   EmailConfig   `yaml:"email"`
	Discord DiscordConfig `yaml:"discord"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

const (
	DefaultUserAgent   = "ResearchTLDR/1.0 (+https://researchtldr.com)"
	DefaultTemperature = 0.2
)

// IsProduction reports whether env is set to production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Temp returns the configured sampling temperature or the default.
func (c SummarizerConfig) Temp() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.Server.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Server.JWTSecret = "dev-secret"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "researchtldr.db"
	}

	if cfg.Ingest.Schedule == "" {
		cfg.Ingest.Schedule = "0 */6 * * *"
	}
	if cfg.Ingest.LookbackDays == 0 {
		cfg.Ingest.LookbackDays = 3
	}
	if cfg.Ingest.MaxResults == 0 {
		cfg.Ingest.MaxResults = 100
	}

	if cfg.PDF.UserAgent == "" {
		cfg.PDF.UserAgent = DefaultUserAgent
	}
	if cfg.PDF.Timeout == 0 {
		cfg.PDF.Timeout = 60 * time.Second
	}
	if cfg.PDF.MinInterval == 0 {
		cfg.PDF.MinInterval = 3 * time.Second
	}
	if cfg.PDF.MaxBytes == 0 {
		cfg.PDF.MaxBytes = 100 << 20
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "openai"
	}
	if cfg.Summarizer.Model == "" {
		switch cfg.Summarizer.Type {
		case "anthropic":
			cfg.Summarizer.Model = "claude-sonnet-4-20250514"
		case "wordcount":
			cfg.Summarizer.Model = "wordcount-v1"
		default:
			cfg.Summarizer.Model = "gpt-4o-mini"
		}
	}
	if cfg.Summarizer.MaxTokens == 0 {
		cfg.Summarizer.MaxTokens = 4096
	}
	if cfg.Summarizer.MaxCharsPerChunk == 0 {
		cfg.Summarizer.MaxCharsPerChunk = 6000
	}
	if cfg.Summarizer.Timeout == 0 {
		cfg.Summarizer.Timeout = 120 * time.Second
	}

	if cfg.Pipeline.Schedule == "" {
		cfg.Pipeline.Schedule = "*/30 * * * *"
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 10
	}
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = 1
	}

	if cfg.Publisher.Type == "" {
		cfg.Publisher.Type = "none"
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
}

func validate(cfg *Config) error {
	switch cfg.Env {
	case "development", "production", "test":
	default:
		return fmt.Errorf("config: unsupported env %q (supported: development, production, test)", cfg.Env)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: unsupported log.format %q (supported: console, json)", cfg.Log.Format)
	}
	if cfg.IsProduction() && cfg.Server.JWTSecret == "" {
		return fmt.Errorf("config: server.jwt_secret is required in production (set SESSION_SECRET env var)")
	}

	switch cfg.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q (supported: sqlite, mysql)", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("config: database.dsn is required for %s", cfg.Database.Driver)
	}

	if cfg.Ingest.LookbackDays < 0 || cfg.Ingest.MaxResults < 0 {
		return fmt.Errorf("config: ingest.lookback_days and ingest.max_results must not be negative")
	}
	if cfg.PDF.MaxRetries < 0 {
		return fmt.Errorf("config: pdf.max_retries must not be negative")
	}

	switch cfg.Summarizer.Type {
	case "openai", "anthropic":
		if cfg.Summarizer.APIKey == "" {
			return fmt.Errorf("config: summarizer.api_key is required for %s (set OPENAI_API_KEY or ANTHROPIC_API_KEY env var)", cfg.Summarizer.Type)
		}
	case "wordcount":
	default:
		return fmt.Errorf("config: unsupported summarizer type %q (supported: openai, anthropic, wordcount)", cfg.Summarizer.Type)
	}
	if cfg.Summarizer.MaxCharsPerChunk < 0 {
		return fmt.Errorf("config: summarizer.max_chars_per_chunk must not be negative")
	}

	if cfg.Pipeline.BatchSize < 0 {
		return fmt.Errorf("config: pipeline.batch_size must not be negative")
	}
	if cfg.Pipeline.Concurrency < 1 {
		return fmt.Errorf("config: pipeline.concurrency must be at least 1")
	}

	switch cfg.Publisher.Type {
	case "none", "stdout", "email", "web", "discord":
	default:
		return fmt.Errorf("config: unsupported publisher type %q (supported: none, stdout, email, web, discord)", cfg.Publisher.Type)
	}
	if cfg.Publisher.Type == "discord" && cfg.Publisher.Discord.WebhookURL == "" {
		return fmt.Errorf("config: publisher.discord.webhook_url is required for discord publisher")
	}
	if cfg.Publisher.Type == "email" {
		if cfg.Publisher.Email.SMTPHost == "" {
			return fmt.Errorf("config: publisher.email.smtp_host is required for email publisher")
		}
		if len(cfg.Publisher.Email.To) == 0 {
			return fmt.Errorf("config: publisher.email.to is required for email publisher")
		}
		if cfg.Publisher.Email.From == "" {
			return fmt.Errorf("config: publisher.email.from is required for email publisher")
		}
	}
	return nil
}

// Load reads the .env file next to path (if any) into the environment, then
// reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
