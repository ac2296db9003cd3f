package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFile is read from the working directory when no path is given
const DefaultFile = "codebrew.yaml"

// Config holds application configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Review ReviewConfig `mapstructure:"review"`
	GitHub GitHubConfig `mapstructure:"github"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
	Store  StoreConfig  `mapstructure:"store"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	GinMode         string        `mapstructure:"gin_mode"`
	QueueSize       int           `mapstructure:"queue_size"`
	Workers         int           `mapstructure:"workers"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	JobRetention    time.Duration `mapstructure:"job_retention"`
}

type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	CopilotModel string        `mapstructure:"copilot_model"`
	APIKey       string        `mapstructure:"api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Region       string        `mapstructure:"region"`
	Timeout      time.Duration `mapstructure:"timeout"`

	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryTransport   bool          `mapstructure:"retry_transport"`
	TransportBackoff time.Duration `mapstructure:"transport_backoff"`
}

type ReviewConfig struct {
	Schema       string `mapstructure:"schema"`
	Extension    string `mapstructure:"extension"`
	Instructions string `mapstructure:"instructions"`
}

type GitHubConfig struct {
	Token     string `mapstructure:"token"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type StoreConfig struct {
	SuggestionsDir string `mapstructure:"suggestions_dir"`
	AnalyticsDB    string `mapstructure:"analytics_db"`
	User           string `mapstructure:"user"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "debug",
			QueueSize:       100,
			Workers:         1,
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			JobRetention:    time.Hour,
		},
		LLM: LLMConfig{
			Provider:         "bedrock",
			CopilotModel:     "gpt-5-mini",
			Region:           "us-east-1",
			Timeout:          2 * time.Minute,
			MaxTokens:        1000,
			Temperature:      0.5,
			MaxAttempts:      3,
			TransportBackoff: 2 * time.Second,
		},
		Review: ReviewConfig{
			Schema:    "minimal",
			Extension: ".py",
		},
		GitHub: GitHubConfig{
			CacheSize: 256,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Store: StoreConfig{
			SuggestionsDir: "suggestions",
			AnalyticsDB:    "data/analytics.db",
		},
	}
}

// Well-known variables read in addition to CODEBREW_<SECTION>_<KEY>
var envAliases = map[string][]string{
	"server.port":           {"PORT"},
	"server.gin_mode":       {"GIN_MODE"},
	"server.webhook_secret": {"GITHUB_WEBHOOK_SECRET"},
	"llm.copilot_model":     {"COPILOT_MODEL"},
	"llm.api_key":           {"OPENAI_API_KEY"},
	"llm.base_url":          {"OPENAI_BASE_URL"},
	"llm.gemini_api_key":    {"GEMINI_API_KEY"},
	"llm.region":            {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"github.token":          {"GITHUB_TOKEN"},
	"smtp.host":             {"SMTP_SERVER"},
	"smtp.port":             {"SMTP_PORT"},
	"smtp.username":         {"SMTP_USERNAME"},
	"smtp.password":         {"SMTP_PASSWORD"},
}

// Load builds the configuration from defaults, a .env file, an optional YAML
// file and the environment, in increasing precedence. An empty path reads
// codebrew.yaml when it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix("codebrew")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{"CODEBREW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to load config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.gin_mode", d.Server.GinMode)
	v.SetDefault("server.queue_size", d.Server.QueueSize)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.webhook_secret", d.Server.WebhookSecret)
	v.SetDefault("server.job_retention", d.Server.JobRetention)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.copilot_model", d.LLM.CopilotModel)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.gemini_api_key", d.LLM.GeminiAPIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.region", d.LLM.Region)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_attempts", d.LLM.MaxAttempts)
	v.SetDefault("llm.retry_transport", d.LLM.RetryTransport)
	v.SetDefault("llm.transport_backoff", d.LLM.TransportBackoff)

	v.SetDefault("review.schema", d.Review.Schema)
	v.SetDefault("review.extension", d.Review.Extension)
	v.SetDefault("review.instructions", d.Review.Instructions)

	v.SetDefault("github.token", d.GitHub.Token)
	v.SetDefault("github.base_url", d.GitHub.BaseURL)
	v.SetDefault("github.cache_size", d.GitHub.CacheSize)

	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)

	v.SetDefault("store.suggestions_dir", d.Store.SuggestionsDir)
	v.SetDefault("store.analytics_db", d.Store.AnalyticsDB)
	v.SetDefault("store.user", d.Store.User)
}

// Validate rejects values no command could run with
func (c Config) Validate() error {
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be at least 1, got %d", c.LLM.MaxTokens)
	}
	if c.Server.Workers < 1 || c.Server.QueueSize < 1 {
		return fmt.Errorf("server.workers and server.queue_size must be positive")
	}
	if !strings.HasPrefix(c.Review.Extension, ".") {
		return fmt.Errorf("review.extension must start with a dot, got %q", c.Review.Extension)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for printing
func (c Config) Redacted() Config {
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.LLM.GeminiAPIKey = mask(c.LLM.GeminiAPIKey)
	c.GitHub.Token = mask(c.GitHub.Token)
	c.SMTP.Password = mask(c.SMTP.Password)
	c.Server.WebhookSecret = mask(c.Server.WebhookSecret)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
