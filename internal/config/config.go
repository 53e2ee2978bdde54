package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingNewsAPIKey is returned by RequireNewsAPIKey when no key is set.
var ErrMissingNewsAPIKey = errors.New("missing NEWSAPI_KEY")

// Config holds all application configuration
type Config struct {
	News      News      `mapstructure:"news"`
	Prices    Prices    `mapstructure:"prices"`
	Fetch     Fetch     `mapstructure:"fetch"`
	LLM       LLM       `mapstructure:"llm"`
	Output    Output    `mapstructure:"output"`
	Sync      Sync      `mapstructure:"sync"`
	History   History   `mapstructure:"history"`
	Analytics Analytics `mapstructure:"analytics"`
	Serve     Serve     `mapstructure:"serve"`
	Logging   Logging   `mapstructure:"logging"`
}

// News holds NewsAPI configuration
type News struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	PageSize  int    `mapstructure:"page_size"`
	Language  string `mapstructure:"language"`
	StripHTML bool   `mapstructure:"strip_html"`
}

// Prices holds stooq configuration
type Prices struct {
	BaseURL    string        `mapstructure:"base_url"`
	Window     int           `mapstructure:"window"`
	MinSpacing time.Duration `mapstructure:"min_spacing"`
}

// Fetch holds the shared retry policy
type Fetch struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MinSpacing  time.Duration `mapstructure:"min_spacing"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLM holds enrichment provider configuration. An empty API key disables enrichment.
type LLM struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MinSpacing  time.Duration `mapstructure:"min_spacing"`
}

// Output holds output configuration
type Output struct {
	DataDir    string `mapstructure:"data_dir"`
	ThemesFile string `mapstructure:"themes_file"`
}

// Sync holds the site publishing target
type Sync struct {
	Target string `mapstructure:"target"`
}

// History holds the run history database. An empty DSN disables it.
type History struct {
	DSN string `mapstructure:"dsn"`
}

// Analytics holds product analytics configuration
type Analytics struct {
	PostHog PostHog `mapstructure:"posthog"`
}

// PostHog holds PostHog configuration
type PostHog struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// Serve holds preview server configuration
type Serve struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s Serve) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from .env, an optional YAML file and the environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".pulseboard")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("news.base_url", "https://newsapi.org/v2/everything")
	viper.SetDefault("news.page_size", 50)
	viper.SetDefault("news.language", "en")
	viper.SetDefault("news.strip_html", false)

	viper.SetDefault("prices.base_url", "https://stooq.com/q/d/l/")
	viper.SetDefault("prices.window", 35)
	viper.SetDefault("prices.min_spacing", "1100ms")

	viper.SetDefault("fetch.max_attempts", 4)
	viper.SetDefault("fetch.base_delay", "500ms")
	viper.SetDefault("fetch.max_delay", "8s")
	viper.SetDefault("fetch.min_spacing", "1100ms")
	viper.SetDefault("fetch.timeout", "30s")

	viper.SetDefault("llm.provider", "huggingface")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 900)
	viper.SetDefault("llm.min_spacing", "1300ms")

	viper.SetDefault("output.data_dir", "data")
	viper.SetDefault("output.themes_file", "themeTickers.json")
	viper.SetDefault("sync.target", filepath.Join("site", "public", "data"))

	viper.SetDefault("history.dsn", "")

	viper.SetDefault("analytics.posthog.enabled", false)
	viper.SetDefault("analytics.posthog.host", "https://us.i.posthog.com")

	viper.SetDefault("serve.host", "127.0.0.1")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("serve.cors_origins", []string{"*"})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("news.api_key", []string{
		"NEWSAPI_KEY",
		"NEWS_API_KEY",
	})

	bindEnvKeys("llm.provider", []string{
		"LLM_PROVIDER",
	})

	bindEnvKeys("history.dsn", []string{
		"HISTORY_DSN",
		"DATABASE_URL",
	})

	bindEnvKeys("analytics.posthog.api_key", []string{
		"POSTHOG_API_KEY",
	})
}

// bindProviderKeys picks the API key and model variables for the chosen provider.
// Called after the provider itself is known.
func bindProviderKeys(config *Config) {
	var keys, models []string
	switch strings.ToLower(config.LLM.Provider) {
	case "huggingface", "hf":
		keys = []string{"HUGGINGFACE_API_KEY", "HF_TOKEN"}
		models = []string{"HUGGINGFACE_MODEL"}
	case "gemini":
		keys = []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"}
		models = []string{"GEMINI_MODEL"}
	case "anthropic":
		keys = []string{"ANTHROPIC_API_KEY"}
		models = []string{"ANTHROPIC_MODEL"}
	}
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = firstEnv(keys)
	}
	if config.LLM.Model == "" {
		config.LLM.Model = firstEnv(models)
	}
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	if value := firstEnv(envKeys); value != "" {
		viper.Set(viperKey, value)
	}
}

func firstEnv(envKeys []string) string {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
	}
	return ""
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) {
	bindProviderKeys(config)

	config.Output.DataDir = expandPath(config.Output.DataDir)
	config.Output.ThemesFile = expandPath(config.Output.ThemesFile)
	config.Sync.Target = expandPath(config.Sync.Target)
	if !strings.Contains(config.History.DSN, "://") {
		config.History.DSN = expandPath(config.History.DSN)
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the configuration is usable. The NewsAPI key is
// checked separately by the commands that need it.
func validateConfig(config *Config) error {
	var errors []string

	switch strings.ToLower(config.LLM.Provider) {
	case "huggingface", "hf", "gemini", "anthropic":
	default:
		errors = append(errors, fmt.Sprintf("Unknown llm provider: %s. Supported: huggingface, gemini, anthropic", config.LLM.Provider))
	}

	durations := map[string]time.Duration{
		"prices.min_spacing": config.Prices.MinSpacing,
		"fetch.base_delay":   config.Fetch.BaseDelay,
		"fetch.max_delay":    config.Fetch.MaxDelay,
		"fetch.min_spacing":  config.Fetch.MinSpacing,
		"fetch.timeout":      config.Fetch.Timeout,
		"llm.min_spacing":    config.LLM.MinSpacing,
	}
	for key, d := range durations {
		if d < 0 {
			errors = append(errors, fmt.Sprintf("invalid duration for %s: %s", key, d))
		}
	}

	if config.Fetch.MaxAttempts < 1 {
		errors = append(errors, "fetch.max_attempts must be at least 1")
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if config.Analytics.PostHog.Enabled && config.Analytics.PostHog.APIKey == "" {
		errors = append(errors, "PostHog analytics requires an API key. Set POSTHOG_API_KEY")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireNewsAPIKey returns ErrMissingNewsAPIKey when the key is blank.
func (c *Config) RequireNewsAPIKey() error {
	if strings.TrimSpace(c.News.APIKey) == "" {
		return ErrMissingNewsAPIKey
	}
	return nil
}

// LLMEnabled reports whether an enrichment key is configured.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
