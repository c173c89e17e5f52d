package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/expense-drafts/internal/domain/normalize"
)

// Extraction providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Extraction     ExtractionConfig     `mapstructure:"extraction"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Lark           LarkConfig           `mapstructure:"lark"`
	Normalization  NormalizationConfig  `mapstructure:"normalization"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Policy         PolicyConfig         `mapstructure:"policy"`
	Resilience     ResilienceConfig     `mapstructure:"resilience"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Logger         LoggerConfig         `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds receipt file storage configuration
type StorageConfig struct {
	ReceiptsDir string `mapstructure:"receipts_dir"`
}

// ExtractionConfig selects the vision provider
type ExtractionConfig struct {
	Provider    string `mapstructure:"provider"`
	MaxPDFPages int    `mapstructure:"max_pdf_pages"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration. Notifications are off without app_id.
type LarkConfig struct {
	AppID          string `mapstructure:"app_id"`
	AppSecret      string `mapstructure:"app_secret"`
	BaseURL        string `mapstructure:"base_url"`
	ReviewerChatID string `mapstructure:"reviewer_chat_id"`
}

// NormalizationConfig holds the merchant alias table
type NormalizationConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

// ClassificationConfig holds the ordered category keyword table
type ClassificationConfig struct {
	Categories []normalize.CategoryKeywords `mapstructure:"categories"`
}

// PolicyConfig lists the rules seeded at start-up, in evaluation order
type PolicyConfig struct {
	Rules []PolicyRuleConfig `mapstructure:"rules"`
}

// PolicyRuleConfig is one rule as written in the config file
type PolicyRuleConfig struct {
	Code        string   `mapstructure:"code"`
	Description string   `mapstructure:"description"`
	Limit       *float64 `mapstructure:"limit"`
	AppliesTo   struct {
		Category string `mapstructure:"category"`
		City     string `mapstructure:"city"`
	} `mapstructure:"applies_to"`
	Requires struct {
		Receipt         bool `mapstructure:"receipt"`
		ManagerApproval bool `mapstructure:"manager_approval"`
	} `mapstructure:"requires"`
}

// ResilienceConfig tunes the circuit breakers around AI providers
type ResilienceConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Normalization.Aliases) == 0 {
		cfg.Normalization.Aliases = normalize.DefaultAliases()
	}
	if len(cfg.Classification.Categories) == 0 {
		cfg.Classification.Categories = normalize.DefaultCategories()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("database.path", "data/expense_drafts.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.receipts_dir", "data/receipts")

	v.SetDefault("extraction.provider", ProviderOpenAI)
	v.SetDefault("extraction.max_pdf_pages", 2)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.vision_model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.timeout", 60*time.Second)

	v.SetDefault("resilience.max_failures", 5)
	v.SetDefault("resilience.open_timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional names of sensitive settings
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.reviewer_chat_id", "LARK_REVIEWER_CHAT_ID")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.ReceiptsDir == "" {
		return fmt.Errorf("storage.receipts_dir is required")
	}

	// categorization always goes through OpenAI
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	switch c.Extraction.Provider {
	case ProviderOpenAI:
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required when extraction.provider is gemini")
		}
	default:
		return fmt.Errorf("extraction.provider must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.Extraction.Provider)
	}
	if c.Extraction.MaxPDFPages < 1 {
		return fmt.Errorf("extraction.max_pdf_pages must be at least 1")
	}

	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	seen := make(map[string]bool, len(c.Policy.Rules))
	for i, r := range c.Policy.Rules {
		if strings.TrimSpace(r.Code) == "" {
			return fmt.Errorf("policy.rules[%d]: code is required", i)
		}
		if seen[r.Code] {
			return fmt.Errorf("policy.rules[%d]: duplicate code %s", i, r.Code)
		}
		seen[r.Code] = true
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// Document renders the rule as the JSON document the rule store keeps
func (r PolicyRuleConfig) Document() map[string]any {
	doc := map[string]any{
		"description": r.Description,
	}

	scope := map[string]any{}
	if r.AppliesTo.Category != "" {
		scope["category"] = r.AppliesTo.Category
	}
	if r.AppliesTo.City != "" {
		scope["city"] = r.AppliesTo.City
	}
	if len(scope) > 0 {
		doc["appliesTo"] = scope
	}

	if r.Limit != nil {
		doc["limit"] = *r.Limit
	}

	requires := map[string]any{}
	if r.Requires.Receipt {
		requires["receipt"] = true
	}
	if r.Requires.ManagerApproval {
		requires["managerApproval"] = true
	}
	if len(requires) > 0 {
		doc["requires"] = requires
	}
	return doc
}
