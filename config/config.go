package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agile_story_evaluator/critique"
	"agile_story_evaluator/guard"
)

// EnvPrefix prefixes every environment override, e.g. STORYEVAL_SERVER_ADDR.
const EnvPrefix = "STORYEVAL"

// Config 汇总服务、模型、限流和日志配置。
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Guard  GuardConfig  `mapstructure:"guard"`
	Logger LoggerConfig `mapstructure:"logger"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
}

// LLMConfig 的 API key 只从环境变量读取，不写入配置文件。
type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKeyEnv         string        `mapstructure:"api_key_env"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	APIKey string `mapstructure:"-"`
}

type GuardConfig struct {
	Captcha      bool          `mapstructure:"captcha"`
	MinuteLimit  int           `mapstructure:"minute_limit"`
	MinuteWindow time.Duration `mapstructure:"minute_window"`
	HourLimit    int           `mapstructure:"hour_limit"`
	HourWindow   time.Duration `mapstructure:"hour_window"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

var defaultKeyEnv = map[string]string{
	critique.ProviderOpenAI:   "OPENAI_API_KEY",
	critique.ProviderDeepSeek: "DEEPSEEK_API_KEY",
	critique.ProviderGemini:   "GEMINI_API_KEY",
}

// SetDefaults registers every key so env overrides work without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.trust_proxy", false)

	opts := critique.DefaultOptions()
	v.SetDefault("llm.provider", critique.ProviderOpenAI)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.max_tokens", opts.MaxTokens)
	v.SetDefault("llm.temperature", opts.Temperature)
	v.SetDefault("llm.timeout", opts.Timeout.String())
	v.SetDefault("llm.retry_backoff", opts.RetryBackoff.String())
	v.SetDefault("llm.requests_per_second", 0)

	v.SetDefault("guard.captcha", true)
	v.SetDefault("guard.minute_limit", 10)
	v.SetDefault("guard.minute_window", "1m")
	v.SetDefault("guard.hour_limit", 100)
	v.SetDefault("guard.hour_window", "1h")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "storyeval")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// Load reads the optional YAML file at path, applies STORYEVAL_* overrides
// and resolves the API key from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultKeyEnv[cfg.LLM.Provider]
	}
	if cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = strings.TrimSpace(os.Getenv(cfg.LLM.APIKeyEnv))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm.timeout must be positive")
	}
	if err := c.Guard.Guard().Validate(); err != nil {
		return fmt.Errorf("guard: %w", err)
	}
	return nil
}

// AIEnabled reports whether a critic can be built: the mock provider needs no key.
func (c LLMConfig) AIEnabled() bool {
	return c.Provider == critique.ProviderMock || c.APIKey != ""
}

func (c LLMConfig) Settings() critique.LLMSettings {
	return critique.LLMSettings{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
	}
}

func (c LLMConfig) Options() critique.Options {
	opts := critique.DefaultOptions()
	opts.MaxTokens = c.MaxTokens
	opts.Temperature = c.Temperature
	opts.Timeout = c.Timeout
	opts.RetryBackoff = c.RetryBackoff
	opts.RequestsPerSecond = c.RequestsPerSecond
	return opts
}

func (c GuardConfig) Guard() guard.Config {
	return guard.Config{
		Windows: []guard.Window{
			{Limit: c.MinuteLimit, Span: c.MinuteWindow},
			{Limit: c.HourLimit, Span: c.HourWindow},
		},
		Captcha: c.Captcha,
	}
}
