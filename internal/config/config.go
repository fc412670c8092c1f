package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for coinpulse.
type Config struct {
	Telegram  Telegram  `yaml:"telegram"`
	CoinGecko CoinGecko `yaml:"coingecko"`
	Narrative Narrative `yaml:"narrative"`
	Refresh   Refresh   `yaml:"refresh"`
	Logging   Logging   `yaml:"logging"`
}

type Telegram struct {
	Token string `yaml:"token"`
	Debug bool   `yaml:"debug"`
}

type CoinGecko struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	DemoQuotesFile string        `yaml:"demo_quotes_file"`
}

// Narrative configures the LLM endpoint. The API key is only read from the
// environment.
type Narrative struct {
	APIKey  string        `yaml:"-"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type Refresh struct {
	Interval time.Duration `yaml:"interval"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CoinGecko: CoinGecko{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: 10 * time.Second,
		},
		Narrative: Narrative{
			Timeout: 60 * time.Second,
		},
		Refresh: Refresh{
			Interval: 120 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadDotEnv loads .env files into the process environment. A missing file
// is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load starts from Default, applies the YAML file at path when path is not
// empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Narrative.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		cfg.Refresh.Interval = d
	}
	return nil
}

// parseDuration accepts Go durations ("2m") or plain seconds ("120").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate rejects settings that cannot work. A missing OpenAI key is not an
// error: it only disables narratives.
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.CoinGecko.Timeout <= 0 {
		return fmt.Errorf("coingecko.timeout must be positive, got %s", c.CoinGecko.Timeout)
	}
	return nil
}
