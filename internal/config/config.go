// Package config loads taskeroo settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration. Every key can also be
// set through an upper-cased environment variable of the same name
// (e.g. EMAIL_BODY_TRUNCATION_LENGTH).
type Config struct {
	DBPath              string   `mapstructure:"db_path"`
	KeywordsPath        string   `mapstructure:"keywords_path"`
	BodyTruncateLength  int      `mapstructure:"email_body_truncation_length"`
	TruncationIndicator string   `mapstructure:"truncation_indicator"`
	MaxFetchEmails      int      `mapstructure:"max_fetch_emails"`
	CredentialsPath     string   `mapstructure:"credentials_path"`
	TokenPath           string   `mapstructure:"token_path"`
	TokenStore          string   `mapstructure:"token_store"`
	KeyringDir          string   `mapstructure:"keyring_dir"`
	LogLevel            string   `mapstructure:"log_level"`
	HTTPAddr            string   `mapstructure:"http_addr"`
	CORSOrigins         []string `mapstructure:"cors_allowed_origins"`
}

// Token store backends.
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

var defaults = map[string]any{
	"db_path":                      "taskeroo.db",
	"keywords_path":                "email_keywords.json",
	"email_body_truncation_length": 1000,
	"truncation_indicator":         "... [truncated]",
	"max_fetch_emails":             25,
	"credentials_path":             "credentials.json",
	"token_path":                   "token.json",
	"token_store":                  TokenStoreFile,
	"keyring_dir":                  "~/.config/taskeroo/keyring",
	"log_level":                    "info",
	"http_addr":                    ":8000",
	"cors_allowed_origins":         []string{"http://localhost:8501"},
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		DBPath:              "taskeroo.db",
		KeywordsPath:        "email_keywords.json",
		BodyTruncateLength:  1000,
		TruncationIndicator: "... [truncated]",
		MaxFetchEmails:      25,
		CredentialsPath:     "credentials.json",
		TokenPath:           "token.json",
		TokenStore:          TokenStoreFile,
		KeyringDir:          "~/.config/taskeroo/keyring",
		LogLevel:            "info",
		HTTPAddr:            ":8000",
		CORSOrigins:         []string{"http://localhost:8501"},
	}
}

// Load reads configuration from path (YAML) and the environment. An empty or
// missing path yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
		// Bind explicitly so Unmarshal sees env values for keys absent from the file.
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile exports the KEY=value pairs of a dotenv file into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading env file %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.BodyTruncateLength <= 0 {
		return fmt.Errorf("email_body_truncation_length must be positive, got %d", c.BodyTruncateLength)
	}
	if c.MaxFetchEmails <= 0 {
		return fmt.Errorf("max_fetch_emails must be positive, got %d", c.MaxFetchEmails)
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("token_store must be %q or %q, got %q", TokenStoreFile, TokenStoreKeyring, c.TokenStore)
	}
	return nil
}
