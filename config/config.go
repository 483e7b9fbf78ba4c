package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RequiredKeys lists the keys that must be present in every config file
var RequiredKeys = []string{"Server", "Username", "Password", "TelegramUser", "Token"}

// MissingKeyError is returned when a required key is absent from the config
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s not specified in config file", e.Key)
}

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("kyubik")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")

		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kyubik"))
		}
		v.AddConfigPath("/etc/kyubik/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("cannot parse config file: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, key := range RequiredKeys {
		if !v.IsSet(key) {
			return nil, &MissingKeyError{Key: key}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 30)

	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen", "127.0.0.1:8089")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		return fmt.Errorf("server must be an http(s) URL: %q", cfg.Server)
	}

	if strings.TrimPrefix(cfg.TelegramUser, "@") == "" {
		return fmt.Errorf("telegram user must not be empty")
	}

	if cfg.Token == "" {
		return fmt.Errorf("token must not be empty")
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %d", cfg.Timeout)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.Status.Enabled && cfg.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when status is enabled")
	}

	return nil
}
