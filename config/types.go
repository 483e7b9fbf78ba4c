package config

// Config represents the complete configuration structure
type Config struct {
	Server       string        `mapstructure:"server"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	TelegramUser string        `mapstructure:"telegramuser"`
	Token        string        `mapstructure:"token"`
	Timeout      int           `mapstructure:"timeout"`
	Filters      FilterConfig  `mapstructure:"filters"`
	Status       StatusConfig  `mapstructure:"status"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// FilterConfig maps preset names to filter expressions usable with /find
type FilterConfig map[string]string

// StatusConfig controls the optional HTTP status endpoint
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
