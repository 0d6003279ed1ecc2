package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Directory DirectoryConfig `mapstructure:"directory"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
	SyncPerHour       int `mapstructure:"sync_per_hour"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type SecretsConfig struct {
	// Key is a 32-byte hex-encoded master key for encrypting provider
	// credentials at rest.
	Key string `mapstructure:"key"`
}

type DirectoryConfig struct {
	// GraphURL is the base URL of the identity provider's directory API.
	GraphURL string `mapstructure:"graph_url"`
	// TokenURL is a template for the token endpoint; %s is the tenant id.
	TokenURL      string        `mapstructure:"token_url"`
	GroupPageSize int           `mapstructure:"group_page_size"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	// SyncLease bounds how long a crashed run can hold the per-org sync
	// guard before another run may take it over.
	SyncLease time.Duration `mapstructure:"sync_lease"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("directory.graph_url", "https://graph.microsoft.com/v1.0")
	viper.SetDefault("directory.token_url", "https://login.microsoftonline.com/%s/oauth2/v2.0/token")
	viper.SetDefault("directory.group_page_size", 100)
	viper.SetDefault("directory.http_timeout", 30*time.Second)
	viper.SetDefault("directory.sync_lease", 15*time.Minute)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
