package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Labeling LabelingConfig `yaml:"labeling" mapstructure:"labeling"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	PoolSize         int    `yaml:"pool_size" mapstructure:"pool_size"`
	MaxOverflow      int    `yaml:"max_overflow" mapstructure:"max_overflow"`
	ConnLifetimeSecs int    `yaml:"conn_lifetime_secs" mapstructure:"conn_lifetime_secs"`
}

// ConnLifetime returns the connection recycle interval.
func (s StoreConfig) ConnLifetime() time.Duration {
	return time.Duration(s.ConnLifetimeSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	UploadDir   string   `yaml:"upload_dir" mapstructure:"upload_dir"`
	ExportDir   string   `yaml:"export_dir" mapstructure:"export_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MaxUploadBytes returns the upload size cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// IngestConfig configures file imports and task tracking.
type IngestConfig struct {
	ChunkSize         int `yaml:"chunk_size" mapstructure:"chunk_size"`
	RetentionSecs     int `yaml:"retention_secs" mapstructure:"retention_secs"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
}

// Retention returns how long finished import tasks stay visible.
func (i IngestConfig) Retention() time.Duration {
	return time.Duration(i.RetentionSecs) * time.Second
}

// SweepInterval returns how often expired import tasks are reclaimed.
func (i IngestConfig) SweepInterval() time.Duration {
	return time.Duration(i.SweepIntervalSecs) * time.Second
}

// CacheConfig configures the option cache.
type CacheConfig struct {
	OptionsTTLSecs int `yaml:"options_ttl_secs" mapstructure:"options_ttl_secs"`
	AuthTTLSecs    int `yaml:"auth_ttl_secs" mapstructure:"auth_ttl_secs"`
}

// OptionsTTL returns the option cache entry lifetime.
func (c CacheConfig) OptionsTTL() time.Duration {
	return time.Duration(c.OptionsTTLSecs) * time.Second
}

// AuthTTL returns how long a verified login is reused before its password
// is checked again. Zero checks every request.
func (c CacheConfig) AuthTTL() time.Duration {
	return time.Duration(c.AuthTTLSecs) * time.Second
}

// LabelingConfig configures listing and option lookups.
type LabelingConfig struct {
	PageSize     int `yaml:"page_size" mapstructure:"page_size"`
	OptionsLimit int `yaml:"options_limit" mapstructure:"options_limit"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LABELER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool_size", 10)
	v.SetDefault("store.max_overflow", 20)
	v.SetDefault("store.conn_lifetime_secs", 3600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 500)
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.export_dir", "exports")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("ingest.chunk_size", 5000)
	v.SetDefault("ingest.retention_secs", 3600)
	v.SetDefault("ingest.sweep_interval_secs", 600)
	v.SetDefault("cache.options_ttl_secs", 600)
	v.SetDefault("cache.auth_ttl_secs", 60)
	v.SetDefault("labeling.page_size", 50)
	v.SetDefault("labeling.options_limit", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the values a command mode depends on. Every mode needs a
// reachable store; "serve" additionally needs a listen port and upload cap.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Store.PoolSize <= 0 {
		problems = append(problems, "store.pool_size must be > 0")
	}
	if c.Store.MaxOverflow < 0 {
		problems = append(problems, "store.max_overflow must be >= 0")
	}
	if c.Ingest.ChunkSize <= 0 {
		problems = append(problems, "ingest.chunk_size must be > 0")
	}
	if c.Labeling.PageSize <= 0 {
		problems = append(problems, "labeling.page_size must be > 0")
	}
	if c.Labeling.OptionsLimit <= 0 {
		problems = append(problems, "labeling.options_limit must be > 0")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
