// Package config loads application configuration from config.yaml and
// REALITY_-prefixed environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Filesystem  FilesystemConfig  `yaml:"filesystem" mapstructure:"filesystem"`
	VCS         VCSConfig         `yaml:"vcs" mapstructure:"vcs"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Deployment  DeploymentConfig  `yaml:"deployment" mapstructure:"deployment"`
	Integration IntegrationConfig `yaml:"integration" mapstructure:"integration"`
	TaskTracker TaskTrackerConfig `yaml:"task_tracker" mapstructure:"task_tracker"`
	Trust       TrustConfig       `yaml:"trust" mapstructure:"trust"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the history/baseline database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ReportConfig configures where the latest report is written.
type ReportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CacheConfig configures the last-known-good probe cache.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// FilesystemConfig configures the filesystem checker.
type FilesystemConfig struct {
	Root          string   `yaml:"root" mapstructure:"root"`
	RequiredFiles []string `yaml:"required_files" mapstructure:"required_files"`
}

// VCSConfig configures the version-control checker.
type VCSConfig struct {
	RepoPath string `yaml:"repo_path" mapstructure:"repo_path"`
}

// DatabaseConfig holds Supabase credentials for the database checker.
type DatabaseConfig struct {
	URL            string   `yaml:"url" mapstructure:"url"`
	Key            string   `yaml:"key" mapstructure:"key"`
	ExpectedTables []string `yaml:"expected_tables" mapstructure:"expected_tables"`
}

// DeploymentConfig configures the deployment checker.
type DeploymentConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	ExpectStatus int    `yaml:"expect_status" mapstructure:"expect_status"`
}

// IntegrationConfig configures the integration webhook checker.
type IntegrationConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// TaskTrackerConfig holds Notion credentials for the task-tracker checker.
type TaskTrackerConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// TrustConfig holds the ordered trust hierarchy, most authoritative first.
// An empty list falls back to the built-in default ordering.
type TrustConfig struct {
	Hierarchy []string `yaml:"hierarchy" mapstructure:"hierarchy"`
}

// ServerConfig configures the report server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("REALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", ".reality/history.db")
	v.SetDefault("report.dir", ".reality")
	v.SetDefault("cache.dir", ".reality/cache")
	v.SetDefault("cache.ttl_hours", 1)
	v.SetDefault("filesystem.root", ".")
	v.SetDefault("vcs.repo_path", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Credentials and probe targets default empty so environment-only
	// deployments still bind (viper only unmarshals keys it knows about).
	v.SetDefault("store.database_url", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.key", "")
	v.SetDefault("deployment.url", "")
	v.SetDefault("deployment.expect_status", 0)
	v.SetDefault("integration.webhook_url", "")
	v.SetDefault("task_tracker.token", "")
	v.SetDefault("task_tracker.database_id", "")

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
