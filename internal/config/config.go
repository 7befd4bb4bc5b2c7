package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Logging   Logging   `mapstructure:"logging"`
	Storage   Storage   `mapstructure:"storage"`
	Minio     Minio     `mapstructure:"minio"`
	Store     Store     `mapstructure:"store"`
	Database  Database  `mapstructure:"database"`
	Watermark Watermark `mapstructure:"watermark"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Retry     Retry     `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort  string `mapstructure:"http_port"`   // HTTP port to listen on
	MaxBodyMB int    `mapstructure:"max_body_mb"` // Upper bound for media posted to process endpoints
}

// Logging controls the global log level.
type Logging struct {
	Level string `mapstructure:"level"`
}

// Storage holds local directories. Empty sub-directories are derived from DataDir.
type Storage struct {
	DataDir   string `mapstructure:"data_dir"`
	AssetsDir string `mapstructure:"assets_dir"`
	ConfigDir string `mapstructure:"config_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	Backend   string `mapstructure:"backend"` // local or minio
}

// Minio holds configuration for the S3-compatible asset backend.
type Minio struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Store selects where group configs are persisted.
type Store struct {
	Backend string `mapstructure:"backend"` // file or postgres
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Watermark holds processing limits and external tool locations.
type Watermark struct {
	FFmpegPath              string `mapstructure:"ffmpeg_path"`
	FontPath                string `mapstructure:"font_path"`
	MaxUploadMB             int    `mapstructure:"max_upload_mb"`
	MaxConcurrentTranscodes int    `mapstructure:"max_concurrent_transcodes"`
}

// Kafka holds configuration for the relay topics.
type Kafka struct {
	Enabled       bool     `mapstructure:"enabled"`
	GroupID       string   `mapstructure:"group_id"`       // Consumer group ID
	InboundTopic  string   `mapstructure:"inbound_topic"`  // messages to watermark
	OutboundTopic string   `mapstructure:"outbound_topic"` // processed messages for delivery
	Brokers       []string `mapstructure:"brokers"`        // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// setDefaults registers a default for every key so the service starts with an empty file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.max_body_mb", 512)
	v.SetDefault("logging.level", "info")

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("store.backend", "file")

	v.SetDefault("minio.bucket_name", "watermarks")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("watermark.ffmpeg_path", "ffmpeg")
	v.SetDefault("watermark.max_upload_mb", 100)
	v.SetDefault("watermark.max_concurrent_transcodes", 2)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.group_id", "watermark-relay")
	v.SetDefault("kafka.inbound_topic", "relay.inbound")
	v.SetDefault("kafka.outbound_topic", "relay.outbound")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 500*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds critical environment variables to Viper keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.http_port":      "HTTP_PORT",
		"logging.level":         "LOG_LEVEL",
		"storage.data_dir":      "DATA_DIR",
		"watermark.ffmpeg_path": "FFMPEG_PATH",
		"database.master.host":  "DB_HOST",
		"database.master.port":  "DB_PORT",
		"database.master.user":  "DB_USER",
		"database.master.pass":  "DB_PASSWORD",
		"database.master.name":  "DB_NAME",
		"minio.access_key":      "MINIO_ACCESS_KEY",
		"minio.secret_key":      "MINIO_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the YAML file at path, applies environment overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.resolve()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be loaded or is invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

func (s *Storage) resolve() {
	if s.AssetsDir == "" {
		s.AssetsDir = filepath.Join(s.DataDir, "assets")
	}
	if s.ConfigDir == "" {
		s.ConfigDir = filepath.Join(s.DataDir, "config")
	}
	if s.TempDir == "" {
		s.TempDir = filepath.Join(s.DataDir, "temp")
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.backend must be local or minio, got %q", c.Storage.Backend)
	}

	switch c.Store.Backend {
	case "file", "postgres":
	default:
		return fmt.Errorf("store.backend must be file or postgres, got %q", c.Store.Backend)
	}

	if c.Storage.Backend == "minio" && c.Minio.Endpoint == "" {
		return errors.New("minio.endpoint is required for the minio backend")
	}

	if c.Watermark.MaxUploadMB <= 0 {
		return errors.New("watermark.max_upload_mb must be positive")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}

	return nil
}
