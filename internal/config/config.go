package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/willibrandon/dbprobe/internal/logger"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// DefaultQuery is the validation query sent when none is configured.
const DefaultQuery = "SELECT 1"

// Config represents the root configuration structure
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Probe      ProbeConfig      `mapstructure:"probe" yaml:"probe"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Debug      bool             `mapstructure:"debug" yaml:"debug"`
}

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            string        `mapstructure:"port" yaml:"port"`
	Database        string        `mapstructure:"database" yaml:"database"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password,omitempty"`
	PasswordCommand string        `mapstructure:"password_command" yaml:"password_command,omitempty"`
	SSLMode         string        `mapstructure:"sslmode" yaml:"sslmode"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ProbeConfig controls what is sent and how often.
type ProbeConfig struct {
	Query    string        `mapstructure:"query" yaml:"query"`
	Count    int           `mapstructure:"count" yaml:"count"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Strict makes an operational failure exit non-zero.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// HistoryConfig holds probe history settings.
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Path      string        `mapstructure:"path" yaml:"path"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// LoadOptions selects the sources Load reads in addition to defaults and
// DBPROBE_* environment variables.
type LoadOptions struct {
	// ConfigPath is an explicit config file. Empty searches default locations.
	ConfigPath string
	// EnvFile is a dotenv file loaded into the process environment first.
	EnvFile string
	// Flags are bound over every other source when set on the command line.
	Flags *pflag.FlagSet
	// SkipValidation returns the merged configuration without validating the
	// connection settings, for commands that never connect.
	SkipValidation bool
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"driver":           "connection.driver",
	"host":             "connection.host",
	"port":             "connection.port",
	"database":         "connection.database",
	"user":             "connection.user",
	"password-command": "connection.password_command",
	"sslmode":          "connection.sslmode",
	"connect-timeout":  "connection.connect_timeout",
	"query":            "probe.query",
	"count":            "probe.count",
	"interval":         "probe.interval",
	"strict":           "probe.strict",
	"record":           "history.enabled",
	"debug":            "debug",
}

// Load loads configuration from defaults, config file, environment and flags,
// then validates it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		// godotenv never overrides variables already present in the environment
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("error loading env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("DBPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyDefaults(v)

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Platform-specific config directories
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "dbprobe"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dbprobe"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	normalize(&cfg)

	if opts.SkipValidation {
		return &cfg, nil
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NormalizeDriver maps driver aliases onto the canonical driver names.
func NormalizeDriver(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres, true
	case "mysql", "mariadb":
		return DriverMySQL, true
	case "sqlite", "sqlite3":
		return DriverSQLite, true
	default:
		return name, false
	}
}

// DefaultPort returns the conventional server port for a driver, or "" for
// file-based drivers.
func DefaultPort(driver string) string {
	switch driver {
	case DriverPostgres:
		return "5432"
	case DriverMySQL:
		return "3306"
	default:
		return ""
	}
}

func normalize(cfg *Config) {
	if d, ok := NormalizeDriver(cfg.Connection.Driver); ok {
		cfg.Connection.Driver = d
	}
	if cfg.Connection.Port == "" {
		cfg.Connection.Port = DefaultPort(cfg.Connection.Driver)
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = logger.DefaultLogPath()
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath()
	}
}

// ValidateConfig validates the configuration values
func ValidateConfig(cfg *Config) error {
	conn := cfg.Connection

	driver, ok := NormalizeDriver(conn.Driver)
	if !ok {
		return fmt.Errorf("connection.driver must be one of: %v, got %q",
			[]string{DriverPostgres, DriverMySQL, DriverSQLite}, conn.Driver)
	}

	if conn.Database == "" {
		return fmt.Errorf("connection.database cannot be empty")
	}

	if driver != DriverSQLite {
		if conn.Host == "" {
			return fmt.Errorf("connection.host cannot be empty")
		}
		if conn.User == "" {
			return fmt.Errorf("connection.user cannot be empty")
		}
		port, err := strconv.Atoi(conn.Port)
		if err != nil {
			return fmt.Errorf("connection.port must be a number, got %q", conn.Port)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("connection.port must be between 1 and 65535, got %d", port)
		}
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	validMode := false
	for _, mode := range validSSLModes {
		if conn.SSLMode == mode {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("connection.sslmode must be one of: %v, got %s", validSSLModes, conn.SSLMode)
	}

	if conn.ConnectTimeout < 0 {
		return fmt.Errorf("connection.connect_timeout cannot be negative, got %v", conn.ConnectTimeout)
	}

	if strings.TrimSpace(cfg.Probe.Query) == "" {
		return fmt.Errorf("probe.query cannot be empty")
	}
	if cfg.Probe.Count < 1 {
		return fmt.Errorf("probe.count must be >= 1, got %d", cfg.Probe.Count)
	}
	if cfg.Probe.Interval < 0 {
		return fmt.Errorf("probe.interval cannot be negative, got %v", cfg.Probe.Interval)
	}

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if cfg.History.Retention < 0 {
		return fmt.Errorf("history.retention cannot be negative, got %v", cfg.History.Retention)
	}

	return nil
}

// Redacted returns a copy of cfg safe to print.
func (c Config) Redacted() Config {
	if c.Connection.Password != "" {
		c.Connection.Password = "xxxxx"
	}
	return c
}

func defaultHistoryPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".config", "dbprobe", "history.db")
}

// applyDefaults sets default configuration values. Credentials and the
// database name have no defaults.
func applyDefaults(v *viper.Viper) {
	// Connection defaults
	v.SetDefault("connection.driver", DriverPostgres)
	v.SetDefault("connection.host", "localhost")
	v.SetDefault("connection.port", "")
	v.SetDefault("connection.database", "")
	v.SetDefault("connection.user", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("connection.password_command", "")
	v.SetDefault("connection.sslmode", "prefer")
	v.SetDefault("connection.connect_timeout", "0s")

	// Probe defaults
	v.SetDefault("probe.query", DefaultQuery)
	v.SetDefault("probe.count", 1)
	v.SetDefault("probe.interval", "1s")
	v.SetDefault("probe.strict", false)

	// Log defaults
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention", "720h")

	v.SetDefault("debug", false)
}
