/*-------------------------------------------------------------------------
 *
 * LATS Admin - Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Disabled marks a destination column that should not be written
const Disabled = "-"

// maxBindParams is PostgreSQL's limit on parameters in one statement
const maxBindParams = 65535

// Config represents the complete tool configuration
type Config struct {
	// PostgreSQL connection used for postgres destinations
	Database DatabaseConfig `yaml:"database"`

	// Supabase project used for the supabase destination
	Supabase SupabaseConfig `yaml:"supabase"`

	// Table layout at the destination
	Destination DestinationConfig `yaml:"destination"`

	// Batching, pacing and concurrency of the import pipeline
	Import ImportConfig `yaml:"import"`

	// Phone normalization rules
	Phone PhoneConfig `yaml:"phone"`

	// Retry policy for an unreachable destination
	Retry RetryConfig `yaml:"retry"`

	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"` // Takes precedence over the discrete fields
	Host             string `yaml:"host"`              // Database host (default: localhost)
	Port             int    `yaml:"port"`              // Database port (default: 5432)
	Database         string `yaml:"database"`          // Database name (default: postgres)
	User             string `yaml:"user"`              // Database user
	Password         string `yaml:"password"`          // Optional, pgx falls back to .pgpass
	SSLMode          string `yaml:"sslmode"`           // disable, require, verify-ca, verify-full (default: prefer)

	// Connection pool settings
	PoolMaxConns        int    `yaml:"pool_max_conns"`          // Maximum number of connections (default: 4)
	PoolMinConns        int    `yaml:"pool_min_conns"`          // Minimum number of connections (default: 0)
	PoolMaxConnIdleTime string `yaml:"pool_max_conn_idle_time"` // Max time a connection can be idle before being closed (default: 30m)
}

// SupabaseConfig holds the Supabase project settings
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	ServiceKey     string `yaml:"service_key"`      // Direct value, discouraged
	ServiceKeyFile string `yaml:"service_key_file"` // Path to a file holding the service role key
}

// ColumnMap names the destination column for each contact field. A value
// of "-" disables the field.
type ColumnMap struct {
	Phone    string `yaml:"phone"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Source   string `yaml:"source"`
	Metadata string `yaml:"metadata"`
}

// Enabled returns the columns that are written, in insert order
func (m ColumnMap) Enabled() []string {
	var cols []string
	for _, c := range []string{m.Phone, m.Name, m.Email, m.Source, m.Metadata} {
		if c != "" && c != Disabled {
			cols = append(cols, c)
		}
	}
	return cols
}

// DestinationConfig describes the customer table
type DestinationConfig struct {
	Table    string    `yaml:"table"`     // default: customers
	OrderBy  string    `yaml:"order_by"`  // stable order for backup and cleanup scans, default: id
	IDColumn string    `yaml:"id_column"` // row identity for name updates, default: id

	// Columns.Phone is the unique key used for lookups and conflicts
	Columns ColumnMap `yaml:"columns"`
}

// ImportConfig holds the pipeline tuning knobs
type ImportConfig struct {
	BatchSize       int           `yaml:"batch_size"`        // records per insert (default: 50)
	LookupBatchSize int           `yaml:"lookup_batch_size"` // keys per existence lookup (default: 500)
	Concurrency     int           `yaml:"concurrency"`       // batches in flight (default: 1)
	BatchDelay      time.Duration `yaml:"batch_delay"`       // minimum spacing between batch starts (default: 100ms)
	BatchTimeout    time.Duration `yaml:"batch_timeout"`     // upper bound for one batch write (default: 30s)
	DedupeNames     bool          `yaml:"dedupe_names"`      // collapse repeated name tokens (default: false)
	ErrorSampleSize int           `yaml:"error_sample_size"` // errors kept in the report (default: 20)
}

// PhoneConfig holds the phone normalization rules
type PhoneConfig struct {
	CountryCode         string `yaml:"country_code"`          // default: 255
	NationalLength      int    `yaml:"national_length"`       // trunk-prefixed length (default: 10)
	LocalLength         int    `yaml:"local_length"`          // subscriber length (default: 9)
	MinSubscriberDigits int    `yaml:"min_subscriber_digits"` // default: 9
}

// RetryConfig holds the backoff policy for unreachable destinations
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`     // default: 3
	InitialInterval time.Duration `yaml:"initial_interval"` // default: 500ms
	MaxInterval     time.Duration `yaml:"max_interval"`     // default: 5s
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: error)
	File  string `yaml:"file"`  // optional file that receives a copy of the log
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables, including .env files
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// If file was explicitly specified, error out
			if cliFlags.ConfigFileSet || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	if err := loadDotEnv(cliFlags.EnvFiles); err != nil {
		return nil, err
	}
	applyEnvironmentVariables(cfg)

	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	// .env files to load; missing files are skipped
	EnvFiles []string

	// Destination flags
	DatabaseURL    string
	DatabaseURLSet bool
	DBPassword     string
	DBPassSet      bool
	Table          string
	TableSet       bool

	// Import flags
	BatchSize          int
	BatchSizeSet       bool
	LookupBatchSize    int
	LookupBatchSizeSet bool
	Concurrency        int
	ConcurrencySet     bool
	BatchDelay         time.Duration
	BatchDelaySet      bool
	BatchTimeout       time.Duration
	BatchTimeoutSet    bool
	DedupeNames        bool
	DedupeNamesSet     bool

	// Logging flags
	LogLevel    string
	LogLevelSet bool
	LogFile     string
	LogFileSet  bool
}

// Defaults returns a configuration holding only the hard-coded defaults
func Defaults() *Config {
	return defaultConfig()
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:                "localhost",
			Port:                5432,
			Database:            "postgres",
			SSLMode:             "prefer",
			PoolMaxConns:        4,
			PoolMinConns:        0,
			PoolMaxConnIdleTime: "30m",
		},
		Destination: DestinationConfig{
			Table:    "customers",
			OrderBy:  "id",
			IDColumn: "id",
			Columns: ColumnMap{
				Phone:    "phone",
				Name:     "name",
				Email:    "email",
				Source:   "source",
				Metadata: "metadata",
			},
		},
		Import: ImportConfig{
			BatchSize:       50,
			LookupBatchSize: 500,
			Concurrency:     1,
			BatchDelay:      100 * time.Millisecond,
			BatchTimeout:    30 * time.Second,
			ErrorSampleSize: 20,
		},
		Phone: PhoneConfig{
			CountryCode:         "255",
			NationalLength:      10,
			LocalLength:         9,
			MinSubscriberDigits: 9,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "error",
		},
	}
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// mergeConfig merges source config into dest, only overriding non-zero values
func mergeConfig(dest, src *Config) {
	// Database
	mergeString(&dest.Database.ConnectionString, src.Database.ConnectionString)
	mergeString(&dest.Database.Host, src.Database.Host)
	mergeInt(&dest.Database.Port, src.Database.Port)
	mergeString(&dest.Database.Database, src.Database.Database)
	mergeString(&dest.Database.User, src.Database.User)
	mergeString(&dest.Database.Password, src.Database.Password)
	mergeString(&dest.Database.SSLMode, src.Database.SSLMode)
	mergeInt(&dest.Database.PoolMaxConns, src.Database.PoolMaxConns)
	mergeInt(&dest.Database.PoolMinConns, src.Database.PoolMinConns)
	mergeString(&dest.Database.PoolMaxConnIdleTime, src.Database.PoolMaxConnIdleTime)

	// Supabase
	mergeString(&dest.Supabase.URL, src.Supabase.URL)
	mergeString(&dest.Supabase.ServiceKey, src.Supabase.ServiceKey)
	mergeString(&dest.Supabase.ServiceKeyFile, src.Supabase.ServiceKeyFile)

	// Destination
	mergeString(&dest.Destination.Table, src.Destination.Table)
	mergeString(&dest.Destination.OrderBy, src.Destination.OrderBy)
	mergeString(&dest.Destination.IDColumn, src.Destination.IDColumn)
	mergeString(&dest.Destination.Columns.Phone, src.Destination.Columns.Phone)
	mergeString(&dest.Destination.Columns.Name, src.Destination.Columns.Name)
	mergeString(&dest.Destination.Columns.Email, src.Destination.Columns.Email)
	mergeString(&dest.Destination.Columns.Source, src.Destination.Columns.Source)
	mergeString(&dest.Destination.Columns.Metadata, src.Destination.Columns.Metadata)

	// Import
	mergeInt(&dest.Import.BatchSize, src.Import.BatchSize)
	mergeInt(&dest.Import.LookupBatchSize, src.Import.LookupBatchSize)
	mergeInt(&dest.Import.Concurrency, src.Import.Concurrency)
	if src.Import.BatchDelay != 0 {
		dest.Import.BatchDelay = src.Import.BatchDelay
	}
	if src.Import.BatchTimeout != 0 {
		dest.Import.BatchTimeout = src.Import.BatchTimeout
	}
	if src.Import.DedupeNames {
		dest.Import.DedupeNames = true
	}
	mergeInt(&dest.Import.ErrorSampleSize, src.Import.ErrorSampleSize)

	// Phone
	mergeString(&dest.Phone.CountryCode, src.Phone.CountryCode)
	mergeInt(&dest.Phone.NationalLength, src.Phone.NationalLength)
	mergeInt(&dest.Phone.LocalLength, src.Phone.LocalLength)
	mergeInt(&dest.Phone.MinSubscriberDigits, src.Phone.MinSubscriberDigits)

	// Retry
	mergeInt(&dest.Retry.MaxAttempts, src.Retry.MaxAttempts)
	if src.Retry.InitialInterval != 0 {
		dest.Retry.InitialInterval = src.Retry.InitialInterval
	}
	if src.Retry.MaxInterval != 0 {
		dest.Retry.MaxInterval = src.Retry.MaxInterval
	}

	// Logging
	mergeString(&dest.Logging.Level, src.Logging.Level)
	mergeString(&dest.Logging.File, src.Logging.File)
}

func mergeString(dest *string, src string) {
	if src != "" {
		*dest = src
	}
}

func mergeInt(dest *int, src int) {
	if src != 0 {
		*dest = src
	}
}

// loadDotEnv loads .env files into the process environment. Variables
// that are already set are not overwritten, so earlier files win.
func loadDotEnv(files []string) error {
	for _, file := range files {
		path := expandPath(file)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback sets a string config value from an environment variable,
// checking multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			*dest = intVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist
func applyEnvironmentVariables(cfg *Config) {
	// Database
	setStringFromEnvWithFallback(&cfg.Database.ConnectionString, "LATS_DATABASE_URL", "DATABASE_URL")
	setStringFromEnv(&cfg.Database.Host, "LATS_DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "LATS_DB_PORT")
	setStringFromEnv(&cfg.Database.Database, "LATS_DB_NAME")
	setStringFromEnv(&cfg.Database.User, "LATS_DB_USER")
	setStringFromEnv(&cfg.Database.Password, "LATS_DB_PASSWORD")
	setStringFromEnv(&cfg.Database.SSLMode, "LATS_DB_SSLMODE")

	// Also support standard PostgreSQL environment variables for convenience
	if cfg.Database.Host == "localhost" {
		setStringFromEnv(&cfg.Database.Host, "PGHOST")
	}
	if cfg.Database.Port == 5432 {
		setIntFromEnv(&cfg.Database.Port, "PGPORT")
	}
	if cfg.Database.Database == "postgres" {
		setStringFromEnv(&cfg.Database.Database, "PGDATABASE")
	}
	if cfg.Database.User == "" {
		setStringFromEnv(&cfg.Database.User, "PGUSER")
	}
	if cfg.Database.Password == "" {
		setStringFromEnv(&cfg.Database.Password, "PGPASSWORD")
	}
	if cfg.Database.SSLMode == "prefer" {
		setStringFromEnv(&cfg.Database.SSLMode, "PGSSLMODE")
	}

	// Supabase: env var > key file > direct config value
	setStringFromEnv(&cfg.Supabase.URL, "SUPABASE_URL")
	setStringFromEnvWithFallback(&cfg.Supabase.ServiceKey, "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY")
	if os.Getenv("SUPABASE_SERVICE_ROLE_KEY") == "" && os.Getenv("SUPABASE_SERVICE_KEY") == "" &&
		cfg.Supabase.ServiceKeyFile != "" {
		if key, err := readSecretFile(cfg.Supabase.ServiceKeyFile); err == nil && key != "" {
			cfg.Supabase.ServiceKey = key
		}
	}

	// Logging
	setStringFromEnv(&cfg.Logging.Level, "LATS_LOG_LEVEL")
	setStringFromEnv(&cfg.Logging.File, "LATS_LOG_FILE")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.DatabaseURLSet {
		cfg.Database.ConnectionString = flags.DatabaseURL
	}
	if flags.DBPassSet {
		cfg.Database.Password = flags.DBPassword
	}
	if flags.TableSet {
		cfg.Destination.Table = flags.Table
	}

	if flags.BatchSizeSet {
		cfg.Import.BatchSize = flags.BatchSize
	}
	if flags.LookupBatchSizeSet {
		cfg.Import.LookupBatchSize = flags.LookupBatchSize
	}
	if flags.ConcurrencySet {
		cfg.Import.Concurrency = flags.Concurrency
	}
	if flags.BatchDelaySet {
		cfg.Import.BatchDelay = flags.BatchDelay
	}
	if flags.BatchTimeoutSet {
		cfg.Import.BatchTimeout = flags.BatchTimeout
	}
	if flags.DedupeNamesSet {
		cfg.Import.DedupeNames = flags.DedupeNames
	}

	if flags.LogLevelSet {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.LogFileSet {
		cfg.Logging.File = flags.LogFile
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	imp := cfg.Import
	if imp.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be at least 1, got %d", imp.BatchSize)
	}
	if imp.LookupBatchSize < 1 {
		return fmt.Errorf("import.lookup_batch_size must be at least 1, got %d", imp.LookupBatchSize)
	}
	if imp.Concurrency < 1 {
		return fmt.Errorf("import.concurrency must be at least 1, got %d", imp.Concurrency)
	}
	if imp.BatchDelay < 0 {
		return fmt.Errorf("import.batch_delay must not be negative")
	}
	if imp.BatchTimeout <= 0 {
		return fmt.Errorf("import.batch_timeout must be positive")
	}
	if imp.ErrorSampleSize < 0 {
		return fmt.Errorf("import.error_sample_size must not be negative")
	}

	cols := cfg.Destination.Columns
	if cols.Phone == "" || cols.Phone == Disabled {
		return fmt.Errorf("destination.columns.phone cannot be disabled")
	}
	if cols.Name == "" || cols.Name == Disabled {
		return fmt.Errorf("destination.columns.name cannot be disabled")
	}
	if cfg.Destination.Table == "" {
		return fmt.Errorf("destination.table is required")
	}
	if n := len(cols.Enabled()); imp.BatchSize*n > maxBindParams {
		return fmt.Errorf("import.batch_size %d with %d columns exceeds the %d bind parameter limit",
			imp.BatchSize, n, maxBindParams)
	}
	if imp.LookupBatchSize > maxBindParams {
		return fmt.Errorf("import.lookup_batch_size must not exceed %d", maxBindParams)
	}

	ph := cfg.Phone
	if ph.CountryCode == "" || strings.Trim(ph.CountryCode, "0123456789") != "" {
		return fmt.Errorf("phone.country_code must be digits, got %q", ph.CountryCode)
	}
	if ph.LocalLength < 1 || ph.NationalLength <= ph.LocalLength {
		return fmt.Errorf("phone.national_length (%d) must be greater than phone.local_length (%d)",
			ph.NationalLength, ph.LocalLength)
	}
	if len(ph.CountryCode)+ph.LocalLength > 15 {
		return fmt.Errorf("phone.country_code plus phone.local_length exceeds 15 digits")
	}
	if ph.MinSubscriberDigits < 1 {
		return fmt.Errorf("phone.min_subscriber_digits must be at least 1")
	}

	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	if cfg.Database.PoolMaxConnIdleTime != "" {
		if _, err := time.ParseDuration(cfg.Database.PoolMaxConnIdleTime); err != nil {
			return fmt.Errorf("invalid database.pool_max_conn_idle_time: %w", err)
		}
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", cfg.Logging.Level)
	}

	return nil
}

// readSecretFile reads a key from a file, trimming whitespace. A missing
// file yields an empty key.
func readSecretFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	filePath = expandPath(filePath)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// expandPath expands a leading ~ to the home directory
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetDefaultConfigPath returns the first existing config file among the
// working directory, the user config directory and /etc/lats-admin
func GetDefaultConfigPath() string {
	candidates := []string{"lats-admin.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "lats-admin", "lats-admin.yaml"))
	}
	candidates = append(candidates, "/etc/lats-admin/lats-admin.yaml")

	for _, path := range candidates {
		if ConfigFileExists(path) {
			return path
		}
	}
	return candidates[0]
}

// BuildConnectionString returns connection_string when set, otherwise builds
// one from the discrete fields. It returns "" when neither a connection
// string nor a user is configured. If password is not set, pgx will
// automatically look it up from .pgpass file.
func (cfg *DatabaseConfig) BuildConnectionString() string {
	if cfg.ConnectionString != "" {
		if cfg.Password != "" {
			return withPassword(cfg.ConnectionString, cfg.Password)
		}
		return cfg.ConnectionString
	}
	if cfg.User == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(cfg.SSLMode)
	}

	return u.String()
}

// withPassword sets the password of a URL connection string that does
// not carry one
func withPassword(connStr, password string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil || u.Scheme == "" {
		return connStr
	}
	if _, ok := u.User.Password(); ok {
		return connStr
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}

// PoolIdleTime returns the parsed pool_max_conn_idle_time
func (cfg *DatabaseConfig) PoolIdleTime() time.Duration {
	d, err := time.ParseDuration(cfg.PoolMaxConnIdleTime)
	if err != nil {
		return 0
	}
	return d
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "********"
	}
	if out.Database.ConnectionString != "" {
		if u, err := url.Parse(out.Database.ConnectionString); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "********")
				out.Database.ConnectionString = u.String()
			}
		}
	}
	if out.Supabase.ServiceKey != "" {
		out.Supabase.ServiceKey = "********"
	}
	return &out
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(expandPath(path))
	return err == nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// The file may hold credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
