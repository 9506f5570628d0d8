/*-------------------------------------------------------------------------
 *
 * LATS Admin - Configuration Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets variables for the duration of a test
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lats-admin.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Import.BatchSize != 50 {
		t.Errorf("Expected default batch size 50, got %d", cfg.Import.BatchSize)
	}
	if cfg.Import.LookupBatchSize != 500 {
		t.Errorf("Expected default lookup batch size 500, got %d", cfg.Import.LookupBatchSize)
	}
	if cfg.Import.Concurrency != 1 {
		t.Errorf("Expected default concurrency 1, got %d", cfg.Import.Concurrency)
	}
	if cfg.Import.BatchDelay != 100*time.Millisecond {
		t.Errorf("Expected default batch delay 100ms, got %s", cfg.Import.BatchDelay)
	}
	if cfg.Phone.CountryCode != "255" || cfg.Phone.NationalLength != 10 || cfg.Phone.LocalLength != 9 {
		t.Errorf("Unexpected phone defaults: %+v", cfg.Phone)
	}
	if cfg.Destination.Table != "customers" || cfg.Destination.Columns.Phone != "phone" {
		t.Errorf("Unexpected destination defaults: %+v", cfg.Destination)
	}
	if err := validateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigPriority(t *testing.T) {
	clearEnv(t, "LATS_DATABASE_URL", "DATABASE_URL", "LATS_LOG_LEVEL", "LATS_LOG_FILE")

	path := writeConfig(t, `
database:
  connection_string: postgres://file@db.internal/lats
import:
  batch_size: 100
  concurrency: 2
  batch_delay: 250ms
logging:
  level: info
`)

	t.Setenv("LATS_DATABASE_URL", "postgres://env@db.internal/lats")
	t.Setenv("LATS_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path, CLIFlags{
		ConfigFileSet:  true,
		Concurrency:    4,
		ConcurrencySet: true,
	})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Import.BatchSize != 100 {
		t.Errorf("file value should override default, got batch size %d", cfg.Import.BatchSize)
	}
	if cfg.Import.BatchDelay != 250*time.Millisecond {
		t.Errorf("batch delay = %s, want 250ms", cfg.Import.BatchDelay)
	}
	if cfg.Database.ConnectionString != "postgres://env@db.internal/lats" {
		t.Errorf("env should override file, got %s", cfg.Database.ConnectionString)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override file log level, got %s", cfg.Logging.Level)
	}
	if cfg.Import.Concurrency != 4 {
		t.Errorf("flag should override file, got concurrency %d", cfg.Import.Concurrency)
	}
	// Unset values keep their defaults
	if cfg.Import.LookupBatchSize != 500 {
		t.Errorf("lookup batch size = %d, want default 500", cfg.Import.LookupBatchSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := LoadConfig(missing, CLIFlags{ConfigFileSet: true}); err == nil {
		t.Error("expected an error for an explicitly requested missing file")
	}

	cfg, err := LoadConfig(missing, CLIFlags{})
	if err != nil {
		t.Fatalf("implicit missing file should fall back to defaults: %v", err)
	}
	if cfg.Import.BatchSize != 50 {
		t.Errorf("expected defaults, got batch size %d", cfg.Import.BatchSize)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "import: [not, a, map\n")
	if _, err := LoadConfig(path, CLIFlags{}); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearEnv(t, "SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY")

	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte("SUPABASE_URL=https://local.supabase.co\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(shared, []byte("SUPABASE_URL=https://shared.supabase.co\nSUPABASE_SERVICE_ROLE_KEY=service-key\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("", CLIFlags{EnvFiles: []string{local, shared, filepath.Join(dir, "missing.env")}})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Supabase.URL != "https://local.supabase.co" {
		t.Errorf("earlier env file should win, got %s", cfg.Supabase.URL)
	}
	if cfg.Supabase.ServiceKey != "service-key" {
		t.Errorf("service key = %q", cfg.Supabase.ServiceKey)
	}
}

func TestServiceKeyFile(t *testing.T) {
	clearEnv(t, "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_KEY")

	keyFile := filepath.Join(t.TempDir(), "service.key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, "supabase:\n  url: https://x.supabase.co\n  service_key_file: "+keyFile+"\n")

	cfg, err := LoadConfig(path, CLIFlags{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Supabase.ServiceKey != "from-file" {
		t.Errorf("service key = %q, want from-file", cfg.Supabase.ServiceKey)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"zero batch size", func(c *Config) { c.Import.BatchSize = 0 }, "batch_size"},
		{"zero lookup batch", func(c *Config) { c.Import.LookupBatchSize = 0 }, "lookup_batch_size"},
		{"zero concurrency", func(c *Config) { c.Import.Concurrency = 0 }, "concurrency"},
		{"negative delay", func(c *Config) { c.Import.BatchDelay = -time.Second }, "batch_delay"},
		{"bind parameter limit", func(c *Config) { c.Import.BatchSize = 20000 }, "bind parameter"},
		{"phone disabled", func(c *Config) { c.Destination.Columns.Phone = Disabled }, "phone cannot be disabled"},
		{"name disabled", func(c *Config) { c.Destination.Columns.Name = Disabled }, "name cannot be disabled"},
		{"empty country code", func(c *Config) { c.Phone.CountryCode = "" }, "country_code"},
		{"country code with plus", func(c *Config) { c.Phone.CountryCode = "+255" }, "country_code"},
		{"inconsistent lengths", func(c *Config) { c.Phone.NationalLength = 9 }, "national_length"},
		{"too long", func(c *Config) { c.Phone.LocalLength = 14; c.Phone.NationalLength = 15 }, "15 digits"},
		{"no retry", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"bad idle time", func(c *Config) { c.Database.PoolMaxConnIdleTime = "soon" }, "pool_max_conn_idle_time"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDisabledColumnsRelaxBindLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.Import.BatchSize = 20000
	cfg.Destination.Columns.Email = Disabled
	cfg.Destination.Columns.Source = Disabled
	cfg.Destination.Columns.Metadata = Disabled

	if err := validateConfig(cfg); err != nil {
		t.Errorf("two columns of 20000 rows fit the limit: %v", err)
	}
	if got := cfg.Destination.Columns.Enabled(); len(got) != 2 {
		t.Errorf("Enabled() = %v", got)
	}
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "explicit connection string",
			cfg:  DatabaseConfig{ConnectionString: "postgres://u@h/db"},
			want: "postgres://u@h/db",
		},
		{
			name: "prompted password added to connection string",
			cfg:  DatabaseConfig{ConnectionString: "postgres://u@h/db", Password: "p w"},
			want: "postgres://u:p%20w@h/db",
		},
		{
			name: "discrete fields",
			cfg:  DatabaseConfig{Host: "db", Port: 5433, Database: "lats", User: "shop", Password: "s@cret", SSLMode: "require"},
			want: "postgres://shop:s%40cret@db:5433/lats?sslmode=require",
		},
		{
			name: "no password uses pgpass",
			cfg:  DatabaseConfig{Host: "localhost", Port: 5432, Database: "lats", User: "shop"},
			want: "postgres://shop@localhost:5432/lats",
		},
		{
			name: "nothing configured",
			cfg:  DatabaseConfig{Host: "localhost", Port: 5432, Database: "postgres"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildConnectionString(); got != tt.want {
				t.Errorf("BuildConnectionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.ConnectionString = "postgres://shop:hunter2@db/lats"
	cfg.Database.Password = "hunter2"
	cfg.Supabase.ServiceKey = "eyJhbGciOi"

	red := cfg.Redacted()
	if strings.Contains(red.Database.ConnectionString, "hunter2") || red.Database.Password == "hunter2" {
		t.Errorf("database password not masked: %+v", red.Database)
	}
	if red.Supabase.ServiceKey == "eyJhbGciOi" {
		t.Error("service key not masked")
	}
	if cfg.Database.Password != "hunter2" {
		t.Error("Redacted must not modify the original")
	}
}

func TestSaveConfigLoadsBack(t *testing.T) {
	clearEnv(t, "LATS_DATABASE_URL", "DATABASE_URL", "LATS_LOG_LEVEL", "LATS_LOG_FILE")

	path := filepath.Join(t.TempDir(), "nested", "lats-admin.yaml")
	cfg := Defaults()
	cfg.Import.BatchSize = 75
	cfg.Import.BatchTimeout = time.Minute

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path, CLIFlags{ConfigFileSet: true})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Import.BatchSize != 75 || loaded.Import.BatchTimeout != time.Minute {
		t.Errorf("saved values not loaded back: %+v", loaded.Import)
	}
}

func TestReload(t *testing.T) {
	clearEnv(t, "LATS_DATABASE_URL", "DATABASE_URL", "LATS_LOG_LEVEL", "LATS_LOG_FILE")

	path := writeConfig(t, "import:\n  batch_size: 10\n")
	cfg, err := LoadConfig(path, CLIFlags{ConfigFileSet: true})
	if err != nil {
		t.Fatal(err)
	}

	rc := NewReloadableConfig(cfg, path, CLIFlags{ConfigFileSet: true})
	var seen int
	rc.OnReload(func(c *Config) { seen = c.Import.BatchSize })

	if err := os.WriteFile(path, []byte("import:\n  batch_size: 20\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := rc.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if rc.Get().Import.BatchSize != 20 || seen != 20 {
		t.Errorf("reload not applied: get=%d callback=%d", rc.Get().Import.BatchSize, seen)
	}

	// An invalid file keeps the previous configuration
	if err := os.WriteFile(path, []byte("import:\n  batch_size: -1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := rc.Reload(); err == nil {
		t.Error("expected reload of an invalid file to fail")
	}
	if rc.Get().Import.BatchSize != 20 {
		t.Errorf("failed reload replaced the config: %d", rc.Get().Import.BatchSize)
	}
}

func TestReloadKeepsConnection(t *testing.T) {
	clearEnv(t, "LATS_DATABASE_URL", "DATABASE_URL", "LATS_LOG_LEVEL", "LATS_LOG_FILE")

	path := writeConfig(t, "database:\n  host: db-one\ndestination:\n  table: customers\n")
	cfg, err := LoadConfig(path, CLIFlags{ConfigFileSet: true})
	if err != nil {
		t.Fatal(err)
	}
	rc := NewReloadableConfig(cfg, path, CLIFlags{ConfigFileSet: true})

	updated := "database:\n  host: db-two\ndestination:\n  table: other\nimport:\n  concurrency: 3\n"
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatal(err)
	}
	if err := rc.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	got := rc.Get()
	if got.Database.Host != "db-one" || got.Destination.Table != "customers" {
		t.Errorf("connection settings changed on reload: host=%s table=%s", got.Database.Host, got.Destination.Table)
	}
	if got.Import.Concurrency != 3 {
		t.Errorf("Import.Concurrency = %d, want 3", got.Import.Concurrency)
	}
}
