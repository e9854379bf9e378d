package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldbase/fieldbase/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 15s

database:
  driver: "sqlite"
  dsn: ":memory:"

auth:
  jwt_secret: "test-secret"
  session_ttl: 2h

query:
  max_limit: 250
  timeout: 5s

cache:
  schema_ttl: 30s
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %s, want :memory:", cfg.Database.DSN)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %s, want test-secret", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 2h", cfg.Auth.SessionTTL)
	}
	if cfg.Query.MaxLimit != 250 {
		t.Errorf("Query.MaxLimit = %d, want 250", cfg.Query.MaxLimit)
	}
	if cfg.Cache.SchemaTTL != 30*time.Second {
		t.Errorf("Cache.SchemaTTL = %v, want 30s", cfg.Cache.SchemaTTL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default Database.Driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "fieldbase.db" {
		t.Errorf("default Database.DSN = %s, want fieldbase.db", cfg.Database.DSN)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("default Auth.SessionTTL = %v, want 24h", cfg.Auth.SessionTTL)
	}
	if cfg.Query.MaxLimit != 1000 {
		t.Errorf("default Query.MaxLimit = %d, want 1000", cfg.Query.MaxLimit)
	}
	if cfg.Cache.SchemaTTL != time.Minute {
		t.Errorf("default Cache.SchemaTTL = %v, want 1m", cfg.Cache.SchemaTTL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_DB_PATH", "/tmp/expanded.db")
	defer os.Unsetenv("TEST_DB_PATH")

	content := `
database:
  dsn: "${TEST_DB_PATH}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Database.DSN != "/tmp/expanded.db" {
		t.Errorf("Database.DSN = %s, want /tmp/expanded.db", cfg.Database.DSN)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("FIELDBASE_SERVER_PORT", "9999")
	os.Setenv("FIELDBASE_QUERY_MAX_LIMIT", "42")
	defer os.Unsetenv("FIELDBASE_SERVER_PORT")
	defer os.Unsetenv("FIELDBASE_QUERY_MAX_LIMIT")

	content := `
server:
  port: 8081
query:
  max_limit: 500
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Query.MaxLimit != 42 {
		t.Errorf("Query.MaxLimit = %d, want env override 42", cfg.Query.MaxLimit)
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	content := `
database:
  driver: "postgres"
`
	if _, err := load(t, content); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	content := `
logging:
  level: "verbose"
`
	if _, err := load(t, content); err == nil {
		t.Fatal("expected error for bad log level")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	content := `
server:
  port: 70000
`
	if _, err := load(t, content); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := load(t, "server: [not: valid"); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("FIELDBASE_DATABASE_DSN", "/tmp/env-only.db")
	defer os.Unsetenv("FIELDBASE_DATABASE_DSN")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Database.DSN != "/tmp/env-only.db" {
		t.Errorf("Database.DSN = %s, want /tmp/env-only.db", cfg.Database.DSN)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
}

func load(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.Load(path)
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := load(t, content)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}
