package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "")
	t.Setenv("CATEGORYLINK_BATCH_SIZE", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.BatchSize != 2000 {
		t.Fatalf("BatchSize: want=%d got=%d", 2000, cfg.BatchSize)
	}
	if cfg.TerminationMode != TerminationActualCount {
		t.Fatalf("TerminationMode: want=%q got=%q", TerminationActualCount, cfg.TerminationMode)
	}
	if cfg.Schema.RelationshipType != "HAS_LOCATION" {
		t.Fatalf("RelationshipType: want=%q got=%q", "HAS_LOCATION", cfg.Schema.RelationshipType)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categorylink.yaml")
	body := []byte(`
batchSize: 500
terminationMode: estimate
batchTimeout: 30s
store:
  address: bolt://graph:7687
  username: loader
schema:
  childLabel: Person
  childProperty: city
  parentLabel: City
  parentKey: name
  relationshipType: LIVES_IN
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CATEGORYLINK_BATCH_SIZE", "750")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("NEO4J_PASSWORD", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 750 {
		t.Fatalf("BatchSize: want=%d got=%d", 750, cfg.BatchSize)
	}
	if cfg.TerminationMode != TerminationEstimate {
		t.Fatalf("TerminationMode: want=%q got=%q", TerminationEstimate, cfg.TerminationMode)
	}
	if cfg.BatchTimeout != 30*time.Second {
		t.Fatalf("BatchTimeout: want=%s got=%s", 30*time.Second, cfg.BatchTimeout)
	}
	if cfg.Store.Address != "bolt://graph:7687" {
		t.Fatalf("Store.Address: want=%q got=%q", "bolt://graph:7687", cfg.Store.Address)
	}
	if cfg.Store.Username != "loader" || cfg.Store.Password != "from-env" {
		t.Fatalf("credentials: got user=%q password set=%v", cfg.Store.Username, cfg.Store.Password != "")
	}
	if cfg.Schema.ParentLabel != "City" {
		t.Fatalf("ParentLabel: want=%q got=%q", "City", cfg.Schema.ParentLabel)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("MaxRetries default kept: want=%d got=%d", 3, cfg.MaxRetries)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("STATUS_CORS_ORIGINS", " http://ops.local:3000, ,http://127.0.0.1:8080 ")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Status.CORSOrigins) != 2 || cfg.Status.CORSOrigins[0] != "http://ops.local:3000" {
		t.Fatalf("CORSOrigins: got=%q", cfg.Status.CORSOrigins)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("batchSize: [oops"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got=%T (%v)", err, err)
	}
	if cfgErr.Code != ConfigErrorMalformedFile {
		t.Fatalf("code: want=%q got=%q", ConfigErrorMalformedFile, cfgErr.Code)
	}
}

func TestLoadInvalidEnvInt(t *testing.T) {
	t.Setenv("CATEGORYLINK_BATCH_SIZE", "lots")
	_, err := Load("")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got=%T (%v)", err, err)
	}
	if cfgErr.Code != ConfigErrorInvalidValue {
		t.Fatalf("code: want=%q got=%q", ConfigErrorInvalidValue, cfgErr.Code)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		code   ConfigErrorCode
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, ConfigErrorInvalidBatchSize},
		{"unknown termination", func(c *Config) { c.TerminationMode = "sometimes" }, ConfigErrorInvalidTermination},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, ConfigErrorInvalidRetries},
		{"zero timeout", func(c *Config) { c.BatchTimeout = 0 }, ConfigErrorInvalidDuration},
		{"negative rate", func(c *Config) { c.BatchesPerSecond = -2 }, ConfigErrorInvalidRate},
		{"missing address", func(c *Config) { c.Store.Address = " " }, ConfigErrorMissingAddress},
		{"address without scheme", func(c *Config) { c.Store.Address = "localhost:7687" }, ConfigErrorInvalidAddress},
		{"unknown trust", func(c *Config) { c.Store.Trust = "tofu" }, ConfigErrorInvalidTrust},
		{"injected label", func(c *Config) { c.Schema.ChildLabel = "Org`) DETACH DELETE n //" }, ConfigErrorInvalidIdentifier},
		{"empty rel type", func(c *Config) { c.Schema.RelationshipType = "" }, ConfigErrorInvalidIdentifier},
		{"bad ledger dsn", func(c *Config) { c.Ledger.DSN = "mysql://x" }, ConfigErrorInvalidLedgerDSN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T (%v)", err, err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, cfgErr.Code)
			}
			if cfgErr.Error() == "" {
				t.Fatalf("empty error message")
			}
		})
	}
}

func TestLedgerDriver(t *testing.T) {
	driver, target, err := LedgerDriver("sqlite:/tmp/ledger.db")
	if err != nil {
		t.Fatalf("LedgerDriver: %v", err)
	}
	if driver != "sqlite" || target != "/tmp/ledger.db" {
		t.Fatalf("sqlite: got driver=%q target=%q", driver, target)
	}
	driver, _, err = LedgerDriver("postgres://u@db:5432/ledger")
	if err != nil || driver != "postgres" {
		t.Fatalf("postgres: got driver=%q err=%v", driver, err)
	}
}

func TestMissingSettingMessageNamesField(t *testing.T) {
	err := &ConfigError{Code: ConfigErrorMissingSetting, Field: "ledger.dsn"}
	if got := err.Error(); got != "ledger.dsn is required for this command" {
		t.Fatalf("message: got=%q", got)
	}
}
