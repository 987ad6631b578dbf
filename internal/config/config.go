package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type TerminationMode string

const (
	// TerminationActualCount stops a category once a batch creates zero edges.
	TerminationActualCount TerminationMode = "actualCount"
	// TerminationEstimate reproduces the legacy behavior: batch_limit is added to a
	// running total after every batch and the loop stops once it reaches the target.
	TerminationEstimate TerminationMode = "estimate"
)

type TrustMode string

const (
	TrustSystem TrustMode = "system"
	TrustAny    TrustMode = "any"
)

type Config struct {
	BatchSize        int             `yaml:"batchSize"`
	TerminationMode  TerminationMode `yaml:"terminationMode"`
	BatchTimeout     time.Duration   `yaml:"batchTimeout"`
	MaxRetries       int             `yaml:"maxRetries"`
	RetryBackoff     time.Duration   `yaml:"retryBackoff"`
	RetryBackoffMax  time.Duration   `yaml:"retryBackoffMax"`
	BatchesPerSecond float64         `yaml:"batchesPerSecond"`

	Store  StoreConfig  `yaml:"store"`
	Schema SchemaConfig `yaml:"schema"`
	Events EventsConfig `yaml:"events"`
	Ledger LedgerConfig `yaml:"ledger"`
	Status StatusConfig `yaml:"status"`
	Log    LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	Address        string        `yaml:"address"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	Encrypted      bool          `yaml:"encrypted"`
	Trust          TrustMode     `yaml:"trust"`
	MaxPoolSize    int           `yaml:"maxPoolSize"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// SchemaConfig names the graph shape being refactored. Every field is a Cypher
// identifier and is interpolated (quoted) into queries, so it must pass Validate.
type SchemaConfig struct {
	ChildLabel       string `yaml:"childLabel"`
	ChildProperty    string `yaml:"childProperty"`
	ParentLabel      string `yaml:"parentLabel"`
	ParentKey        string `yaml:"parentKey"`
	RelationshipType string `yaml:"relationshipType"`
}

type EventsConfig struct {
	RedisAddr    string `yaml:"redisAddr"`
	RedisChannel string `yaml:"redisChannel"`
}

type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

type StatusConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

func Default() Config {
	return Config{
		BatchSize:       2000,
		TerminationMode: TerminationActualCount,
		BatchTimeout:    2 * time.Minute,
		MaxRetries:      3,
		RetryBackoff:    250 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		Store: StoreConfig{
			Address:        "bolt://localhost:7687",
			Username:       "neo4j",
			Trust:          TrustSystem,
			MaxPoolSize:    50,
			ConnectTimeout: 10 * time.Second,
		},
		Schema: SchemaConfig{
			ChildLabel:       "Organization",
			ChildProperty:    "country",
			ParentLabel:      "Country",
			ParentKey:        "countryName",
			RelationshipType: "HAS_LOCATION",
		},
		Events: EventsConfig{RedisChannel: "categorylink"},
		Log:    LogConfig{Mode: "development"},
	}
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidBatchSize   ConfigErrorCode = "invalid_batch_size"
	ConfigErrorInvalidTermination ConfigErrorCode = "invalid_termination_mode"
	ConfigErrorInvalidRetries     ConfigErrorCode = "invalid_max_retries"
	ConfigErrorInvalidDuration    ConfigErrorCode = "invalid_duration"
	ConfigErrorInvalidRate        ConfigErrorCode = "invalid_batches_per_second"
	ConfigErrorMissingAddress     ConfigErrorCode = "missing_store_address"
	ConfigErrorInvalidAddress     ConfigErrorCode = "invalid_store_address"
	ConfigErrorInvalidTrust       ConfigErrorCode = "invalid_trust_mode"
	ConfigErrorInvalidIdentifier  ConfigErrorCode = "invalid_schema_identifier"
	ConfigErrorInvalidValue       ConfigErrorCode = "invalid_value"
	ConfigErrorUnreadableFile     ConfigErrorCode = "unreadable_config_file"
	ConfigErrorMalformedFile      ConfigErrorCode = "malformed_config_file"
	ConfigErrorInvalidLedgerDSN   ConfigErrorCode = "invalid_ledger_dsn"
	ConfigErrorMissingSetting     ConfigErrorCode = "missing_setting"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Field string
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid categorylink config"
	}
	switch e.Code {
	case ConfigErrorInvalidBatchSize:
		return fmt.Sprintf("invalid batchSize=%q; expected positive integer", e.Value)
	case ConfigErrorInvalidTermination:
		return fmt.Sprintf("invalid terminationMode=%q; expected %q or %q", e.Value, TerminationActualCount, TerminationEstimate)
	case ConfigErrorInvalidRetries:
		return fmt.Sprintf("invalid maxRetries=%q; expected non-negative integer", e.Value)
	case ConfigErrorInvalidDuration:
		return fmt.Sprintf("invalid %s=%q; expected positive duration like 30s", e.Field, e.Value)
	case ConfigErrorInvalidRate:
		return fmt.Sprintf("invalid batchesPerSecond=%q; expected non-negative number", e.Value)
	case ConfigErrorMissingAddress:
		return "store.address is required"
	case ConfigErrorInvalidAddress:
		return fmt.Sprintf("invalid store.address=%q; expected URI like bolt://localhost:7687", e.Value)
	case ConfigErrorInvalidTrust:
		return fmt.Sprintf("invalid store.trust=%q; expected %q or %q", e.Value, TrustSystem, TrustAny)
	case ConfigErrorInvalidIdentifier:
		return fmt.Sprintf("invalid %s=%q; expected identifier matching [A-Za-z_][A-Za-z0-9_]*", e.Field, e.Value)
	case ConfigErrorInvalidValue:
		return fmt.Sprintf("invalid %s=%q", e.Field, e.Value)
	case ConfigErrorUnreadableFile:
		return fmt.Sprintf("read config file %q: %v", e.Value, e.Cause)
	case ConfigErrorMalformedFile:
		return fmt.Sprintf("parse config file %q: %v", e.Value, e.Cause)
	case ConfigErrorInvalidLedgerDSN:
		return fmt.Sprintf("invalid ledger.dsn scheme in %q; expected postgres:// or sqlite:", e.Value)
	case ConfigErrorMissingSetting:
		return fmt.Sprintf("%s is required for this command", e.Field)
	default:
		return "invalid categorylink config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ValidIdentifier(s string) bool {
	return identifierRE.MatchString(s)
}

func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidBatchSize, Value: strconv.Itoa(c.BatchSize)}
	}
	switch c.TerminationMode {
	case TerminationActualCount, TerminationEstimate:
	default:
		return &ConfigError{Code: ConfigErrorInvalidTermination, Value: string(c.TerminationMode)}
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Code: ConfigErrorInvalidRetries, Value: strconv.Itoa(c.MaxRetries)}
	}
	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"batchTimeout", c.BatchTimeout},
		{"retryBackoff", c.RetryBackoff},
		{"retryBackoffMax", c.RetryBackoffMax},
		{"store.connectTimeout", c.Store.ConnectTimeout},
	} {
		if d.value <= 0 {
			return &ConfigError{Code: ConfigErrorInvalidDuration, Field: d.field, Value: d.value.String()}
		}
	}
	if c.BatchesPerSecond < 0 {
		return &ConfigError{Code: ConfigErrorInvalidRate, Value: strconv.FormatFloat(c.BatchesPerSecond, 'f', -1, 64)}
	}

	addr := strings.TrimSpace(c.Store.Address)
	if addr == "" {
		return &ConfigError{Code: ConfigErrorMissingAddress}
	}
	parsed, err := url.Parse(addr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidAddress, Value: addr, Cause: err}
	}
	switch c.Store.Trust {
	case TrustSystem, TrustAny:
	default:
		return &ConfigError{Code: ConfigErrorInvalidTrust, Value: string(c.Store.Trust)}
	}
	if c.Store.MaxPoolSize <= 0 {
		return &ConfigError{Code: ConfigErrorInvalidValue, Field: "store.maxPoolSize", Value: strconv.Itoa(c.Store.MaxPoolSize)}
	}

	for _, id := range []struct{ field, value string }{
		{"schema.childLabel", c.Schema.ChildLabel},
		{"schema.childProperty", c.Schema.ChildProperty},
		{"schema.parentLabel", c.Schema.ParentLabel},
		{"schema.parentKey", c.Schema.ParentKey},
		{"schema.relationshipType", c.Schema.RelationshipType},
	} {
		if !ValidIdentifier(id.value) {
			return &ConfigError{Code: ConfigErrorInvalidIdentifier, Field: id.field, Value: id.value}
		}
	}

	if dsn := strings.TrimSpace(c.Ledger.DSN); dsn != "" {
		if _, _, err := LedgerDriver(dsn); err != nil {
			return err
		}
	}
	return nil
}

// LedgerDriver splits a ledger DSN into a driver name and the DSN handed to that driver.
func LedgerDriver(dsn string) (driver string, target string, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:"), nil
	default:
		return "", "", &ConfigError{Code: ConfigErrorInvalidLedgerDSN, Value: dsn}
	}
}
