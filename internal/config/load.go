package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load resolves configuration with the following precedence (lowest first):
// defaults, the YAML file at path (optional), environment variables.
// Command line flags are applied by the caller on top of the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{Code: ConfigErrorUnreadableFile, Value: path, Cause: err}
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, &ConfigError{Code: ConfigErrorMalformedFile, Value: path, Cause: err}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, &ConfigError{Code: ConfigErrorInvalidValue, Field: key, Value: v, Cause: err})
			return
		}
		*dst = n
	}
	setSeconds := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, &ConfigError{Code: ConfigErrorInvalidDuration, Field: key, Value: v, Cause: err})
			return
		}
		*dst = time.Duration(n) * time.Second
	}
	setDuration := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, &ConfigError{Code: ConfigErrorInvalidDuration, Field: key, Value: v, Cause: err})
			return
		}
		*dst = d
	}
	setBool := func(key string, dst *bool) {
		switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setInt("CATEGORYLINK_BATCH_SIZE", &cfg.BatchSize)
	if v := strings.TrimSpace(os.Getenv("CATEGORYLINK_TERMINATION_MODE")); v != "" {
		cfg.TerminationMode = TerminationMode(v)
	}
	setDuration("CATEGORYLINK_BATCH_TIMEOUT", &cfg.BatchTimeout)
	setInt("CATEGORYLINK_MAX_RETRIES", &cfg.MaxRetries)
	setDuration("CATEGORYLINK_RETRY_BACKOFF", &cfg.RetryBackoff)
	setDuration("CATEGORYLINK_RETRY_BACKOFF_MAX", &cfg.RetryBackoffMax)
	if v := strings.TrimSpace(os.Getenv("CATEGORYLINK_BATCHES_PER_SECOND")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, &ConfigError{Code: ConfigErrorInvalidRate, Value: v, Cause: err})
		} else {
			cfg.BatchesPerSecond = f
		}
	}

	setString("NEO4J_URI", &cfg.Store.Address)
	setString("NEO4J_USER", &cfg.Store.Username)
	setString("NEO4J_PASSWORD", &cfg.Store.Password)
	setString("NEO4J_DATABASE", &cfg.Store.Database)
	setBool("NEO4J_ENCRYPTED", &cfg.Store.Encrypted)
	if v := strings.TrimSpace(os.Getenv("NEO4J_TRUST")); v != "" {
		cfg.Store.Trust = TrustMode(strings.ToLower(v))
	}
	setInt("NEO4J_MAX_POOL_SIZE", &cfg.Store.MaxPoolSize)
	setSeconds("NEO4J_TIMEOUT_SECONDS", &cfg.Store.ConnectTimeout)

	setString("CATEGORYLINK_CHILD_LABEL", &cfg.Schema.ChildLabel)
	setString("CATEGORYLINK_CHILD_PROPERTY", &cfg.Schema.ChildProperty)
	setString("CATEGORYLINK_PARENT_LABEL", &cfg.Schema.ParentLabel)
	setString("CATEGORYLINK_PARENT_KEY", &cfg.Schema.ParentKey)
	setString("CATEGORYLINK_RELATIONSHIP_TYPE", &cfg.Schema.RelationshipType)

	setString("REDIS_ADDR", &cfg.Events.RedisAddr)
	setString("REDIS_CHANNEL", &cfg.Events.RedisChannel)
	setString("LEDGER_DSN", &cfg.Ledger.DSN)
	setString("STATUS_ADDR", &cfg.Status.Addr)
	if v := strings.TrimSpace(os.Getenv("STATUS_CORS_ORIGINS")); v != "" {
		cfg.Status.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Status.CORSOrigins = append(cfg.Status.CORSOrigins, origin)
			}
		}
	}
	setString("LOG_MODE", &cfg.Log.Mode)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
