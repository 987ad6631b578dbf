package temporalx

import (
	"time"

	"github.com/yungbote/categorylink/internal/platform/envutil"
)

// Config is read from the environment only. Temporal is optional: the refactor
// job runs in-process when TEMPORAL_ADDRESS is unset.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout    time.Duration
	DialMaxWait    time.Duration
	DialBackoff    time.Duration
	DialBackoffMax time.Duration

	AutoRegisterNamespace  bool
	NamespaceEnsureTimeout time.Duration
	RetentionDays          int

	WorkerConcurrency int
}

func (c Config) Enabled() bool { return c.Address != "" }

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "categorylink"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "categorylink"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout:    envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5),
		DialMaxWait:    envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60),
		DialBackoff:    envutil.Millis("TEMPORAL_DIAL_BACKOFF_MS", 250),
		DialBackoffMax: envutil.Millis("TEMPORAL_DIAL_BACKOFF_MAX_MS", 5000),

		AutoRegisterNamespace:  envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		NamespaceEnsureTimeout: envutil.Seconds("TEMPORAL_NAMESPACE_ENSURE_TIMEOUT_SECONDS", 10),
		RetentionDays:          envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7),

		// One refactor job touches one category at a time, so a small worker is enough.
		WorkerConcurrency: envutil.Int("TEMPORAL_WORKER_CONCURRENCY", 2),
	}
}
