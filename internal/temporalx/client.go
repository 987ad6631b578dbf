package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yungbote/categorylink/internal/platform/logger"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewClient dials Temporal with a bounded retry loop. It returns a nil client
// and nil error when no address is configured.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	if cfg.Address == "" {
		if log != nil {
			log.Warn("TEMPORAL_ADDRESS not set; orchestrated mode disabled")
		}
		return nil, nil
	}
	opts, err := clientOptions(cfg, cfg.Namespace, log)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(ctx, cfg, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		}
		if err := sleepCtx(ctx, clampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt)); err != nil {
			return nil, err
		}
	}
}

func clientOptions(cfg Config, namespace string, log *logger.Logger) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: namespace,
	}
	if log != nil {
		opts.Logger = log.With("component", "TemporalClient")
	}
	if cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" || cfg.ClientCAPath != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

// EnsureNamespace describes the configured namespace and registers it when it
// is missing. Meant for self-hosted Temporal; cloud namespaces are provisioned
// out of band.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" || strings.TrimSpace(cfg.Address) == "" {
		return nil
	}
	maxWait := cfg.NamespaceEnsureTimeout
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	// The namespace client sends no namespace header, so it works before the namespace exists.
	opts, err := clientOptions(cfg, "", log)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, ctx.Err())
		}

		err := describeOrRegister(ctx, nsClient, namespace, cfg.RetentionDays, log)
		if err == nil {
			return nil
		}
		if !isRetryableRPC(err) {
			return fmt.Errorf("temporal namespace ensure: %w", err)
		}
		if log != nil {
			log.Warn("Temporal namespace ensure retrying", "namespace", namespace, "attempt", attempt, "error", err)
		}
		if err := sleepCtx(ctx, clampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt)); err != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, err)
		}
	}
}

func describeOrRegister(ctx context.Context, nsClient temporalsdkclient.NamespaceClient, namespace string, retentionDays int, log *logger.Logger) error {
	_, err := nsClient.Describe(ctx, namespace)
	if err == nil {
		return nil
	}
	var nfe *serviceerror.NamespaceNotFound
	if !errors.As(err, &nfe) {
		return fmt.Errorf("describe namespace: %w", err)
	}

	retentionDays = clampRetention(retentionDays)
	err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		Description:                      "categorylink auto-registered namespace",
		WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(retentionDays) * 24 * time.Hour),
	})
	var already *serviceerror.NamespaceAlreadyExists
	if err == nil || errors.As(err, &already) {
		if log != nil {
			log.Info("Registered Temporal namespace", "namespace", namespace, "retention_days", retentionDays)
		}
		return nil
	}
	return fmt.Errorf("register namespace: %w", err)
}

func clampRetention(days int) int {
	if days < 1 {
		return 7
	}
	if days > 365 {
		return 365
	}
	return days
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: both TEMPORAL_CLIENT_CERT_PATH and TEMPORAL_CLIENT_KEY_PATH are required when enabling mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func clampBackoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	var (
		unavailable *serviceerror.Unavailable
		deadline    *serviceerror.DeadlineExceeded
		exhausted   *serviceerror.ResourceExhausted
	)
	if errors.As(err, &unavailable) || errors.As(err, &deadline) || errors.As(err, &exhausted) {
		return true
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// SleepBackoff waits the dial backoff for attempt, or until ctx ends.
func SleepBackoff(ctx context.Context, cfg Config, attempt int) error {
	return sleepCtx(ctx, clampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt))
}
