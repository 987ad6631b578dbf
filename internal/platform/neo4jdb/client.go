package neo4jdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

func New(cfg config.StoreConfig, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}

	uri, err := ResolveURI(cfg.Address, cfg.Encrypted, cfg.Trust)
	if err != nil {
		return nil, err
	}

	user := strings.TrimSpace(cfg.Username)
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(user, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	c := &Client{
		Driver:   driver,
		Database: strings.TrimSpace(cfg.Database),
		log:      log.With("client", "Neo4jDB"),
	}
	c.log.Info("neo4j connected", "address", uri, "database", c.Database, "max_pool_size", maxPool)
	return c, nil
}

// ResolveURI folds the encrypted/trust settings into the URI scheme, which is how
// the driver selects TLS. A scheme that already carries +s or +ssc is kept as is.
func ResolveURI(address string, encrypted bool, trust config.TrustMode) (string, error) {
	address = strings.TrimSpace(address)
	u, err := url.Parse(address)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("neo4jdb: invalid address %q", address)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "bolt", "neo4j":
		if encrypted {
			if trust == config.TrustAny {
				scheme += "+ssc"
			} else {
				scheme += "+s"
			}
		}
	case "bolt+s", "bolt+ssc", "neo4j+s", "neo4j+ssc":
	default:
		return "", fmt.Errorf("neo4jdb: unsupported scheme %q", u.Scheme)
	}
	u.Scheme = scheme
	return u.String(), nil
}

func (c *Client) Session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.Database,
	})
}

// Ping checks that a server is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: client closed")
	}
	return c.Driver.VerifyConnectivity(ctx)
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
