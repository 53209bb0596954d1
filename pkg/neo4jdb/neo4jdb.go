package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var ErrNotConfigured = errors.New("neo4jdb: uri is empty")

type Config struct {
	URI         string        `envconfig:"URI" split_words:"true"`
	User        string        `envconfig:"USER" split_words:"true" default:"neo4j"`
	Password    string        `envconfig:"PASSWORD" split_words:"true"`
	Database    string        `envconfig:"DATABASE" split_words:"true"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxPoolSize int           `envconfig:"MAX_POOL_SIZE" split_words:"true" default:"50"`
}

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// New opens a driver and verifies connectivity. An empty URI returns
// ErrNotConfigured so callers can run without the graph.
func New(ctx context.Context, cfg Config) (*Client, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, ErrNotConfigured
	}

	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
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

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: strings.TrimSpace(cfg.Database),
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
