package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var ErrNotConfigured = errors.New("postgres: dsn is empty")

type Config struct {
	DSN             string        `envconfig:"DSN" split_words:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" split_words:"true" default:"1h"`
	PingTimeout     time.Duration `envconfig:"PING_TIMEOUT" split_words:"true" default:"5s"`
}

// New opens a bun database over pgdriver and pings it.
func (c *Config) New(ctx context.Context) (*bun.DB, error) {
	dsn := strings.TrimSpace(c.DSN)
	if dsn == "" {
		return nil, ErrNotConfigured
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	maxOpen := max(c.MaxOpenConns, 1)
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(max(maxOpen/2, 1))
	if c.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(c.ConnMaxLifetime)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

func (c *Config) MustNew(ctx context.Context) *bun.DB {
	db, err := c.New(ctx)
	if err != nil {
		panic(err)
	}
	return db
}
