// Package postgres owns the lib/pq pool behind the result store and the
// transaction helpers the Postgres sink writes through.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	"github.com/lib/pq"
)

const defaultConnectTimeout = 5 * time.Second

type Client struct {
	DB     *sql.DB
	target string
}

// New opens the pool and pings the server. The ping is bounded by ctx and
// by cfg.ConnectTimeout, whichever ends first.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	target := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres %s: %w", target, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	limit := cfg.ConnectTimeout
	if limit <= 0 {
		limit = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s: %w", target, err)
	}
	return &Client{DB: db, target: target}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging postgres %s: %w", c.target, err)
	}
	return nil
}

// InTx runs fn in a transaction and commits when it returns nil. A failed
// rollback is joined to fn's error. A panic in fn rolls back and is
// re-raised.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// EnsureSchema applies the DDL statements in one transaction.
func (c *Client) EnsureSchema(ctx context.Context, ddl ...string) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range ddl {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// IsUniqueViolation reports whether err is a primary key or unique
// constraint conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
