// Package mongodb owns the MongoDB client lifecycle and the transaction helper shared by
// the mongo repositories and the idempotency store.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shopmart/api/internal/platform/config"
)

const defaultTimeout = 10 * time.Second

// Client pairs a connected driver client with the configured database.
type Client struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect dials the cluster and verifies it with a primary ping.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, errors.New("mongodb: uri is required")
	}
	name := strings.TrimSpace(cfg.Database)
	if name == "" {
		return nil, errors.New("mongodb: database is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	c := &Client{client: client, db: client.Database(name), timeout: timeout}
	if err := c.Ping(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// Database returns the configured database handle.
func (c *Client) Database() *mongo.Database { return c.db }

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return WrapError("mongodb.ping", c.client.Ping(pingCtx, readpref.Primary()))
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// WithTransaction runs fn inside a session transaction. The driver retries fn on
// transient transaction errors, so fn must be safe to re-run.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx mongo.SessionContext) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return WrapError("mongodb.session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
