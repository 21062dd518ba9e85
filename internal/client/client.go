// ABOUTME: Client façade wiring the store, fetch gateway, coordinator and subscriptions
// ABOUTME: Explicitly constructed and disposed; no package-level singletons

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/fintrack/internal/cache"
	"github.com/2389/fintrack/internal/depgraph"
	"github.com/2389/fintrack/internal/entity"
	"github.com/2389/fintrack/internal/gateway"
	"github.com/2389/fintrack/internal/mutate"
	"github.com/2389/fintrack/internal/subscribe"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Required.
	BaseURL string
	// Credentials seeds an in-memory credential store. Ignored if
	// CredentialStore is set.
	Credentials gateway.Credentials
	// CredentialStore overrides credential storage (e.g. OS keychain).
	CredentialStore gateway.CredentialStore
	// Timeout bounds each request. Zero means the gateway default.
	Timeout time.Duration
	// Retention is how long unwatched cache entries survive. Zero means
	// the store default.
	Retention time.Duration
	// Retry is the refetch retry policy. Zero value means no retries;
	// gateway.DefaultPolicy is a sensible choice.
	Retry gateway.Policy
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Descriptors overrides the per-type mutation table.
	Descriptors map[entity.Type]mutate.Descriptor
	// Logger may be nil for the default.
	Logger *slog.Logger
}

// graph adapts the static dependency table to the coordinator's interface.
type graph struct{}

func (graph) DependentsOf(t entity.Type) []entity.Type { return depgraph.DependentsOf(t) }

// Client is the entry point to the finance-tracking core. Views issue
// intents and subscribe to keys through it; they never touch the store
// directly.
type Client struct {
	store       *cache.Store
	gw          *gateway.Gateway
	coordinator *mutate.Coordinator
	channel     *subscribe.Channel
	logger      *slog.Logger
}

// New constructs a client and all its components.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	creds := cfg.CredentialStore
	if creds == nil {
		creds = gateway.NewMemoryCredentialStore(cfg.Credentials)
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:     cfg.BaseURL,
		Credentials: creds,
		Timeout:     cfg.Timeout,
		HTTPClient:  cfg.HTTPClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	var storeOpts []cache.Option
	if cfg.Retention > 0 {
		storeOpts = append(storeOpts, cache.WithRetention(cfg.Retention))
	}
	store := cache.New(logger, storeOpts...)

	c := &Client{
		store:       store,
		gw:          gw,
		coordinator: mutate.New(store, gw, graph{}, cfg.Descriptors, logger),
		channel:     subscribe.New(store, gw, cfg.Retry, logger),
		logger:      logger.With("component", "client"),
	}
	return c, nil
}

// Close disposes the client: subscriptions first, then the store.
func (c *Client) Close() {
	c.channel.Close()
	c.store.Close()
	c.logger.Debug("client closed")
}

// List returns the collection for (t, params), from cache when fresh,
// fetching otherwise. The fetched value is written back under the version
// guard so it never overwrites a newer optimistic write.
func (c *Client) List(ctx context.Context, t entity.Type, params url.Values) (*entity.Collection, error) {
	key := cache.NewKey(t, params)
	if entry, ok := c.store.Get(key); ok && !entry.Stale() {
		if col, ok := entry.Value.(*entity.Collection); ok {
			return col, nil
		}
	}

	observed := c.store.Version(key)
	col, err := c.gw.List(ctx, t, params)
	if err != nil {
		return nil, err
	}
	if err := c.store.CompareAndSet(key, col, observed); err != nil && !errors.Is(err, cache.ErrStaleWrite) {
		return nil, err
	}
	return col, nil
}

// Get returns a single record, from cache when fresh, fetching otherwise.
func (c *Client) Get(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	key := cache.NewRecordKey(t, id)
	if entry, ok := c.store.Get(key); ok && !entry.Stale() {
		if single, ok := entry.Value.(*entity.Single); ok && single.Record != nil {
			return single.Record, nil
		}
	}

	observed := c.store.Version(key)
	rec, err := c.gw.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.CompareAndSet(key, &entity.Single{Record: rec}, observed); err != nil && !errors.Is(err, cache.ErrStaleWrite) {
		return nil, err
	}
	return rec, nil
}

// Create submits a new record through the mutation coordinator.
func (c *Client) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	return c.coordinator.Create(ctx, rec)
}

// Update submits a full-record edit.
func (c *Client) Update(ctx context.Context, rec entity.Record) (entity.Record, error) {
	return c.coordinator.Update(ctx, rec)
}

// Delete soft-deletes a record.
func (c *Client) Delete(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	return c.coordinator.Delete(ctx, t, id)
}

// Restore reverses a soft delete.
func (c *Client) Restore(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	return c.coordinator.Restore(ctx, t, id)
}

// UpdateStatus applies a lifecycle transition.
func (c *Client) UpdateStatus(ctx context.Context, t entity.Type, id string, status entity.Status) (entity.Record, error) {
	return c.coordinator.UpdateStatus(ctx, t, id, status)
}

// Subscribe registers a callback for the collection addressed by (t, params).
func (c *Client) Subscribe(ctx context.Context, t entity.Type, params url.Values, fn func(subscribe.Update)) func() {
	return c.channel.Subscribe(ctx, t, params, fn)
}

// SubscribeRecord registers a callback for a single record key.
func (c *Client) SubscribeRecord(ctx context.Context, t entity.Type, id string, fn func(subscribe.Update)) func() {
	return c.channel.SubscribeRecord(ctx, t, id, fn)
}

// Stats returns cache counters.
func (c *Client) Stats() cache.Stats {
	return c.store.Stats()
}
