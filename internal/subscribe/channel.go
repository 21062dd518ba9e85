// ABOUTME: Key subscriptions with exactly-once delivery and coalesced refetches
// ABOUTME: At most one network fetch is in flight per key, shared by all subscribers

package subscribe

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/2389/fintrack/internal/cache"
	"github.com/2389/fintrack/internal/entity"
	"github.com/2389/fintrack/internal/gateway"
)

// Fetcher is what the channel needs from the fetch gateway.
type Fetcher interface {
	List(ctx context.Context, t entity.Type, params url.Values) (*entity.Collection, error)
	Get(ctx context.Context, t entity.Type, id string) (entity.Record, error)
}

// Update is one store change delivered to a subscriber: the latest value for
// the key plus its staleness flag. The value is a deep copy.
type Update struct {
	Key     cache.Key
	Value   entity.Value
	Version uint64
	Stale   bool
}

// query remembers how to refetch a key: the original list parameters, or the
// record id for single-record keys.
type query struct {
	params url.Values
	id     string
	single bool
}

// Channel fans store changes out to subscribers and keeps subscribed keys
// fresh. Concurrent subscribers to one key coalesce onto a single network
// call; each store event is delivered exactly once per subscriber.
// Callbacks are invoked synchronously and must not block.
type Channel struct {
	store   *cache.Store
	fetcher Fetcher
	retry   gateway.Policy
	group   singleflight.Group
	logger  *slog.Logger

	mu      sync.Mutex
	subs    map[cache.Key]map[string]func(Update)
	queries map[cache.Key]query
	closed  bool
}

// New creates a channel and registers it as the store's change watcher.
// Pass the zero Policy to disable refetch retries and nil logger for the
// default.
func New(store *cache.Store, fetcher Fetcher, retry gateway.Policy, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	ch := &Channel{
		store:   store,
		fetcher: fetcher,
		retry:   retry,
		logger:  logger.With("component", "subscribe"),
		subs:    make(map[cache.Key]map[string]func(Update)),
		queries: make(map[cache.Key]query),
	}
	store.SetOnChange(ch.handleChange)
	return ch
}

// Subscribe registers fn for the collection addressed by (t, params) and
// returns an unsubscribe func. The current cached value, if any, is
// delivered immediately; a missing or stale entry triggers a fetch. The
// subscription is also removed when ctx is cancelled.
func (ch *Channel) Subscribe(ctx context.Context, t entity.Type, params url.Values, fn func(Update)) func() {
	key := cache.NewKey(t, params)
	return ch.subscribe(ctx, key, query{params: params}, fn)
}

// SubscribeRecord registers fn for a single record key.
func (ch *Channel) SubscribeRecord(ctx context.Context, t entity.Type, id string, fn func(Update)) func() {
	key := cache.NewRecordKey(t, id)
	return ch.subscribe(ctx, key, query{id: id, single: true}, fn)
}

func (ch *Channel) subscribe(ctx context.Context, key cache.Key, q query, fn func(Update)) func() {
	subID := uuid.New().String()

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return func() {}
	}
	if _, ok := ch.subs[key]; !ok {
		ch.subs[key] = make(map[string]func(Update))
		ch.queries[key] = q
	}
	ch.subs[key][subID] = fn
	ch.mu.Unlock()

	ch.store.Retain(key)
	ch.logger.Debug("subscriber added", "key", key.String(), "sub_id", subID)

	entry, ok := ch.store.Get(key)
	if ok {
		fn(Update{Key: key, Value: entry.Value, Version: entry.Version, Stale: entry.Stale()})
	}
	if !ok || entry.Stale() {
		go ch.refetch(context.WithoutCancel(ctx), key)
	}

	unsubscribe := func() { ch.unsubscribe(key, subID) }

	// context.Background has a nil Done channel; spawning a watcher for it
	// would leak a goroutine per subscription.
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsubscribe()
		}()
	}

	return unsubscribe
}

func (ch *Channel) unsubscribe(key cache.Key, subID string) {
	ch.mu.Lock()
	subs, ok := ch.subs[key]
	if !ok {
		ch.mu.Unlock()
		return
	}
	if _, exists := subs[subID]; !exists {
		ch.mu.Unlock()
		return
	}
	delete(subs, subID)
	last := len(subs) == 0
	if last {
		delete(ch.subs, key)
		delete(ch.queries, key)
	}
	ch.mu.Unlock()

	ch.store.Release(key)
	ch.logger.Debug("subscriber removed", "key", key.String(), "sub_id", subID, "last", last)
}

// handleChange is the store's change watcher. Every event is delivered
// exactly once to each subscriber of its key; stale events additionally
// schedule a coalesced refetch.
func (ch *Channel) handleChange(ev cache.Event) {
	ch.mu.Lock()
	subs := ch.subs[ev.Key]
	targets := make([]func(Update), 0, len(subs))
	for _, fn := range subs {
		targets = append(targets, fn)
	}
	refetch := ev.Stale && len(subs) > 0 && !ch.closed
	ch.mu.Unlock()

	update := Update{Key: ev.Key, Value: ev.Value, Version: ev.Version, Stale: ev.Stale}
	for _, fn := range targets {
		fn(update)
	}

	if refetch {
		go ch.refetch(context.Background(), ev.Key)
	}
}

// refetch fetches a key's data and writes it back with a compare-and-set on
// the version observed before the network call. Concurrent calls for the
// same key share one flight. If anything, optimistic or otherwise, writes
// the key while the fetch is in the air, the now-stale response is discarded
// rather than clobbering it.
func (ch *Channel) refetch(ctx context.Context, key cache.Key) {
	_, err, _ := ch.group.Do(key.String(), func() (any, error) {
		ch.mu.Lock()
		q, ok := ch.queries[key]
		ch.mu.Unlock()
		if !ok {
			return nil, nil
		}

		observed := ch.store.Version(key)

		var value entity.Value
		err := ch.retry.Do(ctx, func(ctx context.Context) error {
			var ferr error
			if q.single {
				var rec entity.Record
				if rec, ferr = ch.fetcher.Get(ctx, key.Type, q.id); ferr == nil {
					value = &entity.Single{Record: rec}
				}
			} else {
				var col *entity.Collection
				if col, ferr = ch.fetcher.List(ctx, key.Type, q.params); ferr == nil {
					value = col
				}
			}
			return ferr
		})
		if err != nil {
			return nil, err
		}
		return nil, ch.store.CompareAndSet(key, value, observed)
	})
	if err != nil && !errors.Is(err, cache.ErrStaleWrite) {
		ch.logger.Warn("refetch failed", "key", key.String(), "error", err)
	}
}

// Close detaches the channel from the store and drops all subscriptions.
func (ch *Channel) Close() {
	ch.store.SetOnChange(nil)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	for key := range ch.subs {
		delete(ch.subs, key)
		delete(ch.queries, key)
	}
}
