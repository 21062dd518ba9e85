// ABOUTME: Mutation coordinator: optimistic patch, snapshot, submit, reconcile
// ABOUTME: Success merges authoritative data and invalidates dependents; failure restores the snapshot

package mutate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fintrack/internal/cache"
	"github.com/2389/fintrack/internal/entity"
)

// Remote is what the coordinator needs from the fetch gateway.
type Remote interface {
	Create(ctx context.Context, rec entity.Record) (entity.Record, error)
	Update(ctx context.Context, rec entity.Record) (entity.Record, error)
	Delete(ctx context.Context, t entity.Type, id string) (entity.Record, error)
	Restore(ctx context.Context, t entity.Type, id string) (entity.Record, error)
	UpdateStatus(ctx context.Context, t entity.Type, id string, status entity.Status) (entity.Record, error)
}

// Dependencies resolves which entity types a settled write must invalidate.
type Dependencies interface {
	DependentsOf(t entity.Type) []entity.Type
}

// patchFunc applies an optimistic transformation to one cached value,
// returning the replacement or nil to leave the value untouched.
type patchFunc func(v entity.Value, now time.Time) entity.Value

// Coordinator executes logical writes against the store and the remote API.
// Each mutation runs the protocol Idle -> Applying -> Submitted ->
// {Committed | RolledBack}; the store's version guard arbitrates races
// between overlapping mutations.
type Coordinator struct {
	store       *cache.Store
	remote      Remote
	deps        Dependencies
	descriptors map[entity.Type]Descriptor
	logger      *slog.Logger
}

// New creates a coordinator. Pass nil descriptors for the default table and
// nil logger for the default.
func New(store *cache.Store, remote Remote, deps Dependencies, descriptors map[entity.Type]Descriptor, logger *slog.Logger) *Coordinator {
	if descriptors == nil {
		descriptors = DefaultDescriptors()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:       store,
		remote:      remote,
		deps:        deps,
		descriptors: descriptors,
		logger:      logger.With("component", "coordinator"),
	}
}

// Create submits a new record. If the type's descriptor provides a
// provisional row, cached collections optimistically show it until the
// server's authoritative row replaces it; otherwise the mutation goes
// straight to Submitted.
func (c *Coordinator) Create(ctx context.Context, rec entity.Record) (entity.Record, error) {
	t := rec.EntityType()
	var patch patchFunc
	var placeholder string
	if desc, ok := c.descriptors[t]; ok && desc.Provisional != nil {
		placeholder = provisionalID()
		row := desc.Provisional(rec, placeholder, time.Now())
		patch = func(v entity.Value, now time.Time) entity.Value {
			return appendRow(v, row)
		}
	}
	return c.run(ctx, t, "create", patch, placeholder, func(ctx context.Context) (entity.Record, error) {
		return c.remote.Create(ctx, rec)
	})
}

// Update submits a full-record edit, optimistically replacing the cached
// row's fields.
func (c *Coordinator) Update(ctx context.Context, rec entity.Record) (entity.Record, error) {
	t := rec.EntityType()
	patch := func(v entity.Value, now time.Time) entity.Value {
		row := rec.Clone()
		row.Touch(now)
		return replaceRow(v, row, "")
	}
	return c.run(ctx, t, "update", patch, "", func(ctx context.Context) (entity.Record, error) {
		return c.remote.Update(ctx, rec)
	})
}

// Delete soft-deletes, optimistically transitioning the cached row to
// StatusDeleted.
func (c *Coordinator) Delete(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	return c.run(ctx, t, "delete", statusPatch(id, entity.StatusDeleted), "", func(ctx context.Context) (entity.Record, error) {
		return c.remote.Delete(ctx, t, id)
	})
}

// Restore reverses a soft delete, optimistically transitioning the cached
// row back to StatusActive.
func (c *Coordinator) Restore(ctx context.Context, t entity.Type, id string) (entity.Record, error) {
	return c.run(ctx, t, "restore", statusPatch(id, entity.StatusActive), "", func(ctx context.Context) (entity.Record, error) {
		return c.remote.Restore(ctx, t, id)
	})
}

// UpdateStatus applies an arbitrary lifecycle transition, optimistically.
func (c *Coordinator) UpdateStatus(ctx context.Context, t entity.Type, id string, status entity.Status) (entity.Record, error) {
	return c.run(ctx, t, "update_status", statusPatch(id, status), "", func(ctx context.Context) (entity.Record, error) {
		return c.remote.UpdateStatus(ctx, t, id, status)
	})
}

// run executes the mutation protocol. patch may be nil (no Applying state).
// placeholder is the provisional row id for creates, empty otherwise.
func (c *Coordinator) run(ctx context.Context, t entity.Type, op string, patch patchFunc, placeholder string, call func(context.Context) (entity.Record, error)) (entity.Record, error) {
	m := &mutation{id: uuid.NewString(), op: op, state: stateIdle}

	var snap *cache.Snapshot
	tokens := make(map[cache.Key]uint64)

	keys := c.store.Keys(func(k cache.Key) bool { return k.Type == t })
	if patch != nil && len(keys) > 0 {
		m.to(stateApplying, c.logger)
		snap = c.store.Snapshot(keys)
		now := time.Now()
		for _, k := range keys {
			version, err := c.store.Patch(k, func(v entity.Value) entity.Value {
				return patch(v, now)
			})
			if err != nil {
				continue
			}
			snap.Expect(k, version)
			tokens[k] = version
		}
	}

	m.to(stateSubmitted, c.logger)
	rec, err := call(ctx)
	if err != nil {
		m.to(stateRolledBack, c.logger)
		if snap != nil {
			c.store.Restore(snap)
		}
		return nil, err
	}

	m.to(stateCommitted, c.logger)
	c.commit(t, rec, tokens, placeholder)
	return rec, nil
}

// commit reconciles a successful settlement: the authoritative record
// replaces the optimistic value under the version guard, then every
// dependent type is invalidated. A commit that lost the version race to a
// newer write invalidates its key instead, so the cache converges on server
// truth through a refetch rather than clobbering the newer value.
func (c *Coordinator) commit(t entity.Type, rec entity.Record, tokens map[cache.Key]uint64, placeholder string) {
	for key, token := range tokens {
		entry, ok := c.store.Get(key)
		if !ok {
			continue
		}
		next := replaceRow(entry.Value, rec, placeholder)
		if next == nil {
			continue
		}
		if err := c.store.Set(key, next, token); errors.Is(err, cache.ErrStaleWrite) {
			c.store.Invalidate(func(k cache.Key) bool { return k == key })
		}
	}

	// Keys of this type the optimistic phase never touched (absent at
	// submission, or the patch had nothing to do) can only converge by
	// refetching.
	for _, key := range c.store.Keys(func(k cache.Key) bool { return k.Type == t }) {
		if _, patched := tokens[key]; !patched {
			k := key
			c.store.Invalidate(func(q cache.Key) bool { return q == k })
		}
	}

	for _, dep := range c.deps.DependentsOf(t) {
		c.logger.Debug("invalidating dependent type", "source", t, "dependent", dep)
		c.store.InvalidateType(dep)
	}
}

// statusPatch returns an optimistic updater that transitions the row with
// the given id.
func statusPatch(id string, status entity.Status) patchFunc {
	return func(v entity.Value, now time.Time) entity.Value {
		switch val := v.(type) {
		case *entity.Single:
			if val.Record == nil || val.Record.RecordID() != id {
				return nil
			}
			row := val.Record.Clone()
			row.SetStatus(status, now)
			return &entity.Single{Record: row}
		case *entity.Collection:
			idx := val.Find(id)
			if idx < 0 {
				return nil
			}
			row := val.Records[idx].Clone()
			row.SetStatus(status, now)
			val.Records[idx] = row
			return val
		}
		return nil
	}
}

// replaceRow swaps the authoritative (or optimistic) record into a cached
// value. For collections, the row is matched by id, falling back to the
// provisional placeholder id for creates. Returns nil if the value holds no
// matching row.
func replaceRow(v entity.Value, rec entity.Record, placeholder string) entity.Value {
	switch val := v.(type) {
	case *entity.Single:
		if val.Record == nil {
			return nil
		}
		id := val.Record.RecordID()
		if id != rec.RecordID() && (placeholder == "" || id != placeholder) {
			return nil
		}
		return &entity.Single{Record: rec.Clone()}
	case *entity.Collection:
		idx := val.Find(rec.RecordID())
		if idx < 0 && placeholder != "" {
			idx = val.Find(placeholder)
		}
		if idx < 0 {
			return nil
		}
		out := val.CloneValue().(*entity.Collection)
		out.Records[idx] = rec.Clone()
		return out
	}
	return nil
}

// appendRow adds a provisional row to a cached collection, bumping the
// count. Single-record values are left untouched.
func appendRow(v entity.Value, row entity.Record) entity.Value {
	col, ok := v.(*entity.Collection)
	if !ok {
		return nil
	}
	out := col.CloneValue().(*entity.Collection)
	out.Records = append(out.Records, row.Clone())
	out.Count++
	return out
}
