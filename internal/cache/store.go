// ABOUTME: Versioned in-memory store for server-fetched entity state
// ABOUTME: Supports optimistic patches, deep snapshots, version-guarded writes and stale marking

package cache

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/fintrack/internal/entity"
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("cache entry not found")

// ErrStaleWrite is returned when a version-guarded write loses to a newer
// write. It is a correctness mechanism, not a fault: callers converge by
// invalidating instead of surfacing it.
var ErrStaleWrite = errors.New("stale write discarded")

// ErrUnchanged is returned by Patch when the updater declined to change the
// value. The version is not bumped.
var ErrUnchanged = errors.New("patch left value unchanged")

// defaultRetention is how long an unwatched entry survives before the
// sweeper evicts it.
const defaultRetention = 5 * time.Minute

// Entry is a read-out of one cached value. Value is a deep copy; mutating it
// never affects the store.
type Entry struct {
	Value   entity.Value
	Version uint64
	StaleAt time.Time
}

// Stale reports whether the entry has been marked for revalidation.
func (e Entry) Stale() bool { return !e.StaleAt.IsZero() }

// Event describes one store change, delivered to the change watcher.
type Event struct {
	Key     Key
	Value   entity.Value
	Version uint64
	Stale   bool
}

// Stats counts store activity since creation.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type entryState struct {
	value       entity.Value
	version     uint64
	staleAt     time.Time
	refs        int
	lastTouched time.Time
}

// Store is the single mutable shared resource of the client: a keyed map of
// versioned entries. All access goes through its narrow contract; no caller
// may hold a returned value across a network suspension point and write it
// back without the version guard.
type Store struct {
	mu        sync.RWMutex
	entries   map[Key]*entryState
	onChange  func(Event)
	retention time.Duration
	logger    *slog.Logger

	hits      uint64
	misses    uint64
	evictions uint64

	done   chan struct{}
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithRetention overrides how long unwatched entries are retained.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// New creates a store and starts its eviction sweeper. Pass nil logger for
// the default.
func New(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		entries:   make(map[Key]*entryState),
		retention: defaultRetention,
		logger:    logger.With("component", "cache"),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.sweep()
	return s
}

// SetOnChange registers the single change watcher. The watcher is invoked
// outside the store lock, once per change event, with a deep copy of the
// value. The subscription channel is the expected watcher.
func (s *Store) SetOnChange(fn func(Event)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Get returns the entry for key. The value is a deep copy.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.entries[key]
	if !ok || st.value == nil {
		// Retained-but-never-fetched keys hold no value yet.
		s.misses++
		return Entry{}, false
	}
	s.hits++
	st.lastTouched = time.Now()
	return Entry{Value: st.value.CloneValue(), Version: st.version, StaleAt: st.staleAt}, true
}

// Version returns the current version for key, or 0 if absent.
func (s *Store) Version(key Key) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.entries[key]; ok {
		return st.version
	}
	return 0
}

// Keys returns every key matching the predicate.
func (s *Store) Keys(pred func(Key) bool) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Key
	for k := range s.entries {
		if pred(k) {
			out = append(out, k)
		}
	}
	return out
}

// Set writes value at the given version. The write is discarded with
// ErrStaleWrite if a newer version is already present, which is what lets a
// slow response lose to the write that superseded it. A successful Set
// clears the stale mark.
func (s *Store) Set(key Key, value entity.Value, version uint64) error {
	s.mu.Lock()
	st, ok := s.entries[key]
	if ok && version < st.version {
		s.mu.Unlock()
		s.logger.Debug("stale write discarded",
			"key", key.String(),
			"write_version", version,
			"current_version", st.version)
		return ErrStaleWrite
	}
	if !ok {
		st = &entryState{}
		s.entries[key] = st
	}
	st.value = value.CloneValue()
	st.version = version
	st.staleAt = time.Time{}
	st.lastTouched = time.Now()
	ev := s.eventLocked(key, st)
	fn := s.onChange
	s.mu.Unlock()

	s.emit(fn, ev)
	return nil
}

// CompareAndSet writes value only if the entry's version is still exactly
// observed, assigning version observed+1; an absent key counts as version 0.
// Any interleaved write, even one that produced the same version number the
// caller would have used, makes the write lose with ErrStaleWrite. This is
// the refetch writeback path: the caller observes the version before the
// network call, and anything that landed in between wins.
func (s *Store) CompareAndSet(key Key, value entity.Value, observed uint64) error {
	s.mu.Lock()
	st, ok := s.entries[key]
	var current uint64
	if ok {
		current = st.version
	}
	if current != observed {
		s.mu.Unlock()
		s.logger.Debug("stale write discarded",
			"key", key.String(),
			"observed_version", observed,
			"current_version", current)
		return ErrStaleWrite
	}
	if !ok {
		st = &entryState{}
		s.entries[key] = st
	}
	st.value = value.CloneValue()
	st.version = observed + 1
	st.staleAt = time.Time{}
	st.lastTouched = time.Now()
	ev := s.eventLocked(key, st)
	fn := s.onChange
	s.mu.Unlock()

	s.emit(fn, ev)
	return nil
}

// Patch applies a pure transformation to the current value and bumps the
// version. The updater receives a deep copy and returns the replacement, or
// nil to decline (ErrUnchanged). Returns the new version. Used for optimistic
// writes; the stale mark is left untouched.
func (s *Store) Patch(key Key, updater func(entity.Value) entity.Value) (uint64, error) {
	s.mu.Lock()
	st, ok := s.entries[key]
	if !ok || st.value == nil {
		s.mu.Unlock()
		return 0, ErrNotFound
	}
	next := updater(st.value.CloneValue())
	if next == nil {
		version := st.version
		s.mu.Unlock()
		return version, ErrUnchanged
	}
	st.value = next
	st.version++
	st.lastTouched = time.Now()
	version := st.version
	ev := s.eventLocked(key, st)
	fn := s.onChange
	s.mu.Unlock()

	s.emit(fn, ev)
	return version, nil
}

// Invalidate marks every entry matching the predicate stale, without
// discarding the currently held value (stale-while-revalidate). Watchers are
// notified so they can refetch.
func (s *Store) Invalidate(pred func(Key) bool) {
	now := time.Now()

	s.mu.Lock()
	var evs []Event
	for k, st := range s.entries {
		if !pred(k) {
			continue
		}
		st.staleAt = now
		evs = append(evs, s.eventLocked(k, st))
	}
	fn := s.onChange
	s.mu.Unlock()

	for _, ev := range evs {
		s.emit(fn, ev)
	}
}

// InvalidateType marks every entry of the given entity type stale.
func (s *Store) InvalidateType(t entity.Type) {
	s.Invalidate(func(k Key) bool { return k.Type == t })
}

// Retain pins a key against eviction. Each Retain must be paired with a
// Release.
func (s *Store) Retain(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[key]
	if !ok {
		st = &entryState{lastTouched: time.Now()}
		s.entries[key] = st
	}
	st.refs++
}

// Release drops one pin on a key. Once unpinned, the entry remains for the
// retention window and is then evicted by the sweeper.
func (s *Store) Release(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[key]
	if !ok {
		return
	}
	if st.refs > 0 {
		st.refs--
	}
	st.lastTouched = time.Now()
}

// Stats returns a snapshot of store counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entries:   len(s.entries),
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
}

// eventLocked builds a change event for key. Must be called with mu held.
func (s *Store) eventLocked(key Key, st *entryState) Event {
	ev := Event{Key: key, Version: st.version, Stale: !st.staleAt.IsZero()}
	if st.value != nil {
		ev.Value = st.value.CloneValue()
	}
	return ev
}

func (s *Store) emit(fn func(Event), ev Event) {
	if fn != nil {
		fn(ev)
	}
}

// sweep periodically evicts entries with no pins that have been idle past
// the retention window.
func (s *Store) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.done:
			return
		}
	}
}

func (s *Store) runSweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, st := range s.entries {
		if st.refs > 0 {
			continue
		}
		if now.Sub(st.lastTouched) > s.retention {
			delete(s.entries, k)
			s.evictions++
		}
	}
}
