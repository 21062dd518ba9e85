// ABOUTME: Deep-copy snapshots of cache entries for optimistic-mutation rollback
// ABOUTME: Restore is version-aware: it never clobbers entries rewritten by newer mutations

package cache

import (
	"time"

	"github.com/2389/fintrack/internal/entity"
)

type snapshotEntry struct {
	value entity.Value // nil if the key was absent at snapshot time
	taken uint64       // version at snapshot time
	// expect is the version the owning mutation last wrote to this key.
	// Restore only touches an entry whose current version still equals
	// expect; anything newer belongs to a later mutation and is left for
	// that mutation's own settlement.
	expect uint64
}

// Snapshot is a deep copy of a set of entries, captured immediately before
// an optimistic patch. It lives only as long as the in-flight mutation.
type Snapshot struct {
	entries map[Key]*snapshotEntry
}

// Keys returns the snapshotted keys.
func (sn *Snapshot) Keys() []Key {
	out := make([]Key, 0, len(sn.entries))
	for k := range sn.entries {
		out = append(out, k)
	}
	return out
}

// Expect records the version the owning mutation wrote to key after the
// snapshot was taken (the return value of Patch).
func (sn *Snapshot) Expect(key Key, version uint64) {
	if e, ok := sn.entries[key]; ok {
		e.expect = version
	}
}

// Snapshot deep-copies the current entries for the given keys. Absent keys
// are recorded as absent so Restore can tell them apart from skipped keys.
func (s *Store) Snapshot(keys []Key) *Snapshot {
	sn := &Snapshot{entries: make(map[Key]*snapshotEntry, len(keys))}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range keys {
		e := &snapshotEntry{}
		if st, ok := s.entries[k]; ok {
			if st.value != nil {
				e.value = st.value.CloneValue()
			}
			e.taken = st.version
			e.expect = st.version
		}
		sn.entries[k] = e
	}
	return sn
}

// Restore writes snapshotted values back after a failed mutation. For each
// key, the value is restored only if the current version still equals the
// version the mutation last wrote there; a higher version means a newer,
// unrelated mutation owns the entry now, and rewriting it wholesale would
// clobber that mutation's rows. Such entries are marked stale instead: the
// failed mutation's optimistic rows are still present in them, and only a
// refetch can reconcile both outcomes. Restored entries get a version bumped
// past the current one, so the failed mutation's late in-flight response can
// never clobber the rollback.
func (s *Store) Restore(sn *Snapshot) {
	now := time.Now()

	s.mu.Lock()
	var evs []Event
	for k, snap := range sn.entries {
		st, ok := s.entries[k]
		if !ok || snap.value == nil {
			// Key evicted meanwhile, or was absent pre-mutation.
			continue
		}
		if snap.expect != 0 && st.version != snap.expect {
			s.logger.Debug("rollback marked contested entry stale",
				"key", k.String(),
				"current_version", st.version,
				"expected_version", snap.expect)
			st.staleAt = now
			evs = append(evs, s.eventLocked(k, st))
			continue
		}
		st.value = snap.value.CloneValue()
		st.version++
		evs = append(evs, s.eventLocked(k, st))
	}
	fn := s.onChange
	s.mu.Unlock()

	for _, ev := range evs {
		s.emit(fn, ev)
	}
}
