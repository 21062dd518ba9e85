// ABOUTME: Tests for the versioned entity store
// ABOUTME: Validates version guards, optimistic patches, invalidation, snapshots and retention

package cache

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fintrack/internal/entity"
)

func expenseCollection(ids ...string) *entity.Collection {
	col := &entity.Collection{Type: entity.TypeExpense, Count: len(ids)}
	for _, id := range ids {
		col.Records = append(col.Records, &entity.Expense{
			Meta: entity.Meta{ID: id, Status: entity.StatusActive},
		})
	}
	return col
}

func expenseKey() Key {
	return NewKey(entity.TypeExpense, nil)
}

func TestStore_GetMissing(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, ok := s.Get(expenseKey())
	assert.False(t, ok)
}

func TestStore_SetAndGet(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, uint64(1), entry.Version)
	assert.False(t, entry.Stale())

	col := entry.Value.(*entity.Collection)
	require.Len(t, col.Records, 1)
	assert.Equal(t, "e1", col.Records[0].RecordID())
}

func TestStore_Get_ReturnsDeepCopy(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	entry, _ := s.Get(key)
	entry.Value.(*entity.Collection).Records[0].SetStatus(entity.StatusDeleted, time.Now())

	again, _ := s.Get(key)
	assert.Equal(t, entity.StatusActive, again.Value.(*entity.Collection).Records[0].RecordStatus())
}

func TestStore_Set_StaleWriteDiscarded(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 5))

	err := s.Set(key, expenseCollection("old"), 3)
	assert.ErrorIs(t, err, ErrStaleWrite)

	entry, _ := s.Get(key)
	assert.Equal(t, uint64(5), entry.Version)
	assert.Equal(t, "e1", entry.Value.(*entity.Collection).Records[0].RecordID())
}

func TestStore_Set_EqualVersionWins(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 5))
	require.NoError(t, s.Set(key, expenseCollection("e2"), 5))

	entry, _ := s.Get(key)
	assert.Equal(t, "e2", entry.Value.(*entity.Collection).Records[0].RecordID())
}

func TestStore_CompareAndSet(t *testing.T) {
	s := New(nil)
	defer s.Close()
	key := expenseKey()

	// Absent key counts as version 0.
	require.NoError(t, s.CompareAndSet(key, expenseCollection("e1"), 0))
	assert.Equal(t, uint64(1), s.Version(key))

	require.NoError(t, s.CompareAndSet(key, expenseCollection("e2"), 1))
	assert.Equal(t, uint64(2), s.Version(key))

	// A write based on an outdated observation loses, even though Set with
	// the same target version would have been allowed.
	err := s.CompareAndSet(key, expenseCollection("late"), 1)
	assert.ErrorIs(t, err, ErrStaleWrite)

	entry, _ := s.Get(key)
	assert.Equal(t, "e2", entry.Value.(*entity.Collection).Records[0].RecordID())
}

func TestStore_CompareAndSet_ClearsStaleMark(t *testing.T) {
	s := New(nil)
	defer s.Close()
	key := expenseKey()

	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	s.InvalidateType(entity.TypeExpense)

	require.NoError(t, s.CompareAndSet(key, expenseCollection("e1"), 1))
	entry, _ := s.Get(key)
	assert.False(t, entry.Stale())
}

func TestStore_Patch_BumpsVersion(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	version, err := s.Patch(key, func(v entity.Value) entity.Value {
		col := v.(*entity.Collection)
		col.Records[0].SetStatus(entity.StatusDeleted, time.Now())
		return col
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	entry, _ := s.Get(key)
	assert.Equal(t, entity.StatusDeleted, entry.Value.(*entity.Collection).Records[0].RecordStatus())
}

func TestStore_Patch_Missing(t *testing.T) {
	s := New(nil)
	defer s.Close()

	_, err := s.Patch(expenseKey(), func(v entity.Value) entity.Value { return v })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Patch_NilLeavesValue(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	version, err := s.Patch(key, func(v entity.Value) entity.Value { return nil })
	assert.ErrorIs(t, err, ErrUnchanged)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, uint64(1), s.Version(key), "declined patch must not bump the version")
}

func TestStore_VersionMonotonic(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	var last uint64

	check := func() {
		v := s.Version(key)
		assert.GreaterOrEqual(t, v, last)
		last = v
	}

	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	check()
	_, _ = s.Patch(key, func(v entity.Value) entity.Value { return v })
	check()
	_ = s.Set(key, expenseCollection("late"), 1) // stale, discarded
	check()
	s.Restore(s.Snapshot([]Key{key}))
	check()
}

func TestStore_Invalidate_KeepsValue(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	s.InvalidateType(entity.TypeExpense)

	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, entry.Stale())
	assert.Equal(t, "e1", entry.Value.(*entity.Collection).Records[0].RecordID())
}

func TestStore_Invalidate_PredicateScoped(t *testing.T) {
	s := New(nil)
	defer s.Close()

	expKey := expenseKey()
	accKey := NewKey(entity.TypeBankAccount, nil)
	require.NoError(t, s.Set(expKey, expenseCollection("e1"), 1))
	require.NoError(t, s.Set(accKey, &entity.Collection{Type: entity.TypeBankAccount}, 1))

	s.InvalidateType(entity.TypeBankAccount)

	entry, _ := s.Get(expKey)
	assert.False(t, entry.Stale())
	entry, _ = s.Get(accKey)
	assert.True(t, entry.Stale())
}

func TestStore_SetClearsStale(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	s.InvalidateType(entity.TypeExpense)
	require.NoError(t, s.Set(key, expenseCollection("e1"), 2))

	entry, _ := s.Get(key)
	assert.False(t, entry.Stale())
}

func TestSnapshot_RestoreAfterPatch(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	snap := s.Snapshot([]Key{key})
	version, err := s.Patch(key, func(v entity.Value) entity.Value {
		col := v.(*entity.Collection)
		col.Records[0].SetStatus(entity.StatusDeleted, time.Now())
		return col
	})
	require.NoError(t, err)
	snap.Expect(key, version)

	s.Restore(snap)

	entry, _ := s.Get(key)
	assert.Equal(t, entity.StatusActive, entry.Value.(*entity.Collection).Records[0].RecordStatus())
	assert.Greater(t, entry.Version, version, "restore must bump past the in-flight write")
}

func TestSnapshot_RestoreSkipsNewerWrite(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))

	snap := s.Snapshot([]Key{key})
	version, err := s.Patch(key, func(v entity.Value) entity.Value {
		col := v.(*entity.Collection)
		col.Records[0].SetStatus(entity.StatusDeleted, time.Now())
		return col
	})
	require.NoError(t, err)
	snap.Expect(key, version)

	// A newer, unrelated mutation rewrites the entry before rollback.
	_, err = s.Patch(key, func(v entity.Value) entity.Value {
		col := v.(*entity.Collection)
		col.Records[0].SetStatus(entity.StatusSuspended, time.Now())
		return col
	})
	require.NoError(t, err)

	s.Restore(snap)

	entry, _ := s.Get(key)
	assert.Equal(t, entity.StatusSuspended, entry.Value.(*entity.Collection).Records[0].RecordStatus(),
		"rollback must not clobber a value owned by a newer mutation")
	assert.True(t, entry.Stale(),
		"a contested entry still holds the failed mutation's rows and must be marked for refetch")
}

func TestSnapshot_AbsentKeyIgnored(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	snap := s.Snapshot([]Key{key})

	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	s.Restore(snap)

	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "e1", entry.Value.(*entity.Collection).Records[0].RecordID())
}

func TestStore_OnChange_Events(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var mu sync.Mutex
	var events []Event
	s.SetOnChange(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	s.InvalidateType(entity.TypeExpense)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.False(t, events[0].Stale)
	assert.True(t, events[1].Stale)
	assert.Equal(t, key, events[1].Key)
}

func TestStore_RetentionEviction(t *testing.T) {
	s := New(nil, WithRetention(time.Millisecond))
	defer s.Close()

	key := expenseKey()
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	pinned := NewKey(entity.TypeExpense, url.Values{"status": {"active"}})
	require.NoError(t, s.Set(pinned, expenseCollection("e2"), 1))
	s.Retain(pinned)

	time.Sleep(5 * time.Millisecond)
	s.runSweep()

	_, ok := s.Get(key)
	assert.False(t, ok, "unpinned entry should be evicted")
	_, ok = s.Get(pinned)
	assert.True(t, ok, "pinned entry must survive")

	assert.Equal(t, uint64(1), s.Stats().Evictions)
}

func TestStore_ReleaseStartsRetention(t *testing.T) {
	s := New(nil, WithRetention(time.Millisecond))
	defer s.Close()

	key := expenseKey()
	s.Retain(key)
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	s.Release(key)

	time.Sleep(5 * time.Millisecond)
	s.runSweep()

	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestStore_Stats(t *testing.T) {
	s := New(nil)
	defer s.Close()

	key := expenseKey()
	_, _ = s.Get(key)
	require.NoError(t, s.Set(key, expenseCollection("e1"), 1))
	_, _ = s.Get(key)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := New(nil)
	s.Close()
	s.Close()
}
