// Package cache provides the versioned in-memory entity store.
//
// # Overview
//
// The store is the single mutable shared resource of the client. Every
// cached value is addressed by a Key (entity type plus canonical filter
// signature) and carries a monotonically increasing version. All reads
// return deep copies; all writes go through the store's narrow contract.
//
// # Version Guard
//
// Writes name the version they believe they are producing:
//
//	err := store.Set(key, value, token)
//
// A write whose token is below the entry's current version is discarded
// with ErrStaleWrite. This is how a slow network response loses to an
// optimistic write that landed while the response was in the air: the
// caller captures its token before the network call, and anything that
// bumps the version in between wins.
//
// Patch is the optimistic write path. It applies a pure transformation to
// a deep copy of the current value, bumps the version, and returns the new
// version for use as a later Set token.
//
// CompareAndSet is the refetch writeback path: it only lands if the version
// is still exactly what the caller observed before its network call, so an
// interleaved write wins even when it produced the same version number the
// writeback was aiming for.
//
// # Staleness
//
// Invalidation is stale-while-revalidate: Invalidate marks entries stale
// without discarding the held value, so readers keep showing data while a
// refetch is in flight. A successful Set clears the mark.
//
// # Snapshots
//
// Snapshot/Restore support mutation rollback. Restore is version-aware: it
// only rewrites an entry whose version still matches what the failed
// mutation last wrote there, and it bumps the version past the current one
// so the failed mutation's own late response can never clobber the
// rollback.
//
// # Lifecycle
//
// Retain pins a key against eviction while subscribers watch it; once the
// last pin is released, a background sweeper evicts the entry after the
// retention window. Close stops the sweeper.
package cache
