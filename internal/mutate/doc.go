// Package mutate implements the optimistic mutation protocol.
//
// # Protocol
//
// Every logical write runs the same state machine:
//
//	Idle -> Applying -> Submitted -> Committed
//	                              -> RolledBack
//
// In Applying, the coordinator snapshots the affected cache entries and
// patches them with the predicted outcome, so views update immediately. In
// Submitted, the request is on the wire. Success commits the server's
// authoritative record over the optimistic value; failure restores the
// snapshot.
//
// # Settlement and Races
//
// Commits are version-guarded: the coordinator writes the authoritative
// record using the version token it obtained when it patched. If a second
// mutation touched the same entry in the meantime, the first commit loses
// the guard; instead of clobbering the newer value it marks the key stale,
// and the cache converges on server truth through a refetch. Rollbacks are
// equally version-aware and never overwrite entries a later mutation owns.
//
// # Creates
//
// Per-type Descriptors decide whether a create gets an optimistic
// provisional row. Transactional entities (expenses, incomes, fixed
// expenses, reminders) are shown immediately as a pending placeholder row
// with a synthetic id; the server's row replaces it on commit. Types whose
// records carry server-computed fields create without an optimistic phase.
//
// # Dependency Propagation
//
// After a commit, every entity type that the written type feeds (per the
// depgraph table) is invalidated wholesale. Derived fields like account
// balances are never recomputed client-side; they converge by refetch.
package mutate
