// Package subscribe fans cache changes out to view-layer subscribers.
//
// Subscribers register per key and receive every change event for that key
// exactly once, starting with the currently cached value. Missing or stale
// entries trigger a refetch; concurrent refetches of one key coalesce onto
// a single network call via singleflight, and the result is written back
// under the store's version guard so a slow response never overwrites a
// newer optimistic write. Subscriptions pin their key against eviction
// until the last subscriber leaves.
package subscribe
