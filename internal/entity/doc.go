// Package entity defines the tracked record types, their lifecycle
// statuses, and the Value containers cached by the store.
package entity
