// ABOUTME: Lifecycle status vocabulary shared by every tracked entity
// ABOUTME: Defines soft-delete semantics: delete and restore are status transitions

package entity

import "time"

// Status is the lifecycle state of a record. Records are never physically
// removed; "delete" transitions a record to StatusDeleted and "restore"
// transitions it back to StatusActive.
type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
	StatusArchived  Status = "archived"
	StatusLocked    Status = "locked"
	StatusDeleted   Status = "deleted"
)

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusSuspended, StatusArchived, StatusLocked, StatusDeleted:
		return true
	}
	return false
}

// Meta carries the identity and lifecycle fields common to every entity.
// CreatedAt, UpdatedAt and StatusChangedAt are owned by the server; the
// client only writes them as optimistic placeholders pending confirmation.
type Meta struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	StatusChangedAt time.Time `json:"status_changed_at"`
}

// RecordID returns the record's server-assigned identifier.
func (m *Meta) RecordID() string { return m.ID }

// RecordStatus returns the record's current lifecycle status.
func (m *Meta) RecordStatus() Status { return m.Status }

// SetStatus applies a lifecycle transition, stamping StatusChangedAt and
// UpdatedAt with now. The stamps are placeholders until the server confirms.
func (m *Meta) SetStatus(s Status, now time.Time) {
	m.Status = s
	m.StatusChangedAt = now
	m.UpdatedAt = now
}

// Touch stamps UpdatedAt, as an optimistic placeholder for a field edit.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now
}
