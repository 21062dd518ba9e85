// ABOUTME: Per-entity-type mutation descriptors (strategy table)
// ABOUTME: One generic coordinator consults these instead of duplicating protocol per type

package mutate

import (
	"time"

	"github.com/google/uuid"

	"github.com/2389/fintrack/internal/entity"
)

// Descriptor configures how the coordinator treats one entity type. The
// protocol itself is identical for every type; only the optimistic behavior
// for creates varies.
type Descriptor struct {
	Type entity.Type

	// Provisional builds an optimistic placeholder row for a create, from
	// the caller's payload. The returned row must carry the given
	// placeholder id and StatusPending; it is shown in cached collections
	// until the server's authoritative row replaces it. Nil means creates
	// skip the Applying state entirely (the server assigns the id and all
	// computed fields, so there is nothing safe to predict).
	Provisional func(payload entity.Record, id string, now time.Time) entity.Record
}

// provisionalID generates a placeholder id that cannot collide with
// server-assigned ids.
func provisionalID() string {
	return "pending-" + uuid.NewString()
}

// provisionalRow stamps a cloned payload as a pending placeholder. Shared by
// the default descriptors.
func provisionalRow(payload entity.Record, id string, now time.Time) entity.Record {
	row := payload.Clone()
	row.SetStatus(entity.StatusPending, now)
	switch r := row.(type) {
	case *entity.Expense:
		r.ID = id
		r.CreatedAt = now
	case *entity.Income:
		r.ID = id
		r.CreatedAt = now
	case *entity.FixedExpense:
		r.ID = id
		r.CreatedAt = now
	case *entity.Reminder:
		r.ID = id
		r.CreatedAt = now
	}
	return row
}

// DefaultDescriptors returns the standard per-type table. Transactional
// entities get provisional create rows (their shape is fully known client
// side); everything else creates without an optimistic phase.
func DefaultDescriptors() map[entity.Type]Descriptor {
	return map[entity.Type]Descriptor{
		entity.TypeBankAccount:   {Type: entity.TypeBankAccount},
		entity.TypeExpense:       {Type: entity.TypeExpense, Provisional: provisionalRow},
		entity.TypeIncome:        {Type: entity.TypeIncome, Provisional: provisionalRow},
		entity.TypeFixedExpense:  {Type: entity.TypeFixedExpense, Provisional: provisionalRow},
		entity.TypeBudget:        {Type: entity.TypeBudget},
		entity.TypeBudgetHistory: {Type: entity.TypeBudgetHistory},
		entity.TypeGoal:          {Type: entity.TypeGoal},
		entity.TypeReminder:      {Type: entity.TypeReminder, Provisional: provisionalRow},
		entity.TypeCategory:      {Type: entity.TypeCategory},
	}
}
