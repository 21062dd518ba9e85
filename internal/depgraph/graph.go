// ABOUTME: Static table of server-derived dependencies between entity types
// ABOUTME: Writing a source type requires invalidating every dependent type's cached keys

package depgraph

import "github.com/2389/fintrack/internal/entity"

// dependents maps each entity type to the types whose server-computed fields
// change when it is written. Bank account balances are functions of the
// transactional rows; budget histories are snapshots the server maintains
// from budget writes. Types with no derived dependents are listed explicitly
// so a missing entry always means "unknown type", not "no edges".
var dependents = map[entity.Type][]entity.Type{
	entity.TypeExpense:       {entity.TypeBankAccount},
	entity.TypeIncome:        {entity.TypeBankAccount},
	entity.TypeFixedExpense:  {entity.TypeBankAccount},
	entity.TypeBudget:        {entity.TypeBudgetHistory},
	entity.TypeBankAccount:   {},
	entity.TypeBudgetHistory: {},
	entity.TypeGoal:          {},
	entity.TypeReminder:      {},
	entity.TypeCategory:      {},
}

// DependentsOf returns the entity types that must be invalidated after a
// settled write of t. The returned slice is a copy.
func DependentsOf(t entity.Type) []entity.Type {
	deps, ok := dependents[t]
	if !ok || len(deps) == 0 {
		return nil
	}
	return append([]entity.Type(nil), deps...)
}
