// ABOUTME: Tests for the static dependency table
// ABOUTME: Transactional writes must map to bank accounts; independent types to nothing

package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/fintrack/internal/entity"
)

func TestDependentsOf_TransactionalTypes(t *testing.T) {
	for _, typ := range []entity.Type{entity.TypeExpense, entity.TypeIncome, entity.TypeFixedExpense} {
		assert.Equal(t, []entity.Type{entity.TypeBankAccount}, DependentsOf(typ), "type %q", typ)
	}
}

func TestDependentsOf_Budget(t *testing.T) {
	assert.Equal(t, []entity.Type{entity.TypeBudgetHistory}, DependentsOf(entity.TypeBudget))
}

func TestDependentsOf_IndependentTypes(t *testing.T) {
	for _, typ := range []entity.Type{entity.TypeBankAccount, entity.TypeGoal, entity.TypeReminder, entity.TypeCategory, entity.TypeBudgetHistory} {
		assert.Empty(t, DependentsOf(typ), "type %q", typ)
	}
}

func TestDependentsOf_ReturnsCopy(t *testing.T) {
	deps := DependentsOf(entity.TypeExpense)
	deps[0] = entity.TypeGoal

	assert.Equal(t, []entity.Type{entity.TypeBankAccount}, DependentsOf(entity.TypeExpense))
}
