// ABOUTME: Tests for entity records, lifecycle transitions and deep cloning
// ABOUTME: Validates that clones never alias their source records

package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusPending, StatusSuspended, StatusArchived, StatusLocked, StatusDeleted} {
		assert.True(t, s.Valid(), "status %q", s)
	}
	assert.False(t, Status("removed").Valid())
	assert.False(t, Status("").Valid())
}

func TestMeta_SetStatus(t *testing.T) {
	now := time.Now()
	e := &Expense{Meta: Meta{ID: "e1", Status: StatusActive}}

	e.SetStatus(StatusDeleted, now)

	assert.Equal(t, StatusDeleted, e.Status)
	assert.Equal(t, now, e.StatusChangedAt)
	assert.Equal(t, now, e.UpdatedAt)
}

func TestNew_AllTypes(t *testing.T) {
	for typ := range map[Type]string(plurals) {
		rec, err := New(typ)
		require.NoError(t, err, "type %q", typ)
		assert.Equal(t, typ, rec.EntityType())
	}

	_, err := New(Type("vehicle"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestType_Plural(t *testing.T) {
	assert.Equal(t, "expenses", TypeExpense.Plural())
	assert.Equal(t, "bank_accounts", TypeBankAccount.Plural())
	assert.Equal(t, "categories", TypeCategory.Plural())
}

func TestClone_Independent(t *testing.T) {
	deadline := time.Now().Add(24 * time.Hour)
	g := &Goal{
		Meta:     Meta{ID: "g1", Status: StatusActive},
		Name:     "vacation",
		Target:   decimal.NewFromInt(1000),
		Deadline: &deadline,
	}

	clone := g.Clone().(*Goal)
	clone.Name = "car"
	clone.SetStatus(StatusArchived, time.Now())
	*clone.Deadline = clone.Deadline.Add(time.Hour)

	assert.Equal(t, "vacation", g.Name)
	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, deadline, *g.Deadline)
}

func TestCollection_CloneValue_Independent(t *testing.T) {
	col := &Collection{
		Type: TypeExpense,
		Records: []Record{
			&Expense{Meta: Meta{ID: "e1", Status: StatusActive}, Amount: decimal.NewFromInt(30)},
		},
		Count: 1,
	}

	clone := col.CloneValue().(*Collection)
	clone.Records[0].SetStatus(StatusDeleted, time.Now())
	clone.Records = append(clone.Records, &Expense{Meta: Meta{ID: "e2"}})

	assert.Equal(t, StatusActive, col.Records[0].RecordStatus())
	assert.Len(t, col.Records, 1)
}

func TestCollection_Find(t *testing.T) {
	col := &Collection{
		Type: TypeExpense,
		Records: []Record{
			&Expense{Meta: Meta{ID: "e1"}},
			&Expense{Meta: Meta{ID: "e2"}},
		},
	}

	assert.Equal(t, 0, col.Find("e1"))
	assert.Equal(t, 1, col.Find("e2"))
	assert.Equal(t, -1, col.Find("e9"))
}

func TestCollection_Filtered(t *testing.T) {
	col := &Collection{
		Type: TypeBudget,
		Records: []Record{
			&Budget{Meta: Meta{ID: "b1", Status: StatusActive}},
			&Budget{Meta: Meta{ID: "b2", Status: StatusDeleted}},
			&Budget{Meta: Meta{ID: "b3", Status: StatusActive}},
		},
	}

	active := col.Filtered(func(s Status) bool { return s == StatusActive })
	require.Len(t, active, 2)
	assert.Equal(t, "b1", active[0].RecordID())
	assert.Equal(t, "b3", active[1].RecordID())
}

func TestExpense_JSONRoundTrip(t *testing.T) {
	in := &Expense{
		Meta:          Meta{ID: "e1", Status: StatusActive},
		Description:   "groceries",
		Amount:        decimal.RequireFromString("30.50"),
		BankAccountID: "a1",
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Expense
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "e1", out.ID)
	assert.True(t, out.Amount.Equal(in.Amount))
	assert.Equal(t, "a1", out.BankAccountID)
}
