// ABOUTME: Entity types tracked by the finance client and their wire names
// ABOUTME: Defines the Record interface, per-type structs and the type registry

package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownType is returned when a wire name or Type does not map to a
// registered entity type.
var ErrUnknownType = errors.New("unknown entity type")

// Type identifies one of the tracked entity kinds.
type Type string

const (
	TypeBankAccount   Type = "bank_account"
	TypeExpense       Type = "expense"
	TypeIncome        Type = "income"
	TypeFixedExpense  Type = "fixed_expense"
	TypeBudget        Type = "budget"
	TypeBudgetHistory Type = "budget_history"
	TypeGoal          Type = "goal"
	TypeReminder      Type = "reminder"
	TypeCategory      Type = "category"
)

// plurals maps each type to the key the server uses when it wraps a
// collection in an envelope object, and to the REST resource path segment.
var plurals = map[Type]string{
	TypeBankAccount:   "bank_accounts",
	TypeExpense:       "expenses",
	TypeIncome:        "incomes",
	TypeFixedExpense:  "fixed_expenses",
	TypeBudget:        "budgets",
	TypeBudgetHistory: "budget_histories",
	TypeGoal:          "goals",
	TypeReminder:      "reminders",
	TypeCategory:      "categories",
}

// Plural returns the server-side plural name for the type, used both as the
// envelope key and the REST resource segment.
func (t Type) Plural() string { return plurals[t] }

// Valid reports whether t is a registered entity type.
func (t Type) Valid() bool {
	_, ok := plurals[t]
	return ok
}

// Record is the behavior shared by every tracked entity. All entities embed
// Meta; Clone must return a deep, independent copy.
type Record interface {
	RecordID() string
	RecordStatus() Status
	SetStatus(Status, time.Time)
	Touch(time.Time)
	EntityType() Type
	Clone() Record
}

// New returns a zero-value record of the given type, ready for JSON
// unmarshalling.
func New(t Type) (Record, error) {
	switch t {
	case TypeBankAccount:
		return &BankAccount{}, nil
	case TypeExpense:
		return &Expense{}, nil
	case TypeIncome:
		return &Income{}, nil
	case TypeFixedExpense:
		return &FixedExpense{}, nil
	case TypeBudget:
		return &Budget{}, nil
	case TypeBudgetHistory:
		return &BudgetHistory{}, nil
	case TypeGoal:
		return &Goal{}, nil
	case TypeReminder:
		return &Reminder{}, nil
	case TypeCategory:
		return &Category{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// BankAccount is a user bank account. Balance, RealBalance and
// CommittedFixedExpensesMonth are computed server-side from the transactional
// entities referencing the account; the client never writes them.
type BankAccount struct {
	Meta
	Name                        string          `json:"name"`
	Bank                        string          `json:"bank"`
	Currency                    string          `json:"currency"`
	Balance                     decimal.Decimal `json:"balance"`
	RealBalance                 decimal.Decimal `json:"real_balance"`
	CommittedFixedExpensesMonth decimal.Decimal `json:"committed_fixed_expenses_month"`
}

func (a *BankAccount) EntityType() Type { return TypeBankAccount }

func (a *BankAccount) Clone() Record {
	c := *a
	return &c
}

// Expense is a single outgoing transaction against a bank account.
type Expense struct {
	Meta
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	BankAccountID string          `json:"bank_account_id"`
	CategoryID    string          `json:"category_id,omitempty"`
}

func (e *Expense) EntityType() Type { return TypeExpense }

func (e *Expense) Clone() Record {
	c := *e
	return &c
}

// Income is a single incoming transaction against a bank account.
type Income struct {
	Meta
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	BankAccountID string          `json:"bank_account_id"`
}

func (i *Income) EntityType() Type { return TypeIncome }

func (i *Income) Clone() Record {
	c := *i
	return &c
}

// FixedExpense is a recurring monthly commitment against a bank account.
type FixedExpense struct {
	Meta
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	DayOfMonth    int             `json:"day_of_month"`
	BankAccountID string          `json:"bank_account_id"`
	CategoryID    string          `json:"category_id,omitempty"`
}

func (f *FixedExpense) EntityType() Type { return TypeFixedExpense }

func (f *FixedExpense) Clone() Record {
	c := *f
	return &c
}

// Budget is a spending cap for a category over a month.
type Budget struct {
	Meta
	Name       string          `json:"name"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	CategoryID string          `json:"category_id,omitempty"`
	Month      string          `json:"month"` // YYYY-MM
}

func (b *Budget) EntityType() Type { return TypeBudget }

func (b *Budget) Clone() Record {
	c := *b
	return &c
}

// BudgetHistory is a server-computed monthly snapshot of a budget. It is
// derived from Budget writes and never mutated directly by the client.
type BudgetHistory struct {
	Meta
	BudgetID string          `json:"budget_id"`
	Month    string          `json:"month"`
	Limit    decimal.Decimal `json:"limit"`
	Spent    decimal.Decimal `json:"spent"`
}

func (h *BudgetHistory) EntityType() Type { return TypeBudgetHistory }

func (h *BudgetHistory) Clone() Record {
	c := *h
	return &c
}

// Goal is a savings target.
type Goal struct {
	Meta
	Name     string          `json:"name"`
	Target   decimal.Decimal `json:"target"`
	Saved    decimal.Decimal `json:"saved"`
	Deadline *time.Time      `json:"deadline,omitempty"`
}

func (g *Goal) EntityType() Type { return TypeGoal }

func (g *Goal) Clone() Record {
	c := *g
	if g.Deadline != nil {
		d := *g.Deadline
		c.Deadline = &d
	}
	return &c
}

// Reminder is a dated note, optionally recurring.
type Reminder struct {
	Meta
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	DueAt     time.Time `json:"due_at"`
	Recurring bool      `json:"recurring"`
}

func (r *Reminder) EntityType() Type { return TypeReminder }

func (r *Reminder) Clone() Record {
	c := *r
	return &c
}

// Category labels expenses, fixed expenses and budgets.
type Category struct {
	Meta
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (c *Category) EntityType() Type { return TypeCategory }

func (c *Category) Clone() Record {
	d := *c
	return &d
}
