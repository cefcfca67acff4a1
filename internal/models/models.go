package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when a referenced record does not exist
// or belongs to another user.
var ErrNotFound = errors.New("not found")

// NoCategory is the category id of an expense that has not been assigned one.
const NoCategory int64 = 0

// Category groups expenses. Names are unique per user.
type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UserID int64  `json:"user_id"`
}

// Budget is a time-bounded spending plan owned by a single user.
type Budget struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	UserID    int64           `json:"user_id"`
	Expenses  []Expense       `json:"expenses,omitempty"`
}

// Expense is a single spending record attached to exactly one budget.
// Date is always held in UTC; use NewExpense or NormalizeDate when building one.
type Expense struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	CategoryID  int64           `json:"category_id"`
	BudgetID    int64           `json:"budget_id"`
	Category    *Category       `json:"category,omitempty"`
}

// NewExpense builds an expense with its date converted to UTC and CRLF line
// endings in the description reduced to LF, the form they take after a CSV round trip.
func NewExpense(amount decimal.Decimal, date time.Time, description string, categoryID, budgetID int64) *Expense {
	e := &Expense{
		Amount:      amount,
		Description: strings.ReplaceAll(description, "\r\n", "\n"),
		CategoryID:  categoryID,
		BudgetID:    budgetID,
	}
	e.NormalizeDate(date)
	return e
}

// NormalizeDate sets the expense date in UTC.
func (e *Expense) NormalizeDate(date time.Time) {
	e.Date = date.UTC()
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *User
	LastActivity time.Time
	ExpiresAt    time.Time
}
