// Package events announces budget and expense changes to interested consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names an event. It doubles as the AMQP routing key.
type Type string

const (
	BudgetCreated  Type = "budget.created"
	BudgetUpdated  Type = "budget.updated"
	BudgetDeleted  Type = "budget.deleted"
	BudgetImported Type = "budget.imported"
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

// Event is a lightweight notification. Consumers fetch full records by id.
type Event struct {
	Type      Type      `json:"type"`
	UserID    int64     `json:"user_id"`
	BudgetID  int64     `json:"budget_id,omitempty"`
	ExpenseID int64     `json:"expense_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event.
func FromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
