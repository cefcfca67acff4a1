package budget

import (
	"budget-tracker/internal/models"
)

// ValidateBudget checks a candidate budget. Only the first broken rule is reported,
// in this order: title, amount, dates, range.
func ValidateBudget(b *models.Budget) error {
	if b.Title == "" {
		return &ValidationError{Field: "title", Reason: EmptyTitle, msg: "All fields are required and must be valid."}
	}
	if !b.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: NonPositiveAmount, msg: "Budget amount has to be greater than 0."}
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return &ValidationError{Field: "dates", Reason: MissingDates, msg: "All fields are required and must be valid."}
	}
	if !b.StartDate.Before(b.EndDate) {
		return &ValidationError{Field: "endDate", Reason: InvalidRange, msg: "Start Date must be earlier than End Date."}
	}
	return nil
}

// ValidateExpense checks a candidate expense against the window of the budget that owns it.
// Amount is checked before the date range, and the date range before the required fields.
func ValidateExpense(e *models.Expense, owner *models.Budget) error {
	if owner == nil {
		return ErrNotFound
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: NonPositiveAmount, msg: "Expense amount must be greater than 0."}
	}
	if e.Date.Before(owner.StartDate) || e.Date.After(owner.EndDate) {
		return &ValidationError{Field: "date", Reason: DateOutOfRange, msg: "Expense date must be within the budget's start and end dates."}
	}
	if e.Description == "" || e.CategoryID == models.NoCategory {
		return &ValidationError{Field: "description", Reason: MissingFields, msg: "All fields are required."}
	}
	return nil
}
