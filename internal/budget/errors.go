package budget

import (
	"fmt"

	"budget-tracker/internal/models"
)

// ErrNotFound reports a budget, expense or category id that does not exist for the acting user.
var ErrNotFound = models.ErrNotFound

// Reason identifies which rule a validation failure broke.
type Reason string

const (
	EmptyTitle        Reason = "EmptyTitle"
	NonPositiveAmount Reason = "NonPositiveAmount"
	MissingDates      Reason = "MissingDates"
	InvalidRange      Reason = "InvalidRange"
	DateOutOfRange    Reason = "DateOutOfRange"
	MissingFields     Reason = "MissingFields"
)

// ValidationError is returned when user input violates a budget or expense rule.
// No mutation happens when one is returned.
type ValidationError struct {
	Field  string
	Reason Reason
	msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Message returns the text shown to the user.
func (e *ValidationError) Message() string {
	if e.msg == "" {
		return string(e.Reason)
	}
	return e.msg
}

// FormatError reports a malformed import file. Line is 1-based.
type FormatError struct {
	Line  int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Message returns the text shown to the user.
func (e *FormatError) Message() string {
	return "The file could not be imported: " + e.Error()
}
