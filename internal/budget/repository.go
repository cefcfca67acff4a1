package budget

import (
	"context"

	"budget-tracker/internal/models"
)

// CategoryStore is the slice of storage the category resolver needs.
type CategoryStore interface {
	// FindCategory returns ErrNotFound when userID has no category with that exact name.
	FindCategory(ctx context.Context, userID int64, name string) (*models.Category, error)
	// CreateCategory persists c immediately and sets c.ID.
	CreateCategory(ctx context.Context, c *models.Category) error
}

// Repository persists budgets, expenses and categories scoped by user id.
// Every write is durable once it returns.
type Repository interface {
	CategoryStore

	// FindBudget loads a budget with its expenses, each carrying its category.
	FindBudget(ctx context.Context, userID, id int64) (*models.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error)
	CreateBudget(ctx context.Context, b *models.Budget) error
	UpdateBudget(ctx context.Context, b *models.Budget) error
	// DeleteBudget removes the budget and its expenses. It reports false when nothing matched.
	DeleteBudget(ctx context.Context, userID, id int64) (bool, error)

	FindExpense(ctx context.Context, userID, id int64) (*models.Expense, error)
	ListAllExpenses(ctx context.Context) ([]models.Expense, error)
	ListExpensesByUser(ctx context.Context, userID int64) ([]models.Expense, error)
	CreateExpense(ctx context.Context, e *models.Expense) error
	// CreateExpenses persists a batch in one transaction.
	CreateExpenses(ctx context.Context, expenses []*models.Expense) error
	UpdateExpense(ctx context.Context, e *models.Expense) error
	DeleteExpense(ctx context.Context, userID, id int64) (bool, error)

	FindCategoryByID(ctx context.Context, userID, id int64) (*models.Category, error)
	ListCategories(ctx context.Context, userID int64) ([]models.Category, error)
}
