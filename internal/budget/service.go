package budget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"budget-tracker/internal/events"
	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// Options tunes behaviour that differs between deployments.
type Options struct {
	// StrictImport runs ValidateBudget and ValidateExpense on imported data.
	StrictImport bool
	// ScopeIndexToUser limits the expenses listed by ListIndex to the user's own budgets.
	// When false every stored expense is listed.
	ScopeIndexToUser bool
}

// BudgetInput holds the editable fields of a budget.
type BudgetInput struct {
	ID        int64
	Title     string
	Amount    decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
}

// ExpenseInput holds the editable fields of an expense.
type ExpenseInput struct {
	ID          int64
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CategoryID  int64
	BudgetID    int64
}

// Index is everything the main view shows.
type Index struct {
	Budgets    []models.Budget   `json:"budgets"`
	Expenses   []models.Expense  `json:"expenses"`
	Categories []models.Category `json:"categories"`
}

// Service runs the budget and expense operations for an acting user.
type Service struct {
	repo      Repository
	resolver  *CategoryResolver
	importer  *Importer
	publisher events.Publisher
	logger    *slog.Logger
	opts      Options
}

// NewService wires the core around repo. A nil publisher drops events and a nil
// logger uses slog.Default.
func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	resolver := NewCategoryResolver(repo)
	return &Service{
		repo:      repo,
		resolver:  resolver,
		importer:  NewImporter(repo, resolver, opts.StrictImport),
		publisher: publisher,
		logger:    logger.With("component", "budget"),
		opts:      opts,
	}
}

// ListIndex returns the user's budgets and categories plus the expense listing.
func (s *Service) ListIndex(ctx context.Context, userID int64) (*Index, error) {
	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	budgets, err := s.repo.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var expenses []models.Expense
	if s.opts.ScopeIndexToUser {
		expenses, err = s.repo.ListExpensesByUser(ctx, userID)
	} else {
		expenses, err = s.repo.ListAllExpenses(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return &Index{Budgets: budgets, Expenses: expenses, Categories: categories}, nil
}

// CreateBudget validates and stores a new budget owned by userID.
func (s *Service) CreateBudget(ctx context.Context, userID int64, in BudgetInput) (*models.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := in.budget(userID)
	if err := ValidateBudget(b); err != nil {
		return nil, err
	}
	if err := s.repo.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget created", "budget_id", b.ID, "user_id", userID)
	s.publish(ctx, events.Event{Type: events.BudgetCreated, UserID: userID, BudgetID: b.ID})
	return b, nil
}

// EditBudget replaces title, amount and dates of budget id. The owner is re-stamped
// from userID. A mismatch between id and in.ID is reported as ErrNotFound.
func (s *Service) EditBudget(ctx context.Context, userID, id int64, in BudgetInput) (*models.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.ID != id {
		return nil, fmt.Errorf("budget %d: %w", id, ErrNotFound)
	}
	b := in.budget(userID)
	if err := ValidateBudget(b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("update budget %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Budget updated", "budget_id", id, "user_id", userID)
	s.publish(ctx, events.Event{Type: events.BudgetUpdated, UserID: userID, BudgetID: id})
	return b, nil
}

// DeleteBudget removes a budget and its expenses. A missing budget is a no-op.
func (s *Service) DeleteBudget(ctx context.Context, userID, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteBudget(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	if !deleted {
		s.logger.DebugContext(ctx, "Budget to delete not found", "budget_id", id, "user_id", userID)
		return nil
	}

	s.logger.InfoContext(ctx, "Budget deleted", "budget_id", id, "user_id", userID)
	s.publish(ctx, events.Event{Type: events.BudgetDeleted, UserID: userID, BudgetID: id})
	return nil
}

// AddExpense attaches a new expense to budgetID.
func (s *Service) AddExpense(ctx context.Context, userID, budgetID int64, in ExpenseInput) (*models.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	owner, err := s.repo.FindBudget(ctx, userID, budgetID)
	if err != nil {
		return nil, fmt.Errorf("budget %d: %w", budgetID, err)
	}

	e := models.NewExpense(in.Amount, in.Date, in.Description, in.CategoryID, budgetID)
	if err := ValidateExpense(e, owner); err != nil {
		return nil, err
	}
	if e.Category, err = s.repo.FindCategoryByID(ctx, userID, e.CategoryID); err != nil {
		return nil, fmt.Errorf("category %d: %w", e.CategoryID, err)
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created", "expense_id", e.ID, "budget_id", budgetID, "user_id", userID)
	s.publish(ctx, events.Event{Type: events.ExpenseCreated, UserID: userID, BudgetID: budgetID, ExpenseID: e.ID})
	return e, nil
}

// EditExpense replaces date, amount, description and category of expense id and
// attaches it to in.BudgetID, re-checking that budget's window.
func (s *Service) EditExpense(ctx context.Context, userID, id int64, in ExpenseInput) (*models.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.ID != id {
		return nil, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	if _, err := s.repo.FindExpense(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("expense %d: %w", id, err)
	}
	owner, err := s.repo.FindBudget(ctx, userID, in.BudgetID)
	if err != nil {
		return nil, fmt.Errorf("budget %d: %w", in.BudgetID, err)
	}

	e := models.NewExpense(in.Amount, in.Date, in.Description, in.CategoryID, in.BudgetID)
	e.ID = id
	if err := ValidateExpense(e, owner); err != nil {
		return nil, err
	}
	if e.Category, err = s.repo.FindCategoryByID(ctx, userID, e.CategoryID); err != nil {
		return nil, fmt.Errorf("category %d: %w", e.CategoryID, err)
	}
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense updated", "expense_id", id, "budget_id", in.BudgetID, "user_id", userID)
	s.publish(ctx, events.Event{Type: events.ExpenseUpdated, UserID: userID, BudgetID: in.BudgetID, ExpenseID: id})
	return e, nil
}

// DeleteExpense removes an expense. A missing expense is a no-op.
func (s *Service) DeleteExpense(ctx context.Context, userID, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteExpense(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if deleted {
		s.logger.InfoContext(ctx, "Expense deleted", "expense_id", id, "user_id", userID)
		s.publish(ctx, events.Event{Type: events.ExpenseDeleted, UserID: userID, ExpenseID: id})
	}
	return nil
}

// ExportBudget loads a budget with its expenses for WriteCSV.
func (s *Service) ExportBudget(ctx context.Context, userID, id int64) (*models.Budget, error) {
	b, err := s.repo.FindBudget(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("budget %d: %w", id, err)
	}
	return b, nil
}

// ImportBudget creates a budget and its expenses from an uploaded file.
// It returns a nil budget when the file holds no budget line.
func (s *Service) ImportBudget(ctx context.Context, userID int64, r io.Reader) (*models.Budget, error) {
	b, err := s.importer.Import(ctx, r, userID)
	if err != nil {
		if b != nil {
			s.logger.WarnContext(ctx, "Budget import stopped part way",
				"budget_id", b.ID, "user_id", userID, "error", err)
		}
		return b, err
	}
	if b == nil {
		s.logger.InfoContext(ctx, "Budget import had no budget line", "user_id", userID)
		return nil, nil
	}

	s.logger.InfoContext(ctx, "Budget imported", "budget_id", b.ID, "user_id", userID, "expenses", len(b.Expenses))
	s.publish(ctx, events.Event{Type: events.BudgetImported, UserID: userID, BudgetID: b.ID, Count: len(b.Expenses)})
	return b, nil
}

// Summary reports spending of a budget per category.
func (s *Service) Summary(ctx context.Context, userID, id int64) (*Summary, error) {
	b, err := s.repo.FindBudget(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("budget %d: %w", id, err)
	}
	return Summarize(b), nil
}

// ListCategories returns the user's categories.
func (s *Service) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	return s.repo.ListCategories(ctx, userID)
}

// CreateCategory returns the user's category called name, creating it if needed.
// An empty name is rejected.
func (s *Service) CreateCategory(ctx context.Context, userID int64, name string) (*models.Category, error) {
	if name == "" {
		return nil, &ValidationError{Field: "category", Reason: MissingFields, msg: "All fields are required."}
	}
	return s.resolver.ResolveOrCreate(ctx, userID, name)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Failed to publish event", "type", e.Type, "error", err)
	}
}

func (in BudgetInput) budget(userID int64) *models.Budget {
	return &models.Budget{
		ID:        in.ID,
		Title:     in.Title,
		Amount:    in.Amount,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		UserID:    userID,
	}
}
