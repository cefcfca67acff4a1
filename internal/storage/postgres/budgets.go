package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"budget-tracker/internal/models"
)

const expenseColumns = `e.id, e.amount, e.date, e.description, e.category_id, e.budget_id, c.name, c.user_id`

func (s *Store) FindBudget(ctx context.Context, userID, id int64) (*models.Budget, error) {
	query := `
		SELECT id, title, amount, start_date, end_date, user_id
		FROM budgets
		WHERE id = $1 AND user_id = $2
	`
	var b models.Budget
	err := s.db.QueryRowContext(ctx, query, id, userID).Scan(
		&b.ID, &b.Title, &b.Amount, &b.StartDate, &b.EndDate, &b.UserID,
	)
	if err != nil {
		return nil, notFound(err)
	}
	b.StartDate, b.EndDate = b.StartDate.UTC(), b.EndDate.UTC()

	b.Expenses, err = s.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.budget_id = $1
		ORDER BY e.date, e.id`, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expenses of budget %d: %w", b.ID, err)
	}
	return &b, nil
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	query := `
		SELECT id, title, amount, start_date, end_date, user_id
		FROM budgets
		WHERE user_id = $1
		ORDER BY start_date DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(&b.ID, &b.Title, &b.Amount, &b.StartDate, &b.EndDate, &b.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.StartDate, b.EndDate = b.StartDate.UTC(), b.EndDate.UTC()
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (s *Store) CreateBudget(ctx context.Context, b *models.Budget) error {
	query := `
		INSERT INTO budgets (title, amount, start_date, end_date, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, b.Title, b.Amount, b.StartDate.UTC(), b.EndDate.UTC(), b.UserID).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

func (s *Store) UpdateBudget(ctx context.Context, b *models.Budget) error {
	query := `
		UPDATE budgets
		SET title = $1, amount = $2, start_date = $3, end_date = $4
		WHERE id = $5 AND user_id = $6
	`
	result, err := s.db.ExecContext(ctx, query, b.Title, b.Amount, b.StartDate.UTC(), b.EndDate.UTC(), b.ID, b.UserID)
	return affected(result, err)
}

// DeleteBudget relies on ON DELETE CASCADE to remove the expenses.
func (s *Store) DeleteBudget(ctx context.Context, userID, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete budget: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *Store) FindExpense(ctx context.Context, userID, id int64) (*models.Expense, error) {
	expenses, err := s.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.id = $1 AND b.user_id = $2`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, models.ErrNotFound
	}
	return &expenses[0], nil
}

func (s *Store) ListAllExpenses(ctx context.Context) ([]models.Expense, error) {
	return s.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		ORDER BY e.date DESC, e.id DESC`)
}

func (s *Store) ListExpensesByUser(ctx context.Context, userID int64) ([]models.Expense, error) {
	return s.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE b.user_id = $1
		ORDER BY e.date DESC, e.id DESC`, userID)
}

func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) error {
	return insertExpense(ctx, s.db, e)
}

func (s *Store) CreateExpenses(ctx context.Context, expenses []*models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range expenses {
		if err := insertExpense(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateExpense(ctx context.Context, e *models.Expense) error {
	query := `
		UPDATE expenses
		SET amount = $1, date = $2, description = $3, category_id = $4, budget_id = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query, e.Amount, e.Date.UTC(), e.Description, e.CategoryID, e.BudgetID, e.ID)
	return affected(result, err)
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id int64) (bool, error) {
	query := `
		DELETE FROM expenses e
		USING budgets b
		WHERE e.id = $1 AND b.id = e.budget_id AND b.user_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *Store) FindCategory(ctx context.Context, userID int64, name string) (*models.Category, error) {
	query := `
		SELECT id, name, user_id
		FROM categories
		WHERE user_id = $1 AND name = $2
		ORDER BY id
		LIMIT 1
	`
	var c models.Category
	if err := s.db.QueryRowContext(ctx, query, userID, name).Scan(&c.ID, &c.Name, &c.UserID); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) FindCategoryByID(ctx context.Context, userID, id int64) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id FROM categories WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&c.ID, &c.Name, &c.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, user_id) VALUES ($1, $2) RETURNING id`, c.Name, c.UserID,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, user_id FROM categories WHERE user_id = $1 ORDER BY name, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertExpense(ctx context.Context, q queryRower, e *models.Expense) error {
	query := `
		INSERT INTO expenses (amount, date, description, category_id, budget_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query, e.Amount, e.Date.UTC(), e.Description, e.CategoryID, e.BudgetID).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var (
			e            models.Expense
			categoryName sql.NullString
			categoryUser sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Amount, &e.Date, &e.Description, &e.CategoryID, &e.BudgetID,
			&categoryName, &categoryUser); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Date = e.Date.UTC()
		if categoryName.Valid {
			e.Category = &models.Category{ID: e.CategoryID, Name: categoryName.String, UserID: categoryUser.Int64}
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
