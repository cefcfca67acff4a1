package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget-tracker/internal/models"
)

const expenseColumns = `e.id, e.amount, e.date, e.description, e.category_id, e.budget_id, c.name, c.user_id`

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// FindBudget loads a budget owned by userID with its expenses and their categories.
func (db *DB) FindBudget(ctx context.Context, userID, id int64) (*models.Budget, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, title, amount, start_date, end_date, user_id FROM budgets WHERE id = ? AND user_id = ?",
		id, userID,
	)

	var b models.Budget
	if err := row.Scan(&b.ID, &b.Title, &b.Amount, &b.StartDate, &b.EndDate, &b.UserID); err != nil {
		return nil, notFound(err)
	}
	b.StartDate, b.EndDate = b.StartDate.UTC(), b.EndDate.UTC()

	expenses, err := db.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.budget_id = ?
		ORDER BY e.date, e.id`, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load expenses of budget %d: %w", b.ID, err)
	}
	b.Expenses = expenses
	return &b, nil
}

// ListBudgets returns the user's budgets, most recent first, without expenses.
func (db *DB) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, title, amount, start_date, end_date, user_id FROM budgets WHERE user_id = ? ORDER BY start_date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(&b.ID, &b.Title, &b.Amount, &b.StartDate, &b.EndDate, &b.UserID); err != nil {
			return nil, err
		}
		b.StartDate, b.EndDate = b.StartDate.UTC(), b.EndDate.UTC()
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// CreateBudget inserts b and sets its ID.
func (db *DB) CreateBudget(ctx context.Context, b *models.Budget) error {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO budgets (title, amount, start_date, end_date, user_id) VALUES (?, ?, ?, ?, ?)",
		b.Title, b.Amount, b.StartDate.UTC(), b.EndDate.UTC(), b.UserID,
	)
	if err != nil {
		return err
	}
	b.ID, err = result.LastInsertId()
	return err
}

// UpdateBudget replaces the fields of an existing budget owned by b.UserID.
func (db *DB) UpdateBudget(ctx context.Context, b *models.Budget) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE budgets SET title = ?, amount = ?, start_date = ?, end_date = ? WHERE id = ? AND user_id = ?",
		b.Title, b.Amount, b.StartDate.UTC(), b.EndDate.UTC(), b.ID, b.UserID,
	)
	return affected(result, err)
}

// DeleteBudget removes a budget and its expenses.
func (db *DB) DeleteBudget(ctx context.Context, userID, id int64) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM expenses WHERE budget_id IN (SELECT id FROM budgets WHERE id = ? AND user_id = ?)",
		id, userID,
	)
	if err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM budgets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// FindExpense retrieves an expense whose budget is owned by userID.
func (db *DB) FindExpense(ctx context.Context, userID, id int64) (*models.Expense, error) {
	expenses, err := db.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.id = ? AND b.user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, models.ErrNotFound
	}
	return &expenses[0], nil
}

// ListAllExpenses returns every stored expense regardless of owner.
func (db *DB) ListAllExpenses(ctx context.Context) ([]models.Expense, error) {
	return db.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		ORDER BY e.date DESC, e.id DESC`)
}

// ListExpensesByUser returns the expenses of every budget owned by userID.
func (db *DB) ListExpensesByUser(ctx context.Context, userID int64) ([]models.Expense, error) {
	return db.queryExpenses(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE b.user_id = ?
		ORDER BY e.date DESC, e.id DESC`, userID)
}

// CreateExpense inserts e and sets its ID.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) error {
	return insertExpense(ctx, db.conn, e)
}

// CreateExpenses inserts a batch of expenses in one transaction.
func (db *DB) CreateExpenses(ctx context.Context, expenses []*models.Expense) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range expenses {
		if err := insertExpense(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateExpense replaces the fields of an existing expense.
func (db *DB) UpdateExpense(ctx context.Context, e *models.Expense) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, date = ?, description = ?, category_id = ?, budget_id = ? WHERE id = ?",
		e.Amount, e.Date.UTC(), e.Description, e.CategoryID, e.BudgetID, e.ID,
	)
	return affected(result, err)
}

// DeleteExpense removes an expense whose budget is owned by userID.
func (db *DB) DeleteExpense(ctx context.Context, userID, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND budget_id IN (SELECT id FROM budgets WHERE user_id = ?)",
		id, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// FindCategory looks up a category by exact name.
func (db *DB) FindCategory(ctx context.Context, userID int64, name string) (*models.Category, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, user_id FROM categories WHERE user_id = ? AND name = ? ORDER BY id LIMIT 1",
		userID, name,
	)
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindCategoryByID retrieves a category owned by userID.
func (db *DB) FindCategoryByID(ctx context.Context, userID, id int64) (*models.Category, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, user_id FROM categories WHERE id = ? AND user_id = ?",
		id, userID,
	)
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateCategory inserts c and sets its ID.
func (db *DB) CreateCategory(ctx context.Context, c *models.Category) error {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO categories (name, user_id) VALUES (?, ?)",
		c.Name, c.UserID,
	)
	if err != nil {
		return err
	}
	c.ID, err = result.LastInsertId()
	return err
}

// ListCategories returns the user's categories ordered by name.
func (db *DB) ListCategories(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, name, user_id FROM categories WHERE user_id = ? ORDER BY name, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExpense(ctx context.Context, ex execer, e *models.Expense) error {
	result, err := ex.ExecContext(ctx,
		"INSERT INTO expenses (amount, date, description, category_id, budget_id) VALUES (?, ?, ?, ?, ?)",
		e.Amount, e.Date.UTC(), e.Description, e.CategoryID, e.BudgetID,
	)
	if err != nil {
		return err
	}
	e.ID, err = result.LastInsertId()
	return err
}

func (db *DB) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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
			return nil, err
		}
		e.Date = e.Date.UTC()
		if categoryName.Valid {
			e.Category = &models.Category{ID: e.CategoryID, Name: categoryName.String, UserID: categoryUser.Int64}
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func affected(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
