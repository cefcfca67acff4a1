package storage

import (
	"context"
	"testing"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BudgetStoreTestSuite covers budgets, expenses and categories.
type BudgetStoreTestSuite struct {
	suite.Suite
	db       *DB
	ctx      context.Context
	userID   int64
	otherID  int64
	category *models.Category
}

// SetupTest runs before each test
func (suite *BudgetStoreTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	user, err := db.CreateUser("alice", "hash")
	require.NoError(suite.T(), err)
	other, err := db.CreateUser("bob", "hash")
	require.NoError(suite.T(), err)
	suite.userID, suite.otherID = user.ID, other.ID

	suite.category = &models.Category{Name: "Groceries", UserID: suite.userID}
	require.NoError(suite.T(), db.CreateCategory(suite.ctx, suite.category))
}

// TearDownTest runs after each test
func (suite *BudgetStoreTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *BudgetStoreTestSuite) newBudget(userID int64, title string) *models.Budget {
	b := &models.Budget{
		Title:     title,
		Amount:    decimal.RequireFromString("500.25"),
		StartDate: date(2024, 1, 1),
		EndDate:   date(2024, 1, 31),
		UserID:    userID,
	}
	require.NoError(suite.T(), suite.db.CreateBudget(suite.ctx, b))
	return b
}

func (suite *BudgetStoreTestSuite) newExpense(b *models.Budget, amount string, day int, desc string) *models.Expense {
	e := models.NewExpense(decimal.RequireFromString(amount), date(2024, 1, day), desc, suite.category.ID, b.ID)
	require.NoError(suite.T(), suite.db.CreateExpense(suite.ctx, e))
	return e
}

func (suite *BudgetStoreTestSuite) TestCreateAndFindBudget() {
	b := suite.newBudget(suite.userID, "January")
	assert.NotZero(suite.T(), b.ID)

	got, err := suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "January", got.Title)
	assert.True(suite.T(), got.Amount.Equal(decimal.RequireFromString("500.25")), "amount round trips exactly")
	assert.True(suite.T(), got.StartDate.Equal(date(2024, 1, 1)))
	assert.True(suite.T(), got.EndDate.Equal(date(2024, 1, 31)))
	assert.Equal(suite.T(), time.UTC, got.StartDate.Location())
	assert.Empty(suite.T(), got.Expenses)
}

func (suite *BudgetStoreTestSuite) TestFindBudgetOfOtherUserIsNotFound() {
	b := suite.newBudget(suite.userID, "Private")

	_, err := suite.db.FindBudget(suite.ctx, suite.otherID, b.ID)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	_, err = suite.db.FindBudget(suite.ctx, suite.userID, 9999)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *BudgetStoreTestSuite) TestFindBudgetLoadsExpensesInDateOrder() {
	b := suite.newBudget(suite.userID, "January")
	suite.newExpense(b, "20", 15, "Later")
	suite.newExpense(b, "10", 5, "Earlier")

	got, err := suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got.Expenses, 2)
	assert.Equal(suite.T(), "Earlier", got.Expenses[0].Description)
	assert.Equal(suite.T(), "Later", got.Expenses[1].Description)
	require.NotNil(suite.T(), got.Expenses[0].Category)
	assert.Equal(suite.T(), "Groceries", got.Expenses[0].Category.Name)
}

func (suite *BudgetStoreTestSuite) TestListBudgetsScopedToUser() {
	suite.newBudget(suite.userID, "Mine")
	suite.newBudget(suite.otherID, "Theirs")

	budgets, err := suite.db.ListBudgets(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), budgets, 1)
	assert.Equal(suite.T(), "Mine", budgets[0].Title)
}

func (suite *BudgetStoreTestSuite) TestUpdateBudget() {
	b := suite.newBudget(suite.userID, "Old")
	b.Title = "New"
	b.Amount = decimal.NewFromInt(42)
	require.NoError(suite.T(), suite.db.UpdateBudget(suite.ctx, b))

	got, err := suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "New", got.Title)
	assert.True(suite.T(), got.Amount.Equal(decimal.NewFromInt(42)))

	// Another user cannot update it
	b.UserID = suite.otherID
	assert.ErrorIs(suite.T(), suite.db.UpdateBudget(suite.ctx, b), models.ErrNotFound)
}

func (suite *BudgetStoreTestSuite) TestDeleteBudgetRemovesExpenses() {
	b := suite.newBudget(suite.userID, "January")
	e := suite.newExpense(b, "10", 5, "Milk")

	deleted, err := suite.db.DeleteBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), deleted)

	_, err = suite.db.FindExpense(suite.ctx, suite.userID, e.ID)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	deleted, err = suite.db.DeleteBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), deleted, "second delete finds nothing")
}

func (suite *BudgetStoreTestSuite) TestDeleteBudgetOfOtherUserKeepsIt() {
	b := suite.newBudget(suite.userID, "January")

	deleted, err := suite.db.DeleteBudget(suite.ctx, suite.otherID, b.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), deleted)

	_, err = suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	assert.NoError(suite.T(), err)
}

func (suite *BudgetStoreTestSuite) TestExpenseLifecycle() {
	b := suite.newBudget(suite.userID, "January")
	e := suite.newExpense(b, "12.34", 10, "Bread")
	assert.NotZero(suite.T(), e.ID)

	got, err := suite.db.FindExpense(suite.ctx, suite.userID, e.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), got.Amount.Equal(decimal.RequireFromString("12.34")))
	assert.True(suite.T(), got.Date.Equal(date(2024, 1, 10)))

	got.Description = "Rye bread"
	got.Amount = decimal.RequireFromString("3.5")
	require.NoError(suite.T(), suite.db.UpdateExpense(suite.ctx, got))

	updated, err := suite.db.FindExpense(suite.ctx, suite.userID, e.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Rye bread", updated.Description)

	_, err = suite.db.FindExpense(suite.ctx, suite.otherID, e.ID)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	deleted, err := suite.db.DeleteExpense(suite.ctx, suite.otherID, e.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), deleted, "other users cannot delete it")

	deleted, err = suite.db.DeleteExpense(suite.ctx, suite.userID, e.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), deleted)
}

func (suite *BudgetStoreTestSuite) TestUpdateMissingExpense() {
	e := models.NewExpense(decimal.NewFromInt(1), date(2024, 1, 1), "x", suite.category.ID, 1)
	e.ID = 404
	assert.ErrorIs(suite.T(), suite.db.UpdateExpense(suite.ctx, e), models.ErrNotFound)
}

func (suite *BudgetStoreTestSuite) TestCreateExpensesBatch() {
	b := suite.newBudget(suite.userID, "January")
	batch := []*models.Expense{
		models.NewExpense(decimal.NewFromInt(1), date(2024, 1, 2), "one", suite.category.ID, b.ID),
		models.NewExpense(decimal.NewFromInt(2), date(2024, 1, 3), "two", suite.category.ID, b.ID),
	}
	require.NoError(suite.T(), suite.db.CreateExpenses(suite.ctx, batch))
	assert.NotZero(suite.T(), batch[0].ID)
	assert.NotEqual(suite.T(), batch[0].ID, batch[1].ID)

	got, err := suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), got.Expenses, 2)
}

func (suite *BudgetStoreTestSuite) TestCreateExpensesRollsBackOnFailure() {
	b := suite.newBudget(suite.userID, "January")
	batch := []*models.Expense{
		models.NewExpense(decimal.NewFromInt(1), date(2024, 1, 2), "ok", suite.category.ID, b.ID),
		models.NewExpense(decimal.NewFromInt(2), date(2024, 1, 3), "bad budget", suite.category.ID, 9999),
	}
	assert.Error(suite.T(), suite.db.CreateExpenses(suite.ctx, batch))

	got, err := suite.db.FindBudget(suite.ctx, suite.userID, b.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), got.Expenses)
}

func (suite *BudgetStoreTestSuite) TestListExpenses() {
	mine := suite.newBudget(suite.userID, "Mine")
	theirs := suite.newBudget(suite.otherID, "Theirs")
	suite.newExpense(mine, "1", 1, "mine early")
	suite.newExpense(mine, "2", 20, "mine late")
	suite.newExpense(theirs, "3", 10, "theirs")

	byUser, err := suite.db.ListExpensesByUser(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), byUser, 2)
	assert.Equal(suite.T(), "mine late", byUser[0].Description, "latest first")

	all, err := suite.db.ListAllExpenses(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 3)
}

func (suite *BudgetStoreTestSuite) TestCategories() {
	found, err := suite.db.FindCategory(suite.ctx, suite.userID, "Groceries")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.category.ID, found.ID)

	_, err = suite.db.FindCategory(suite.ctx, suite.userID, "groceries")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound, "names match exactly")

	_, err = suite.db.FindCategory(suite.ctx, suite.otherID, "Groceries")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound, "categories are per user")

	_, err = suite.db.FindCategoryByID(suite.ctx, suite.otherID, suite.category.ID)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	require.NoError(suite.T(), suite.db.CreateCategory(suite.ctx, &models.Category{Name: "Bills", UserID: suite.userID}))
	categories, err := suite.db.ListCategories(suite.ctx, suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), categories, 2)
	assert.Equal(suite.T(), "Bills", categories[0].Name)
	assert.Equal(suite.T(), "Groceries", categories[1].Name)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	password, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err, "failed to hash password")

	user, err := suite.db.CreateUser("testuser", password)
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestUsers() {
	count, err := suite.db.UserCount()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)

	byID, err := suite.db.GetUserByID(suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", byID.Username)

	_, err = suite.db.GetUserByUsername("nobody")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	_, err = suite.db.CreateUser("testuser", "hash")
	assert.Error(suite.T(), err, "usernames are unique")
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	sessionUser, err := suite.db.ValidateSession(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", sessionUser.Username)
}

func (suite *SessionTestSuite) TestExpiredSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.CreateSession(token, suite.user.ID, time.Now().Add(-time.Hour)))

	_, err = suite.db.ValidateSession(token)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	require.NoError(suite.T(), suite.db.CleanExpiredSessions())
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	info, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)

	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestRenewSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	originalInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(token, newExpiry)
	require.NoError(suite.T(), err)

	updatedInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	err = suite.db.DeleteSession(token)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func TestOpen(t *testing.T) {
	store, err := Open("sqlite", ":memory:", "")
	require.NoError(t, err)
	assert.IsType(t, &DB{}, store)
	require.NoError(t, store.Close())

	_, err = Open("mysql", "", "")
	assert.ErrorContains(t, err, "unsupported database driver")
}

// Test suite runners
func TestBudgetStoreSuite(t *testing.T) {
	suite.Run(t, new(BudgetStoreTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
