package storage

import (
	"fmt"
	"time"

	"budget-tracker/internal/budget"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage/postgres"
)

// Store is everything the server needs from a backend.
type Store interface {
	budget.Repository

	CreateUser(username, passwordHash string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	UserCount() (int, error)

	CreateSession(token string, userID int64, expiresAt time.Time) error
	ValidateSession(token string) (*models.User, error)
	ValidateSessionWithInfo(token string) (*models.SessionInfo, error)
	RenewSession(token string, newExpiresAt time.Time) error
	DeleteSession(token string) error

	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open returns the backend selected by driver: "sqlite" opens the file at path,
// "postgres" connects with databaseURL.
func Open(driver, path, databaseURL string) (Store, error) {
	switch driver {
	case "", "sqlite":
		db, err := NewDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		s, err := postgres.Open(databaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
