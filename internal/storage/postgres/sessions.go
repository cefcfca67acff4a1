package postgres

import (
	"fmt"
	"time"

	"budget-tracker/internal/models"
)

func (s *Store) CreateUser(username, passwordHash string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(`
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, created_at
	`, username, passwordHash).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (s *Store) CreateSession(token string, userID int64, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES ($1, $2, $3, NOW())`,
		token, userID, expiresAt.UTC(),
	)
	return err
}

func (s *Store) ValidateSession(token string) (*models.User, error) {
	info, err := s.ValidateSessionWithInfo(token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

func (s *Store) ValidateSessionWithInfo(token string) (*models.SessionInfo, error) {
	var u models.User
	var lastActivity, expiresAt time.Time
	err := s.db.QueryRow(`
		SELECT u.id, u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = $1 AND s.expires_at > NOW()
	`, token).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &models.SessionInfo{User: &u, LastActivity: lastActivity, ExpiresAt: expiresAt}, nil
}

func (s *Store) RenewSession(token string, newExpiresAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_activity = NOW(), expires_at = $1 WHERE token = $2`,
		newExpiresAt.UTC(), token,
	)
	return err
}

func (s *Store) DeleteSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (s *Store) CleanExpiredSessions() error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= NOW()`)
	return err
}
