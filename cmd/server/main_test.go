package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/budget"
	"budget-tracker/internal/handlers"
	"budget-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	defer db.Close()

	svc := budget.NewService(db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), budget.Options{ScopeIndexToUser: true})
	h := handlers.NewHandlers(db, svc, false)

	// Registering conflicting patterns panics
	mux := setupRouter(h)

	tests := []struct {
		name       string
		method     string
		path       string
		accept     string
		wantStatus int
	}{
		{name: "Root redirects to login", method: "GET", path: "/", wantStatus: http.StatusFound},
		{name: "Login page renders", method: "GET", path: "/login", wantStatus: http.StatusOK},
		{name: "Budget import requires auth", method: "POST", path: "/budgets/import", wantStatus: http.StatusFound},
		{name: "Export requires auth", method: "GET", path: "/budgets/1/export", wantStatus: http.StatusFound},
		{name: "API clients get 401", method: "GET", path: "/categories", accept: "application/json", wantStatus: http.StatusUnauthorized},
		{name: "Unknown route", method: "GET", path: "/nope", wantStatus: http.StatusNotFound},
		{name: "Wrong method", method: "GET", path: "/budgets/1/delete", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, "%s %s returned unexpected status", tt.method, tt.path)
		})
	}
}

func TestBootstrapAdmin(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, bootstrapAdmin(db, "admin", "secret", logger))
	user, err := db.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("secret", user.PasswordHash))

	// Second run is a no-op because a user exists
	require.NoError(t, bootstrapAdmin(db, "other", "secret", logger))
	count, err := db.UserCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBootstrapAdmin_NoUserConfigured(t *testing.T) {
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, bootstrapAdmin(db, "", "", slog.New(slog.NewTextHandler(io.Discard, nil))))
	count, err := db.UserCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}
