package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/budget"
	"budget-tracker/internal/models"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// SessionStore is the user and session half of the storage backend.
type SessionStore interface {
	GetUserByUsername(username string) (*models.User, error)
	CreateSession(token string, userID int64, expiresAt time.Time) error
	ValidateSession(token string) (*models.User, error)
	ValidateSessionWithInfo(token string) (*models.SessionInfo, error)
	RenewSession(token string, newExpiresAt time.Time) error
	DeleteSession(token string) error
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	sessions     SessionStore
	svc          *budget.Service
	secureCookie bool
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions SessionStore, svc *budget.Service, secureCookie bool) *Handlers {
	return &Handlers{
		sessions:     sessions,
		svc:          svc,
		secureCookie: secureCookie,
		logger:       slog.Default().With("component", "http"),
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.unauthorized(w, r)
			return
		}

		sessionInfo, err := h.sessions.ValidateSessionWithInfo(cookie.Value)
		if err != nil {
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			h.unauthorized(w, r)
			return
		}

		// Rolling session: renew if past halfway point
		now := time.Now()
		if sessionInfo.ExpiresAt.Sub(now) < SessionDuration/2 {
			if err := h.sessions.RenewSession(cookie.Value, now.Add(SessionDuration)); err == nil {
				h.setSessionCookie(w, cookie.Value)
			} else {
				h.log(r).Warn("Failed to renew session", "error", err)
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized answers API clients with 401 and sends browsers to the login page.
func (h *Handlers) unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in - Budgets</title></head>
<body>
<form class="login-form" method="post" action="/login">
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<label>Username <input name="username" autocomplete="username" required></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button class="login-btn" type="submit">Sign in</button>
</form>
</body>
</html>
`))

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go to the index
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.sessions.ValidateSession(cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	h.renderLogin(w, r, http.StatusOK, LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, LoginViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, LoginViewModel{Error: "Username and password are required"})
		return
	}

	user, err := h.sessions.GetUserByUsername(username)
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		h.renderLogin(w, r, http.StatusUnauthorized, LoginViewModel{Error: "Invalid username or password"})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.log(r).Error("Failed to generate session token", "error", err)
		h.renderLogin(w, r, http.StatusInternalServerError, LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	if err := h.sessions.CreateSession(token, user.ID, time.Now().Add(SessionDuration)); err != nil {
		h.log(r).Error("Failed to create session", "error", err, "user_id", user.ID)
		h.renderLogin(w, r, http.StatusInternalServerError, LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.setSessionCookie(w, token)
	h.log(r).Info("User logged in", "user_id", user.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.sessions.DeleteSession(cookie.Value); err != nil {
			h.log(r).Warn("Failed to delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, data LoginViewModel) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginTemplate.Execute(w, data); err != nil {
		h.log(r).Error("Template execution error", "error", err)
	}
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps service errors to status codes: validation 422, not found 404,
// malformed import 400, anything else 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *budget.ValidationError
	var ferr *budget.FormatError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  verr.Message(),
			Field:  verr.Field,
			Reason: string(verr.Reason),
		})
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ferr.Message(), Field: ferr.Field})
	case errors.Is(err, budget.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	case errors.Is(err, context.Canceled):
		h.log(r).Debug("Request canceled", "error", err)
	default:
		h.log(r).Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func (h *Handlers) log(r *http.Request) *slog.Logger {
	if id := RequestID(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}
