package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/budget"
	"budget-tracker/internal/config"
	"budget-tracker/internal/events"
	"budget-tracker/internal/handlers"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := storage.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Database ready", "driver", cfg.DBDriver)

	if err := bootstrapAdmin(store, cfg.AdminUser, cfg.AdminPassword, logger); err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc := budget.NewService(store, publisher, logger, budget.Options{
		StrictImport:     cfg.StrictImport,
		ScopeIndexToUser: cfg.IndexScopeUser,
	})
	h := handlers.NewHandlers(store, svc, cfg.SecureCookie)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handlers.Logging(logger)(setupRouter(h)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting budget server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cleaner, ok := store.(interface{ CleanExpiredSessions() error }); ok {
		g.Go(func() error {
			cleanSessions(gctx, cleaner.CleanExpiredSessions, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupRouter registers every route. Everything except the login endpoints
// requires a session.
func setupRouter(h *handlers.Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)

	protected := func(fn http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(fn)
	}

	mux.Handle("GET /{$}", protected(h.Index))

	mux.Handle("POST /budgets", protected(h.CreateBudget))
	mux.Handle("POST /budgets/import", protected(h.ImportBudget))
	mux.Handle("POST /budgets/{id}", protected(h.EditBudget))
	mux.Handle("POST /budgets/{id}/delete", protected(h.DeleteBudget))
	mux.Handle("GET /budgets/{id}/summary", protected(h.Summary))
	mux.Handle("GET /budgets/{id}/export", protected(h.ExportBudget))
	mux.Handle("POST /budgets/{id}/expenses", protected(h.AddExpense))

	mux.Handle("POST /expenses/{id}", protected(h.EditExpense))
	mux.Handle("POST /expenses/{id}/delete", protected(h.DeleteExpense))

	mux.Handle("GET /categories", protected(h.ListCategories))
	mux.Handle("POST /categories", protected(h.CreateCategory))

	return mux
}

type userStore interface {
	UserCount() (int, error)
	CreateUser(username, passwordHash string) (*models.User, error)
}

// bootstrapAdmin creates the configured user when the database has none.
func bootstrapAdmin(store userStore, username, password string, logger *slog.Logger) error {
	if username == "" {
		return nil
	}
	count, err := store.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := store.CreateUser(username, hash)
	if err != nil {
		return err
	}
	logger.Info("Created initial user", "username", user.Username, "user_id", user.ID)
	return nil
}

type closingPublisher interface {
	events.Publisher
	Close() error
}

type nopCloser struct{ events.Nop }

func (nopCloser) Close() error { return nil }

func newPublisher(cfg *config.Config, logger *slog.Logger) (closingPublisher, error) {
	if cfg.AMQPURL == "" {
		return nopCloser{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing events to AMQP", "exchange", cfg.AMQPExchange)
	return p, nil
}

func cleanSessions(ctx context.Context, clean func() error, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if err := clean(); err != nil {
			logger.Warn("Failed to clean expired sessions", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
