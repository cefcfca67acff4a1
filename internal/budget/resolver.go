package budget

import (
	"context"
	"errors"
	"fmt"

	"budget-tracker/internal/models"
)

// CategoryResolver finds a user's category by name, creating it on first use.
type CategoryResolver struct {
	store CategoryStore
}

// NewCategoryResolver creates a resolver backed by store.
func NewCategoryResolver(store CategoryStore) *CategoryResolver {
	return &CategoryResolver{store: store}
}

// Find returns the category named name for userID without creating it.
// It returns ErrNotFound when there is none.
func (r *CategoryResolver) Find(ctx context.Context, userID int64, name string) (*models.Category, error) {
	c, err := r.store.FindCategory(ctx, userID, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, err
}

// ResolveOrCreate returns the category named name for userID. An existing category is
// returned unchanged; a missing one is persisted before returning so its id is usable
// by later rows of the same import. Names are matched exactly, the empty name included.
func (r *CategoryResolver) ResolveOrCreate(ctx context.Context, userID int64, name string) (*models.Category, error) {
	c, err := r.Find(ctx, userID, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	c = &models.Category{Name: name, UserID: userID}
	if err := r.store.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	return c, nil
}
