package cache

import (
	"context"
	"time"

	"banhngot/backend/internal/domain"
)

type RecipeCache interface {
	Get(ctx context.Context, key string) ([]domain.RecipeLine, bool, error)
	Set(ctx context.Context, key string, lines []domain.RecipeLine, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

type NoopRecipeCache struct{}

func (NoopRecipeCache) Get(_ context.Context, _ string) ([]domain.RecipeLine, bool, error) {
	return nil, false, nil
}

func (NoopRecipeCache) Set(_ context.Context, _ string, _ []domain.RecipeLine, _ time.Duration) error {
	return nil
}

func (NoopRecipeCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
