package recipe

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"banhngot/backend/internal/cache"
	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
)

// Resolve flattens a recipe plus a set of variant selections into the
// materials one unit of the cake consumes. Variant materials are added on
// top of the base recipe's, and lines sharing a material are summed.
func Resolve(rec *domain.Recipe, selections []domain.VariantSelection) ([]domain.RecipeLine, error) {
	if rec == nil {
		return nil, store.ErrRecipeNotFound
	}

	totals := make(map[string]float64, len(rec.Lines))
	order := make([]string, 0, len(rec.Lines))
	add := func(line domain.RecipeLine) {
		if _, seen := totals[line.MaterialID]; !seen {
			order = append(order, line.MaterialID)
		}
		totals[line.MaterialID] += line.Quantity
	}

	for _, line := range rec.Lines {
		add(line)
	}
	for _, sel := range selections {
		item, err := findVariantItem(rec, sel)
		if err != nil {
			return nil, err
		}
		for _, line := range item.Lines {
			add(line)
		}
	}

	lines := make([]domain.RecipeLine, 0, len(order))
	for _, materialID := range order {
		lines = append(lines, domain.RecipeLine{MaterialID: materialID, Quantity: totals[materialID]})
	}
	return lines, nil
}

// Scale multiplies resolved per-unit lines by an order quantity.
func Scale(lines []domain.RecipeLine, quantity float64) []domain.RecipeLine {
	scaled := make([]domain.RecipeLine, len(lines))
	for i, line := range lines {
		scaled[i] = domain.RecipeLine{MaterialID: line.MaterialID, Quantity: line.Quantity * quantity}
	}
	return scaled
}

func findVariantItem(rec *domain.Recipe, sel domain.VariantSelection) (*domain.VariantItem, error) {
	for gi := range rec.Variants {
		group := &rec.Variants[gi]
		if group.VariantKey != sel.VariantKey {
			continue
		}
		for ii := range group.Items {
			if group.Items[ii].ItemKey == sel.ItemKey {
				return &group.Items[ii], nil
			}
		}
	}
	return nil, fmt.Errorf("variant %s/%s: %w", sel.VariantKey, sel.ItemKey, store.ErrRecipeNotFound)
}

// RecipeSource is the subset of the repository the resolver needs.
type RecipeSource interface {
	GetRecipeByCakeID(ctx context.Context, cakeID string) (*domain.Recipe, error)
}

// Service resolves cakes to per-unit material lines with a cache in front.
type Service struct {
	source   RecipeSource
	cache    cache.RecipeCache
	cacheTTL time.Duration
}

func NewService(source RecipeSource, cacheStore cache.RecipeCache, cacheTTL time.Duration) *Service {
	if cacheStore == nil {
		cacheStore = cache.NoopRecipeCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &Service{source: source, cache: cacheStore, cacheTTL: cacheTTL}
}

// ResolveMaterials returns the per-unit material lines for a cake with the
// given variant selections. Callers scale by order quantity.
func (s *Service) ResolveMaterials(ctx context.Context, cakeID string, selections []domain.VariantSelection) ([]domain.RecipeLine, error) {
	key := cacheKey(cakeID, selections)
	if lines, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return lines, nil
	} else if err != nil {
		log.Printf("[recipe] WARN: cache get %s: %v", key, err)
	}

	rec, err := s.source.GetRecipeByCakeID(ctx, cakeID)
	if err != nil {
		return nil, fmt.Errorf("cake %s: %w", cakeID, store.ErrRecipeNotFound)
	}
	lines, err := Resolve(rec, selections)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, lines, s.cacheTTL); err != nil {
		log.Printf("[recipe] WARN: cache set %s: %v", key, err)
	}
	return lines, nil
}

// InvalidateCake drops cached resolutions for a cake after a recipe update.
func (s *Service) InvalidateCake(ctx context.Context, cakeID string) {
	if err := s.cache.Invalidate(ctx, "recipe:"+cakeID+":"); err != nil {
		log.Printf("[recipe] WARN: cache invalidate %s: %v", cakeID, err)
	}
}

func cacheKey(cakeID string, selections []domain.VariantSelection) string {
	if len(selections) == 0 {
		return "recipe:" + cakeID + ":base"
	}
	parts := make([]string, 0, len(selections))
	for _, sel := range selections {
		parts = append(parts, sel.VariantKey+"="+sel.ItemKey)
	}
	sort.Strings(parts)
	key := "recipe:" + cakeID + ":"
	for i, part := range parts {
		if i > 0 {
			key += ","
		}
		key += part
	}
	return key
}
