package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
)

// ResolveFunc yields the per-unit material lines for a cake with the given
// variant selections.
type ResolveFunc func(ctx context.Context, cakeID string, selections []domain.VariantSelection) ([]domain.RecipeLine, error)

// PlanConsumption computes the ledger mutations one order's lines require
// against a branch snapshot. It mutates nothing itself.
//
// Customer orders against a branch that stocks any finished goods are served
// from the finished-goods ledger: each deduplicated line with a matching
// (cake, variants) entry decrements that entry, and lines without a matching
// entry are skipped. Every other case draws raw materials per the resolved
// recipe totals.
func PlanConsumption(
	ctx context.Context,
	branch *domain.Branch,
	items []domain.OrderItem,
	orderType domain.OrderType,
	resolve ResolveFunc,
) ([]store.Mutation, error) {
	unique := dedupeItems(items)

	required, err := requiredTotals(ctx, unique, resolve)
	if err != nil {
		return nil, err
	}

	if orderType == domain.OrderTypeCustomer && len(branch.FinishedGoods) > 0 {
		return finishedGoodsMutations(branch, unique)
	}
	return materialMutations(branch, required)
}

// dedupeItems merges order lines sharing a cake and variant signature,
// summing quantities.
func dedupeItems(items []domain.OrderItem) []domain.OrderItem {
	merged := make([]domain.OrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		key := item.CakeID + "|" + item.Signature()
		if at, ok := index[key]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func requiredTotals(ctx context.Context, items []domain.OrderItem, resolve ResolveFunc) ([]domain.RecipeLine, error) {
	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, item := range items {
		lines, err := resolve(ctx, item.CakeID, item.SelectedVariants)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if _, seen := totals[line.MaterialID]; !seen {
				order = append(order, line.MaterialID)
			}
			totals[line.MaterialID] += line.Quantity * item.Quantity
		}
	}

	required := make([]domain.RecipeLine, 0, len(order))
	for _, materialID := range order {
		required = append(required, domain.RecipeLine{MaterialID: materialID, Quantity: totals[materialID]})
	}
	return required, nil
}

func finishedGoodsMutations(branch *domain.Branch, items []domain.OrderItem) ([]store.Mutation, error) {
	mutations := make([]store.Mutation, 0, len(items))
	for _, item := range items {
		entry := branch.FindFinishedGood(item.CakeID, item.Signature())
		if entry == nil {
			continue
		}
		if entry.Volume-item.Quantity < 0 {
			return nil, fmt.Errorf("finished goods %s: %w", item.CakeID, store.ErrInsufficientStock)
		}
		mutations = append(mutations, store.Mutation{
			Ledger:           store.LedgerFinishedGood,
			CakeID:           item.CakeID,
			SelectedVariants: item.SelectedVariants,
			Delta:            -item.Quantity,
			Type:             domain.ChangeForOrder,
		})
	}
	return mutations, nil
}

func materialMutations(branch *domain.Branch, required []domain.RecipeLine) ([]store.Mutation, error) {
	var missing []string
	for _, line := range required {
		if branch.FindMaterial(line.MaterialID) == nil {
			missing = append(missing, line.MaterialID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("branch %s lacks %s: %w", branch.ID, strings.Join(missing, ", "), store.ErrMissingMaterial)
	}

	mutations := make([]store.Mutation, 0, len(required))
	for _, line := range required {
		entry := branch.FindMaterial(line.MaterialID)
		if entry.Volume-line.Quantity < 0 {
			return nil, fmt.Errorf("material %s: %w", line.MaterialID, store.ErrInsufficientStock)
		}
		mutations = append(mutations, store.Mutation{
			Ledger:     store.LedgerMaterial,
			MaterialID: line.MaterialID,
			Delta:      -line.Quantity,
			Type:       domain.ChangeForOrder,
		})
	}
	return mutations, nil
}
