package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
)

// staticResolve serves fixed per-unit lines keyed by cake id.
func staticResolve(lines map[string][]domain.RecipeLine) ResolveFunc {
	return func(_ context.Context, cakeID string, _ []domain.VariantSelection) ([]domain.RecipeLine, error) {
		resolved, ok := lines[cakeID]
		if !ok {
			return nil, store.ErrRecipeNotFound
		}
		return resolved, nil
	}
}

func materialBranch() *domain.Branch {
	return &domain.Branch{
		ID: "branch-test",
		Materials: []domain.MaterialStock{
			{MaterialID: "mat-flour", Volume: 500},
			{MaterialID: "mat-sugar", Volume: 200},
		},
	}
}

func TestPlanConsumptionDrawsMaterials(t *testing.T) {
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}, {MaterialID: "mat-sugar", Quantity: 50}},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", Quantity: 2}}

	mutations, err := PlanConsumption(context.Background(), materialBranch(), items, domain.OrderTypeCustomer, resolve)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(mutations) != 2 {
		t.Fatalf("expected 2 mutations, got %d", len(mutations))
	}
	if mutations[0].Ledger != store.LedgerMaterial || mutations[0].MaterialID != "mat-flour" || mutations[0].Delta != -200 {
		t.Fatalf("unexpected flour mutation: %+v", mutations[0])
	}
	if mutations[1].Delta != -100 || mutations[1].Type != domain.ChangeForOrder {
		t.Fatalf("unexpected sugar mutation: %+v", mutations[1])
	}
}

func TestPlanConsumptionMergesDuplicateLines(t *testing.T) {
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	items := []domain.OrderItem{
		{CakeID: "cake-a", Quantity: 1},
		{CakeID: "cake-a", Quantity: 2},
	}

	mutations, err := PlanConsumption(context.Background(), materialBranch(), items, domain.OrderTypeSelf, resolve)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(mutations) != 1 {
		t.Fatalf("expected merged single mutation, got %d", len(mutations))
	}
	if mutations[0].Delta != -300 {
		t.Fatalf("expected merged delta -300, got %v", mutations[0].Delta)
	}
}

func TestPlanConsumptionMissingMaterial(t *testing.T) {
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {
			{MaterialID: "mat-flour", Quantity: 10},
			{MaterialID: "mat-vanilla", Quantity: 5},
			{MaterialID: "mat-almond", Quantity: 5},
		},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", Quantity: 1}}

	_, err := PlanConsumption(context.Background(), materialBranch(), items, domain.OrderTypeSelf, resolve)
	if !errors.Is(err, store.ErrMissingMaterial) {
		t.Fatalf("expected ErrMissingMaterial, got %v", err)
	}
	// All missing ids are reported, sorted.
	if !strings.Contains(err.Error(), "mat-almond, mat-vanilla") {
		t.Fatalf("expected sorted missing list in error, got %q", err.Error())
	}
}

func TestPlanConsumptionInsufficientMaterial(t *testing.T) {
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-sugar", Quantity: 300}},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", Quantity: 1}}

	_, err := PlanConsumption(context.Background(), materialBranch(), items, domain.OrderTypeSelf, resolve)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestPlanConsumptionPrefersFinishedGoodsForCustomerOrders(t *testing.T) {
	branch := &domain.Branch{
		ID: "branch-test",
		Materials: []domain.MaterialStock{
			{MaterialID: "mat-flour", Volume: 500},
		},
		FinishedGoods: []domain.FinishedGoodStock{
			{CakeID: "cake-a", Volume: 10},
		},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
		"cake-b": {{MaterialID: "mat-flour", Quantity: 50}},
	})
	items := []domain.OrderItem{
		{CakeID: "cake-a", Quantity: 4},
		// No finished-goods entry for cake-b: the line is skipped.
		{CakeID: "cake-b", Quantity: 1},
	}

	mutations, err := PlanConsumption(context.Background(), branch, items, domain.OrderTypeCustomer, resolve)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(mutations) != 1 {
		t.Fatalf("expected one finished-goods mutation, got %d", len(mutations))
	}
	m := mutations[0]
	if m.Ledger != store.LedgerFinishedGood || m.CakeID != "cake-a" || m.Delta != -4 {
		t.Fatalf("unexpected mutation: %+v", m)
	}
}

func TestPlanConsumptionFinishedGoodsInsufficient(t *testing.T) {
	branch := &domain.Branch{
		ID:            "branch-test",
		FinishedGoods: []domain.FinishedGoodStock{{CakeID: "cake-a", Volume: 2}},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", Quantity: 3}}

	_, err := PlanConsumption(context.Background(), branch, items, domain.OrderTypeCustomer, resolve)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestPlanConsumptionSelfOrderIgnoresFinishedGoods(t *testing.T) {
	branch := &domain.Branch{
		ID: "branch-test",
		Materials: []domain.MaterialStock{
			{MaterialID: "mat-flour", Volume: 500},
		},
		FinishedGoods: []domain.FinishedGoodStock{{CakeID: "cake-a", Volume: 10}},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", Quantity: 2}}

	mutations, err := PlanConsumption(context.Background(), branch, items, domain.OrderTypeSelf, resolve)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(mutations) != 1 || mutations[0].Ledger != store.LedgerMaterial {
		t.Fatalf("expected material draw for self order, got %+v", mutations)
	}
}

func TestPlanConsumptionVariantSignatureSeparatesEntries(t *testing.T) {
	matcha := []domain.VariantSelection{{VariantKey: "flavor", ItemKey: "matcha"}}
	branch := &domain.Branch{
		ID: "branch-test",
		FinishedGoods: []domain.FinishedGoodStock{
			{CakeID: "cake-a", Volume: 5},
			{CakeID: "cake-a", SelectedVariants: matcha, Volume: 1},
		},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	items := []domain.OrderItem{{CakeID: "cake-a", SelectedVariants: matcha, Quantity: 3}}

	_, err := PlanConsumption(context.Background(), branch, items, domain.OrderTypeCustomer, resolve)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected draw against the matcha entry to fail, got %v", err)
	}
}
