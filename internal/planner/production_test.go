package planner

import (
	"context"
	"testing"

	"banhngot/backend/internal/domain"
)

func TestMergeOrderIntoPlanNetsAgainstInventory(t *testing.T) {
	branch := &domain.Branch{
		ID:            "branch-test",
		FinishedGoods: []domain.FinishedGoodStock{{CakeID: "cake-a", Volume: 3}},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	plan := &domain.Plan{ID: "plan-1", BranchID: branch.ID}
	order := &domain.Order{
		ID:       "ord-1",
		BranchID: branch.ID,
		Items:    []domain.OrderItem{{CakeID: "cake-a", Quantity: 5}},
	}

	if err := MergeOrderIntoPlan(context.Background(), plan, branch, order, resolve); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(plan.Details) != 1 {
		t.Fatalf("expected one detail, got %d", len(plan.Details))
	}
	d := plan.Details[0]
	if d.OrderCount != 1 || d.OrderAmount != 5 || d.CurrentInventory != 3 {
		t.Fatalf("unexpected detail: %+v", d)
	}
	if d.PlannedProduction != 2 {
		t.Fatalf("expected planned production 5-3=2, got %v", d.PlannedProduction)
	}
	if len(d.Materials) != 1 || d.Materials[0].Quantity != 200 {
		t.Fatalf("expected materials scaled by planned production, got %+v", d.Materials)
	}
	if len(plan.OrderIDs) != 1 || plan.OrderIDs[0] != "ord-1" {
		t.Fatalf("expected order recorded on plan, got %v", plan.OrderIDs)
	}
}

func TestMergeOrderIntoPlanIsIdempotentPerOrder(t *testing.T) {
	branch := &domain.Branch{ID: "branch-test"}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	plan := &domain.Plan{ID: "plan-1", BranchID: branch.ID}
	order := &domain.Order{
		ID:       "ord-1",
		BranchID: branch.ID,
		Items:    []domain.OrderItem{{CakeID: "cake-a", Quantity: 2}},
	}

	for i := 0; i < 2; i++ {
		if err := MergeOrderIntoPlan(context.Background(), plan, branch, order, resolve); err != nil {
			t.Fatalf("merge %d failed: %v", i, err)
		}
	}
	if len(plan.OrderIDs) != 1 {
		t.Fatalf("expected re-enqueue to be a no-op, got order ids %v", plan.OrderIDs)
	}
	if plan.Details[0].OrderAmount != 2 {
		t.Fatalf("expected amount unchanged, got %v", plan.Details[0].OrderAmount)
	}
}

func TestMergeOrderIntoPlanReplacesMaterialsOnRemerge(t *testing.T) {
	branch := &domain.Branch{
		ID:            "branch-test",
		FinishedGoods: []domain.FinishedGoodStock{{CakeID: "cake-a", Volume: 4}},
	}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	plan := &domain.Plan{ID: "plan-1", BranchID: branch.ID}

	first := &domain.Order{ID: "ord-1", BranchID: branch.ID, Items: []domain.OrderItem{{CakeID: "cake-a", Quantity: 3}}}
	if err := MergeOrderIntoPlan(context.Background(), plan, branch, first, resolve); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	// 3 ordered against 4 in stock: nothing to produce yet.
	if plan.Details[0].PlannedProduction != 0 || len(plan.Details[0].Materials) != 0 {
		t.Fatalf("expected zero production, got %+v", plan.Details[0])
	}

	second := &domain.Order{ID: "ord-2", BranchID: branch.ID, Items: []domain.OrderItem{{CakeID: "cake-a", Quantity: 6}}}
	if err := MergeOrderIntoPlan(context.Background(), plan, branch, second, resolve); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}
	d := plan.Details[0]
	if d.OrderCount != 2 || d.OrderAmount != 9 {
		t.Fatalf("unexpected detail after re-merge: %+v", d)
	}
	if d.PlannedProduction != 5 {
		t.Fatalf("expected planned 9-4=5, got %v", d.PlannedProduction)
	}
	if len(d.Materials) != 1 || d.Materials[0].Quantity != 500 {
		t.Fatalf("expected materials replaced and re-scaled, got %+v", d.Materials)
	}
}

func TestMergeOrderIntoPlanSeparatesVariantDetails(t *testing.T) {
	branch := &domain.Branch{ID: "branch-test"}
	resolve := staticResolve(map[string][]domain.RecipeLine{
		"cake-a": {{MaterialID: "mat-flour", Quantity: 100}},
	})
	plan := &domain.Plan{ID: "plan-1", BranchID: branch.ID}
	order := &domain.Order{
		ID:       "ord-1",
		BranchID: branch.ID,
		Items: []domain.OrderItem{
			{CakeID: "cake-a", Quantity: 1},
			{CakeID: "cake-a", SelectedVariants: []domain.VariantSelection{{VariantKey: "flavor", ItemKey: "matcha"}}, Quantity: 2},
		},
	}

	if err := MergeOrderIntoPlan(context.Background(), plan, branch, order, resolve); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(plan.Details) != 2 {
		t.Fatalf("expected variant-separated details, got %d", len(plan.Details))
	}
}

func TestPlanMaterialTotalsMergesAcrossDetails(t *testing.T) {
	plan := &domain.Plan{
		Details: []domain.PlanDetail{
			{CakeID: "cake-a", Materials: []domain.PlanMaterial{
				{MaterialID: "mat-flour", Quantity: 200},
				{MaterialID: "mat-sugar", Quantity: 50},
			}},
			{CakeID: "cake-b", Materials: []domain.PlanMaterial{
				{MaterialID: "mat-flour", Quantity: 100},
			}},
		},
	}

	totals := PlanMaterialTotals(plan)
	if len(totals) != 2 {
		t.Fatalf("expected 2 merged totals, got %d", len(totals))
	}
	if totals[0].MaterialID != "mat-flour" || totals[0].Quantity != 300 {
		t.Fatalf("unexpected flour total: %+v", totals[0])
	}
	if totals[1].MaterialID != "mat-sugar" || totals[1].Quantity != 50 {
		t.Fatalf("unexpected sugar total: %+v", totals[1])
	}
}
