package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
)

func TestAdjustInventoryAppliesBatch(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	at := time.Now().UTC()

	branch, err := s.AdjustInventory(ctx, "branch-q1", []store.Mutation{
		{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -500, Type: domain.ChangeForOrder},
		{Ledger: store.LedgerMaterial, MaterialID: "mat-sugar", Delta: 200, Type: domain.ChangeNewImport},
	}, at)
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	flour := branch.FindMaterial("mat-flour")
	if flour.Volume != 4500 {
		t.Fatalf("expected flour 4500, got %v", flour.Volume)
	}
	if len(flour.History) != 2 || flour.History[1].Delta != -500 {
		t.Fatalf("expected draw appended to history, got %+v", flour.History)
	}
	if sugar := branch.FindMaterial("mat-sugar"); sugar.Volume != 3200 {
		t.Fatalf("expected sugar 3200, got %v", sugar.Volume)
	}
}

func TestAdjustInventoryFailedBatchLeavesBranchUntouched(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.AdjustInventory(ctx, "branch-q1", []store.Mutation{
		{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -500, Type: domain.ChangeForOrder},
		{Ledger: store.LedgerMaterial, MaterialID: "mat-matcha", Delta: -9999, Type: domain.ChangeForOrder},
	}, time.Now().UTC())
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	branch, err := s.GetBranchByID(ctx, "branch-q1")
	if err != nil {
		t.Fatalf("get branch failed: %v", err)
	}
	if flour := branch.FindMaterial("mat-flour"); flour.Volume != 5000 {
		t.Fatalf("expected first mutation rolled back with the batch, got %v", flour.Volume)
	}
	if len(branch.FindMaterial("mat-flour").History) != 1 {
		t.Fatalf("expected no history rows from failed batch")
	}
}

func TestAdjustInventoryImportCreatesEntry(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	branch, err := s.AdjustInventory(ctx, "branch-q1", []store.Mutation{
		{Ledger: store.LedgerFinishedGood, CakeID: "cake-sponge", Delta: 5, Type: domain.ChangeNewImport},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	entry := branch.FindFinishedGood("cake-sponge", "")
	if entry == nil || entry.Volume != 5 {
		t.Fatalf("expected new finished-goods entry, got %+v", entry)
	}
}

func TestAdjustInventoryDrawAgainstMissingEntry(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.AdjustInventory(ctx, "branch-q1", []store.Mutation{
		{Ledger: store.LedgerMaterial, MaterialID: "mat-box", Delta: -1, Type: domain.ChangeForOrder},
	}, time.Now().UTC())
	if !errors.Is(err, store.ErrMissingMaterial) {
		t.Fatalf("expected ErrMissingMaterial, got %v", err)
	}

	_, err = s.AdjustInventory(ctx, "branch-q1", []store.Mutation{
		{Ledger: store.LedgerFinishedGood, CakeID: "cake-sponge", Delta: -1, Type: domain.ChangeForOrder},
	}, time.Now().UTC())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing finished-goods entry, got %v", err)
	}
}

func TestLedgerVolumeMatchesHistory(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	mutations := [][]store.Mutation{
		{{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -800, Type: domain.ChangeForOrder}},
		{{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: 1500, Type: domain.ChangeNewImport}},
		{{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -200, Type: domain.ChangeRemoveExpired}},
	}
	for i, batch := range mutations {
		if _, err := s.AdjustInventory(ctx, "branch-q1", batch, time.Now().UTC()); err != nil {
			t.Fatalf("batch %d failed: %v", i, err)
		}
	}

	branch, _ := s.GetBranchByID(ctx, "branch-q1")
	flour := branch.FindMaterial("mat-flour")
	sum := 0.0
	for _, change := range flour.History {
		sum += change.Delta
	}
	if flour.Volume != sum {
		t.Fatalf("volume %v does not match history sum %v", flour.Volume, sum)
	}
	if flour.Volume != 5500 {
		t.Fatalf("expected flour 5500, got %v", flour.Volume)
	}
}

func TestApplyOrderTransitionIsAtomic(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	group := domain.OrderGroup{ID: "grp-t", PaymentStatus: domain.PaymentCashOnDelivery, CreatedAt: now}
	order := domain.Order{
		ID: "ord-t", GroupID: "grp-t", BranchID: "branch-q1",
		Items:  []domain.OrderItem{{CakeID: "cake-sponge", Quantity: 1}},
		Type:   domain.OrderTypeCustomer,
		Status: domain.OrderQueue, CreatedAt: now, UpdatedAt: now,
	}
	group.OrderIDs = []string{order.ID}
	if _, err := s.CreateCheckout(ctx, group, []domain.Order{order}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Points against an unknown customer fail the whole transition.
	_, err := s.ApplyOrderTransition(ctx, store.OrderTransition{
		OrderID:  "ord-t",
		BranchID: "branch-q1",
		Status:   domain.OrderCompleted,
		Mutations: []store.Mutation{
			{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -120, Type: domain.ChangeForOrder},
		},
		CustomerID:  "cus-ghost",
		PointsDelta: 100,
		At:          now,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stored, _ := s.GetOrderByID(ctx, "ord-t")
	if stored.Status != domain.OrderQueue {
		t.Fatalf("expected order untouched, got %s", stored.Status)
	}
	branch, _ := s.GetBranchByID(ctx, "branch-q1")
	if flour := branch.FindMaterial("mat-flour"); flour.Volume != 5000 {
		t.Fatalf("expected ledger untouched, got %v", flour.Volume)
	}
}

func TestApplyOrderTransitionCommitsWriteSet(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	group := domain.OrderGroup{ID: "grp-t", PaymentStatus: domain.PaymentCashOnDelivery, OrderIDs: []string{"ord-t"}, CreatedAt: now}
	order := domain.Order{
		ID: "ord-t", GroupID: "grp-t", BranchID: "branch-q1",
		Items:  []domain.OrderItem{{CakeID: "cake-sponge", Quantity: 2}},
		Status: domain.OrderQueue, CreatedAt: now, UpdatedAt: now,
	}
	if _, err := s.CreateCheckout(ctx, group, []domain.Order{order}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	updated, err := s.ApplyOrderTransition(ctx, store.OrderTransition{
		OrderID:   "ord-t",
		BranchID:  "branch-q1",
		Status:    domain.OrderCompleted,
		HandlerID: "usr-1",
		Mutations: []store.Mutation{
			{Ledger: store.LedgerMaterial, MaterialID: "mat-flour", Delta: -240, Type: domain.ChangeForOrder},
		},
		SoldCounts:  map[string]float64{"cake-sponge": 2},
		CustomerID:  "cus-lan",
		PointsDelta: 1700,
		Events: []domain.OutboxEvent{
			{Kind: domain.EventBranchRestock, Key: "branch-q1", Payload: []byte(`{}`)},
		},
		At: now,
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if updated.Status != domain.OrderCompleted || updated.HandlerID != "usr-1" {
		t.Fatalf("unexpected order: %+v", updated)
	}

	cake, _ := s.GetCakeByID(ctx, "cake-sponge")
	if cake.SoldCount != 2 {
		t.Fatalf("expected sold count 2, got %d", cake.SoldCount)
	}
	customer, _ := s.GetCustomerByID(ctx, "cus-lan")
	if customer.Points != 1820 {
		t.Fatalf("expected points 1820, got %d", customer.Points)
	}
	events, _ := s.ListUnpublishedEvents(ctx, 10)
	if len(events) != 1 || events[0].Seq != 1 || events[0].ID == "" {
		t.Fatalf("expected sequenced outbox event, got %+v", events)
	}
}

func TestOutboxSequencingAndPublish(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.UpdatePaymentStatus(ctx, "grp-missing", domain.PaymentSuccess, nil)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}

	group := domain.OrderGroup{ID: "grp-t", PaymentStatus: domain.PaymentPending, CreatedAt: time.Now().UTC()}
	if _, err := s.CreateCheckout(ctx, group, nil); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, err := s.UpdatePaymentStatus(ctx, "grp-t", domain.PaymentSuccess, []domain.OutboxEvent{
			{Kind: domain.EventPaymentUpdated, Key: "grp-t", Payload: []byte(`{}`)},
		})
		if err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}

	events, err := s.ListUnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, e.Seq)
		}
	}

	if err := s.MarkEventPublished(ctx, events[0].Seq, time.Now().UTC()); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	remaining, _ := s.ListUnpublishedEvents(ctx, 10)
	if len(remaining) != 2 || remaining[0].Seq != 2 {
		t.Fatalf("expected seqs 2,3 remaining, got %+v", remaining)
	}

	if err := s.MarkEventPublished(ctx, 999, time.Now().UTC()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown seq, got %v", err)
	}
}

func TestPaymentFailureCancelsOrders(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	group := domain.OrderGroup{ID: "grp-t", PaymentStatus: domain.PaymentPending, OrderIDs: []string{"ord-t"}, CreatedAt: now}
	order := domain.Order{ID: "ord-t", GroupID: "grp-t", BranchID: "branch-q1", Status: domain.OrderQueue, CreatedAt: now, UpdatedAt: now}
	if _, err := s.CreateCheckout(ctx, group, []domain.Order{order}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if _, err := s.UpdatePaymentStatus(ctx, "grp-t", domain.PaymentFailed, nil); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	stored, _ := s.GetOrderByID(ctx, "ord-t")
	if stored.Status != domain.OrderCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}
}

func TestCreateCheckoutRejectsDuplicates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	group := domain.OrderGroup{ID: "grp-t", PaymentStatus: domain.PaymentPending, CreatedAt: now}
	if _, err := s.CreateCheckout(ctx, group, nil); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	if _, err := s.CreateCheckout(ctx, group, nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestFindPlanSkipsClosedPlans(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	plan := domain.Plan{ID: "plan-t", BranchID: "branch-q1", Date: "2026-08-31", Status: domain.PlanPending, CreatedAt: time.Now().UTC()}
	if _, err := s.SavePlan(ctx, plan); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	found, err := s.FindPlan(ctx, "branch-q1", "2026-08-31")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.ID != "plan-t" {
		t.Fatalf("unexpected plan: %+v", found)
	}

	if _, err := s.ApplyPlanTransition(ctx, store.PlanTransition{PlanID: "plan-t", BranchID: "branch-q1", Status: domain.PlanClosed, At: time.Now().UTC()}); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := s.FindPlan(ctx, "branch-q1", "2026-08-31"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected closed plan to be skipped, got %v", err)
	}
}

func TestGetBranchReturnsClone(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	branch, _ := s.GetBranchByID(ctx, "branch-q1")
	branch.FindMaterial("mat-flour").Volume = 0

	again, _ := s.GetBranchByID(ctx, "branch-q1")
	if again.FindMaterial("mat-flour").Volume != 5000 {
		t.Fatalf("expected stored branch isolated from caller mutation")
	}
}

func TestUserAccounts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	admin, err := s.GetUserByEmail(ctx, "admin@banhngot.local")
	if err != nil {
		t.Fatalf("expected seeded admin, got %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.Active {
		t.Fatalf("unexpected admin account: %+v", admin)
	}

	err = s.CreateUser(ctx, domain.UserAccount{
		Email: "admin@banhngot.local", Password: "x", Role: domain.RoleStaff,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
