package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/planner"
	"banhngot/backend/internal/recipe"
	"banhngot/backend/internal/store"
	"banhngot/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	pointRate      = 0.01
	promotionBonus = 50
	bulkMultiplier = 1.1
	bulkThreshold  = 10
)

type Service struct {
	repo       store.Repository
	recipes    *recipe.Service
	orderLocks *keyedLock
}

func New(repo store.Repository, recipes *recipe.Service) *Service {
	if recipes == nil {
		recipes = recipe.NewService(repo, nil, 0)
	}

	return &Service{
		repo:       repo,
		recipes:    recipes,
		orderLocks: newKeyedLock(),
	}
}

func (s *Service) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	return s.repo.ListMaterials(ctx)
}

func (s *Service) ListCakes(ctx context.Context) ([]domain.Cake, error) {
	return s.repo.ListCakes(ctx)
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) GetBranch(ctx context.Context, branchID string) (domain.Branch, error) {
	branch, err := s.repo.GetBranchByID(ctx, branchID)
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// ResolveMaterials exposes recipe resolution to the API layer.
func (s *Service) ResolveMaterials(ctx context.Context, cakeID string, selections []domain.VariantSelection) ([]domain.RecipeLine, error) {
	return s.recipes.ResolveMaterials(ctx, cakeID, selections)
}

func (s *Service) UpdateRecipe(ctx context.Context, rec domain.Recipe) (domain.Recipe, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Recipe{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	if rec.ID == "" || len(rec.Lines) == 0 {
		return domain.Recipe{}, store.ErrInvalidOrder
	}

	updated, err := s.repo.UpdateRecipe(ctx, rec)
	if err != nil {
		return domain.Recipe{}, err
	}

	cakes, err := s.repo.ListCakes(ctx)
	if err == nil {
		for _, cake := range cakes {
			if cake.RecipeID == updated.ID {
				s.recipes.InvalidateCake(ctx, cake.ID)
			}
		}
	}
	return *updated, nil
}

// CreateCheckout creates an order group and one order per branch line. COD
// groups start actionable; online groups stay pending until the payment
// collaborator reports success.
func (s *Service) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.BranchOrders) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}
	orderType := req.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeCustomer
	}
	if orderType != domain.OrderTypeCustomer && orderType != domain.OrderTypeSelf {
		return domain.CheckoutResponse{}, store.ErrInvalidOrder
	}
	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return domain.CheckoutResponse{}, err
		}
	}

	now := time.Now().UTC()
	group := domain.OrderGroup{
		ID:            xid.New("grp"),
		CustomerID:    req.CustomerID,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     now,
	}
	if req.CashOnDelivery {
		group.PaymentStatus = domain.PaymentCashOnDelivery
	}

	orders := make([]domain.Order, 0, len(req.BranchOrders))
	for _, branchOrder := range req.BranchOrders {
		if branchOrder.BranchID == "" || len(branchOrder.Items) == 0 {
			return domain.CheckoutResponse{}, store.ErrInvalidOrder
		}
		if _, err := s.repo.GetBranchByID(ctx, branchOrder.BranchID); err != nil {
			return domain.CheckoutResponse{}, err
		}

		items := make([]domain.OrderItem, 0, len(branchOrder.Items))
		total := int64(0)
		for _, line := range branchOrder.Items {
			if line.Quantity <= 0 {
				return domain.CheckoutResponse{}, store.ErrInvalidOrder
			}
			price, err := s.unitPrice(ctx, line.CakeID, line.SelectedVariants)
			if err != nil {
				return domain.CheckoutResponse{}, err
			}
			items = append(items, domain.OrderItem{
				CakeID:           line.CakeID,
				SelectedVariants: line.SelectedVariants,
				Quantity:         line.Quantity,
				PriceAtBuy:       price,
			})
			total += int64(math.Round(float64(price) * line.Quantity))
		}

		order := domain.Order{
			ID:           xid.New("ord"),
			GroupID:      group.ID,
			BranchID:     branchOrder.BranchID,
			CustomerID:   req.CustomerID,
			Items:        items,
			TotalPrice:   total,
			VoucherCode:  strings.TrimSpace(branchOrder.VoucherCode),
			Note:         branchOrder.Note,
			Type:         orderType,
			Urgent:       branchOrder.Urgent,
			ExpectedTime: branchOrder.ExpectedTime,
			Status:       domain.OrderQueue,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		group.OrderIDs = append(group.OrderIDs, order.ID)
		group.TotalPrice += total
		orders = append(orders, order)
	}

	created, err := s.repo.CreateCheckout(ctx, group, orders)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	return domain.CheckoutResponse{Group: *created, Orders: orders}, nil
}

func (s *Service) unitPrice(ctx context.Context, cakeID string, selections []domain.VariantSelection) (int64, error) {
	cake, err := s.repo.GetCakeByID(ctx, cakeID)
	if err != nil {
		return 0, err
	}
	price := cake.Price
	if len(selections) == 0 {
		return price, nil
	}

	rec, err := s.repo.GetRecipeByCakeID(ctx, cakeID)
	if err != nil {
		return 0, fmt.Errorf("cake %s: %w", cakeID, store.ErrRecipeNotFound)
	}
	for _, sel := range selections {
		found := false
		for _, group := range rec.Variants {
			if group.VariantKey != sel.VariantKey {
				continue
			}
			for _, item := range group.Items {
				if item.ItemKey == sel.ItemKey {
					price += item.PriceDelta
					found = true
					break
				}
			}
		}
		if !found {
			return 0, fmt.Errorf("variant %s/%s: %w", sel.VariantKey, sel.ItemKey, store.ErrRecipeNotFound)
		}
	}
	return price, nil
}

// SetOrderStatus drives the order workflow. The whole transition, including
// ledger draws, sold counts, points and outbox rows, lands in one atomic
// repository call, and a per-order lock keeps concurrent calls for the same
// order serialized.
func (s *Service) SetOrderStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	if !target.Valid() {
		return domain.Order{}, fmt.Errorf("status %q: %w", target, store.ErrInvalidTransition)
	}

	s.orderLocks.Lock(orderID)
	defer s.orderLocks.Unlock(orderID)

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	group, err := s.repo.GetOrderGroupByID(ctx, order.GroupID)
	if err != nil {
		return domain.Order{}, err
	}

	handlerID := ""
	if actor, ok := ActorFromContext(ctx); ok {
		handlerID = actor.UserID
	}

	tr := store.OrderTransition{
		OrderID:   order.ID,
		BranchID:  order.BranchID,
		HandlerID: handlerID,
		At:        time.Now().UTC(),
	}

	switch group.PaymentStatus {
	case domain.PaymentPending:
		return domain.Order{}, fmt.Errorf("order %s: %w", order.ID, store.ErrPaymentNotConfirmed)
	case domain.PaymentCashOnDelivery:
		if err := s.planCashOnDelivery(ctx, order, group, target, &tr); err != nil {
			return domain.Order{}, err
		}
	case domain.PaymentSuccess:
		if err := s.planPrepaid(ctx, order, group, target, &tr); err != nil {
			return domain.Order{}, err
		}
	default:
		tr.Status = domain.OrderCancelled
	}

	updated, err := s.repo.ApplyOrderTransition(ctx, tr)
	if err != nil {
		return domain.Order{}, err
	}
	log.Printf("[service] order %s -> %s (requested %s)", order.ID, updated.Status, target)
	return *updated, nil
}

func (s *Service) planCashOnDelivery(ctx context.Context, order *domain.Order, group *domain.OrderGroup, target domain.OrderStatus, tr *store.OrderTransition) error {
	switch target {
	case domain.OrderReady, domain.OrderShipping, domain.OrderQueue:
		tr.Status = target
	case domain.OrderCompleted:
		if order.Status == domain.OrderProcessing {
			// Completion from processing is skipped for COD: the status stays
			// put and only the handler assignment lands.
			tr.Status = order.Status
			return nil
		}
		tr.Status = target
		s.planCompletion(order, group, tr)
	default:
		if (order.Urgent && order.ExpectedTime != "") || group.CustomerID == "" {
			mutations, err := s.planConsumption(ctx, order, order.Type)
			if err != nil {
				return err
			}
			tr.Mutations = mutations
		}
		tr.Status = domain.OrderProcessing
	}
	return nil
}

func (s *Service) planPrepaid(ctx context.Context, order *domain.Order, group *domain.OrderGroup, target domain.OrderStatus, tr *store.OrderTransition) error {
	switch target {
	case domain.OrderProcessing:
		mutations, err := s.planConsumption(ctx, order, domain.OrderTypeCustomer)
		if err != nil {
			return err
		}
		tr.Mutations = mutations
		tr.Status = target
	case domain.OrderCompleted:
		tr.Status = target
		s.planCompletion(order, group, tr)
	default:
		tr.Status = target
	}
	return nil
}

// planCompletion accumulates the completion side effects: sold counts, and
// either loyalty points or a self-order restock event.
func (s *Service) planCompletion(order *domain.Order, group *domain.OrderGroup, tr *store.OrderTransition) {
	tr.SoldCounts = make(map[string]float64, len(order.Items))
	for _, item := range order.Items {
		tr.SoldCounts[item.CakeID] += item.Quantity
	}

	if group.CustomerID != "" {
		tr.CustomerID = group.CustomerID
		tr.PointsDelta = calculatePoints(order.TotalPrice, len(order.Items), order.VoucherCode != "")
		return
	}
	if order.Type == domain.OrderTypeSelf {
		payload, err := json.Marshal(domain.RestockEvent{
			BranchID: order.BranchID,
			OrderID:  order.ID,
			Items:    order.Items,
		})
		if err != nil {
			log.Printf("[service] WARN: marshal restock event order=%s: %v", order.ID, err)
			return
		}
		tr.Events = append(tr.Events, domain.OutboxEvent{
			Kind:    domain.EventBranchRestock,
			Key:     order.BranchID,
			Payload: payload,
		})
	}
}

func (s *Service) planConsumption(ctx context.Context, order *domain.Order, orderType domain.OrderType) ([]store.Mutation, error) {
	branch, err := s.repo.GetBranchByID(ctx, order.BranchID)
	if err != nil {
		return nil, err
	}
	return planner.PlanConsumption(ctx, branch, order.Items, orderType, s.recipes.ResolveMaterials)
}

// TerminateOrder moves an order to a terminal status. Inventory is never
// touched here.
func (s *Service) TerminateOrder(ctx context.Context, orderID string, target domain.OrderStatus, reason string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, fmt.Errorf("terminate reason required: %w", store.ErrInvalidOrder)
	}

	s.orderLocks.Lock(orderID)
	defer s.orderLocks.Unlock(orderID)

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	switch target {
	case domain.OrderCancelled:
	case domain.OrderReturned:
		if order.Status != domain.OrderCompleted {
			return domain.Order{}, fmt.Errorf("returned requires completed, got %s: %w", order.Status, store.ErrInvalidTransition)
		}
	case domain.OrderRejected:
		if order.Status != domain.OrderShipping {
			return domain.Order{}, fmt.Errorf("rejected requires shipping, got %s: %w", order.Status, store.ErrInvalidTransition)
		}
	default:
		return domain.Order{}, fmt.Errorf("status %q is not terminal: %w", target, store.ErrInvalidTransition)
	}

	handlerID := ""
	if actor, ok := ActorFromContext(ctx); ok {
		handlerID = actor.UserID
	}

	updated, err := s.repo.ApplyOrderTransition(ctx, store.OrderTransition{
		OrderID:         order.ID,
		BranchID:        order.BranchID,
		Status:          target,
		HandlerID:       handlerID,
		TerminateReason: reason,
		At:              time.Now().UTC(),
	})
	if err != nil {
		return domain.Order{}, err
	}
	return *updated, nil
}

// SetPaymentStatus records a payment collaborator's verdict. A failed
// payment cancels the group's orders.
func (s *Service) SetPaymentStatus(ctx context.Context, groupID string, status domain.PaymentStatus) (domain.OrderGroup, error) {
	switch status {
	case domain.PaymentPending, domain.PaymentCashOnDelivery, domain.PaymentSuccess, domain.PaymentFailed:
	default:
		return domain.OrderGroup{}, fmt.Errorf("payment status %q: %w", status, store.ErrInvalidOrder)
	}

	payload, err := json.Marshal(domain.PaymentUpdatedEvent{GroupID: groupID, Status: status})
	if err != nil {
		return domain.OrderGroup{}, err
	}
	events := []domain.OutboxEvent{{
		Kind:    domain.EventPaymentUpdated,
		Key:     groupID,
		Payload: payload,
	}}

	updated, err := s.repo.UpdatePaymentStatus(ctx, groupID, status, events)
	if err != nil {
		return domain.OrderGroup{}, err
	}
	return *updated, nil
}

// ReceiveImport records a material delivery as newImport increments,
// creating ledger entries for first-seen materials.
func (s *Service) ReceiveImport(ctx context.Context, req domain.ImportRequest) (domain.Branch, error) {
	if req.BranchID == "" || len(req.Lines) == 0 {
		return domain.Branch{}, store.ErrInvalidOrder
	}

	mutations := make([]store.Mutation, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return domain.Branch{}, store.ErrInvalidOrder
		}
		if _, err := s.repo.GetMaterialByID(ctx, line.MaterialID); err != nil {
			return domain.Branch{}, fmt.Errorf("material %s: %w", line.MaterialID, err)
		}
		mutations = append(mutations, store.Mutation{
			Ledger:     store.LedgerMaterial,
			MaterialID: line.MaterialID,
			Delta:      line.Quantity,
			Type:       domain.ChangeNewImport,
		})
	}

	branch, err := s.repo.AdjustInventory(ctx, req.BranchID, mutations, time.Now().UTC())
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

// RemoveExpired writes off expired material stock.
func (s *Service) RemoveExpired(ctx context.Context, req domain.RemoveExpiredRequest) (domain.Branch, error) {
	if req.BranchID == "" || len(req.Lines) == 0 {
		return domain.Branch{}, store.ErrInvalidOrder
	}

	mutations := make([]store.Mutation, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return domain.Branch{}, store.ErrInvalidOrder
		}
		mutations = append(mutations, store.Mutation{
			Ledger:     store.LedgerMaterial,
			MaterialID: line.MaterialID,
			Delta:      -line.Quantity,
			Type:       domain.ChangeRemoveExpired,
		})
	}

	branch, err := s.repo.AdjustInventory(ctx, req.BranchID, mutations, time.Now().UTC())
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

// RestockFinishedGoods applies a self-order completion restock: each item
// becomes a newImport increment on the finished-goods ledger.
func (s *Service) RestockFinishedGoods(ctx context.Context, branchID string, items []domain.OrderItem) (domain.Branch, error) {
	if branchID == "" || len(items) == 0 {
		return domain.Branch{}, store.ErrInvalidOrder
	}

	mutations := make([]store.Mutation, 0, len(items))
	for _, item := range items {
		mutations = append(mutations, store.Mutation{
			Ledger:           store.LedgerFinishedGood,
			CakeID:           item.CakeID,
			SelectedVariants: item.SelectedVariants,
			Delta:            item.Quantity,
			Type:             domain.ChangeNewImport,
		})
	}

	branch, err := s.repo.AdjustInventory(ctx, branchID, mutations, time.Now().UTC())
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

// EnqueueOrderToPlan folds an order into its branch's open plan for today,
// creating the plan when none exists. Re-enqueueing the same order is a
// no-op.
func (s *Service) EnqueueOrderToPlan(ctx context.Context, orderID string) (domain.Plan, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Plan{}, err
	}
	branch, err := s.repo.GetBranchByID(ctx, order.BranchID)
	if err != nil {
		return domain.Plan{}, err
	}

	date := time.Now().UTC().Format("2006-01-02")
	planKey := "plan:" + order.BranchID + ":" + date
	s.orderLocks.Lock(planKey)
	defer s.orderLocks.Unlock(planKey)

	plan, err := s.repo.FindPlan(ctx, order.BranchID, date)
	if errors.Is(err, store.ErrNotFound) {
		plan = &domain.Plan{
			ID:        xid.New("plan"),
			BranchID:  order.BranchID,
			Date:      date,
			Status:    domain.PlanPending,
			CreatedAt: time.Now().UTC(),
		}
	} else if err != nil {
		return domain.Plan{}, err
	}

	if err := planner.MergeOrderIntoPlan(ctx, plan, branch, order, s.recipes.ResolveMaterials); err != nil {
		return domain.Plan{}, err
	}

	saved, err := s.repo.SavePlan(ctx, *plan)
	if err != nil {
		return domain.Plan{}, err
	}
	return *saved, nil
}

func (s *Service) GetPlan(ctx context.Context, planID string) (domain.Plan, error) {
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	return *plan, nil
}

func (s *Service) ListPlans(ctx context.Context, branchID string, limit int) ([]domain.Plan, error) {
	return s.repo.ListPlansByBranch(ctx, branchID, limit)
}

// SetPlanStatus transitions a plan. When an adjustment is requested the
// plan's material totals are drawn from the branch ledger and every order on
// the plan is marked ready, in the same atomic apply.
func (s *Service) SetPlanStatus(ctx context.Context, planID string, req domain.PlanStatusRequest) (domain.Plan, error) {
	if !req.Status.Valid() {
		return domain.Plan{}, fmt.Errorf("plan status %q: %w", req.Status, store.ErrInvalidTransition)
	}

	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return domain.Plan{}, err
	}

	tr := store.PlanTransition{
		PlanID:   plan.ID,
		BranchID: plan.BranchID,
		Status:   req.Status,
		At:       time.Now().UTC(),
	}

	if req.Adjust {
		totals := req.Totals
		if len(totals) == 0 {
			totals = planner.PlanMaterialTotals(plan)
		}
		for _, m := range totals {
			if m.Quantity <= 0 {
				continue
			}
			tr.Mutations = append(tr.Mutations, store.Mutation{
				Ledger:     store.LedgerMaterial,
				MaterialID: m.MaterialID,
				Delta:      -m.Quantity,
				Type:       domain.ChangeForOrder,
			})
		}
		tr.ReadyOrderIDs = plan.OrderIDs
	}

	updated, err := s.repo.ApplyPlanTransition(ctx, tr)
	if err != nil {
		return domain.Plan{}, err
	}
	return *updated, nil
}

// calculatePoints is the loyalty formula: one percent of the order total,
// plus a flat bonus for voucher orders, with a ten percent uplift on orders
// of more than ten lines.
func calculatePoints(totalPrice int64, itemCount int, hasPromotion bool) int64 {
	points := float64(totalPrice) * pointRate
	if hasPromotion {
		points += promotionBonus
	}
	if itemCount > bulkThreshold {
		points *= bulkMultiplier
	}
	return int64(math.Round(points))
}
