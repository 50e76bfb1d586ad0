package store

import (
	"context"
	"errors"
	"time"

	"banhngot/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrRecipeNotFound      = errors.New("recipe not found")
	ErrMissingMaterial     = errors.New("missing material definition")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
)

// Mutation is one signed adjustment against a branch ledger entry. Key is a
// material id for the material ledger, or cakeID + variant signature for the
// finished-goods ledger.
type Mutation struct {
	Ledger           LedgerKind
	MaterialID       string
	CakeID           string
	SelectedVariants []domain.VariantSelection
	Delta            float64
	Type             domain.ChangeType
}

type LedgerKind string

const (
	LedgerMaterial     LedgerKind = "material"
	LedgerFinishedGood LedgerKind = "finishedGood"
)

// OrderTransition is the full write set of one order status transition. The
// repository applies all of it or none of it.
type OrderTransition struct {
	OrderID         string
	Status          domain.OrderStatus
	HandlerID       string
	TerminateReason string
	BranchID        string
	Mutations       []Mutation
	SoldCounts      map[string]float64
	CustomerID      string
	PointsDelta     int64
	Events          []domain.OutboxEvent
	At              time.Time
}

// PlanTransition completes or closes a plan, optionally drawing the plan's
// material totals from the branch ledger and marking its orders ready.
type PlanTransition struct {
	PlanID        string
	Status        domain.PlanStatus
	BranchID      string
	Mutations     []Mutation
	ReadyOrderIDs []string
	At            time.Time
}

type Repository interface {
	ListMaterials(ctx context.Context) ([]domain.Material, error)
	GetMaterialByID(ctx context.Context, id string) (*domain.Material, error)
	CreateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error)

	ListCakes(ctx context.Context) ([]domain.Cake, error)
	GetCakeByID(ctx context.Context, id string) (*domain.Cake, error)
	GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error)
	GetRecipeByCakeID(ctx context.Context, cakeID string) (*domain.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error)

	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranchByID(ctx context.Context, id string) (*domain.Branch, error)
	AdjustInventory(ctx context.Context, branchID string, mutations []Mutation, at time.Time) (*domain.Branch, error)

	CreateCheckout(ctx context.Context, group domain.OrderGroup, orders []domain.Order) (*domain.OrderGroup, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByBranch(ctx context.Context, branchID string, status domain.OrderStatus, limit int) ([]domain.Order, error)
	GetOrderGroupByID(ctx context.Context, id string) (*domain.OrderGroup, error)
	UpdatePaymentStatus(ctx context.Context, groupID string, status domain.PaymentStatus, events []domain.OutboxEvent) (*domain.OrderGroup, error)
	ApplyOrderTransition(ctx context.Context, tr OrderTransition) (*domain.Order, error)

	GetPlanByID(ctx context.Context, id string) (*domain.Plan, error)
	FindPlan(ctx context.Context, branchID string, date string) (*domain.Plan, error)
	ListPlansByBranch(ctx context.Context, branchID string, limit int) ([]domain.Plan, error)
	SavePlan(ctx context.Context, plan domain.Plan) (*domain.Plan, error)
	ApplyPlanTransition(ctx context.Context, tr PlanTransition) (*domain.Plan, error)

	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	AddCustomerPoints(ctx context.Context, customerID string, delta int64) (*domain.Customer, error)

	ListUnpublishedEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, seq int64, at time.Time) error

	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
}
