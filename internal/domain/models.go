package domain

import (
	"sort"
	"strings"
	"time"
)

type Material struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	UnitType     string `json:"unit_type"`
	CalcUnit     string `json:"calc_unit"`
	PricePerUnit int64  `json:"price_per_unit"`
	Deleted      bool   `json:"deleted"`
}

const (
	MaterialUnitIngredient = "ingredient"
	MaterialUnitAccessory  = "accessory"
)

type RecipeLine struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type VariantItem struct {
	ItemKey    string       `json:"item_key"`
	Name       string       `json:"name"`
	PriceDelta int64        `json:"price_delta"`
	Lines      []RecipeLine `json:"lines"`
}

type VariantGroup struct {
	VariantKey string        `json:"variant_key"`
	Label      string        `json:"label"`
	Items      []VariantItem `json:"items"`
}

type Recipe struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Lines    []RecipeLine   `json:"lines"`
	Steps    []string       `json:"steps,omitempty"`
	Variants []VariantGroup `json:"variants,omitempty"`
}

type Cake struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	RecipeID  string `json:"recipe_id"`
	SoldCount int64  `json:"sold_count"`
	Hidden    bool   `json:"hidden"`
	Deleted   bool   `json:"deleted"`
}

type VariantSelection struct {
	VariantKey string `json:"variant_key"`
	ItemKey    string `json:"item_key"`
}

// VariantSignature is the canonical form of a selection set, used as the
// identity of a finished-goods entry and a plan detail.
func VariantSignature(selections []VariantSelection) string {
	if len(selections) == 0 {
		return ""
	}
	parts := make([]string, 0, len(selections))
	for _, s := range selections {
		parts = append(parts, s.VariantKey+"="+s.ItemKey)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

type ChangeType string

const (
	ChangeForOrder      ChangeType = "forOrder"
	ChangeNewImport     ChangeType = "newImport"
	ChangeRemoveExpired ChangeType = "removeExpired"
	ChangeReturnOrder   ChangeType = "returnOrder"
	ChangeForTest       ChangeType = "forTest"
)

// IsReturn reports whether the change type is a reversal kind, which is
// allowed to restock an entry without the negative-volume guard.
func (t ChangeType) IsReturn() bool {
	return t == ChangeNewImport || t == ChangeReturnOrder
}

func (t ChangeType) Valid() bool {
	switch t {
	case ChangeForOrder, ChangeNewImport, ChangeRemoveExpired, ChangeReturnOrder, ChangeForTest:
		return true
	}
	return false
}

type InventoryChange struct {
	Delta     float64    `json:"delta"`
	Type      ChangeType `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}

type MaterialStock struct {
	MaterialID string            `json:"material_id"`
	Volume     float64           `json:"volume"`
	History    []InventoryChange `json:"history"`
}

type FinishedGoodStock struct {
	CakeID           string             `json:"cake_id"`
	SelectedVariants []VariantSelection `json:"selected_variants"`
	Volume           float64            `json:"volume"`
	History          []InventoryChange  `json:"history"`
}

func (f FinishedGoodStock) Signature() string {
	return VariantSignature(f.SelectedVariants)
}

type Branch struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Address       string              `json:"address"`
	Materials     []MaterialStock     `json:"materials"`
	FinishedGoods []FinishedGoodStock `json:"finished_goods"`
}

// FindMaterial returns the branch's material ledger entry, or nil.
func (b *Branch) FindMaterial(materialID string) *MaterialStock {
	for i := range b.Materials {
		if b.Materials[i].MaterialID == materialID {
			return &b.Materials[i]
		}
	}
	return nil
}

// FindFinishedGood returns the ledger entry matching cake and variant
// signature, or nil.
func (b *Branch) FindFinishedGood(cakeID, signature string) *FinishedGoodStock {
	for i := range b.FinishedGoods {
		fg := &b.FinishedGoods[i]
		if fg.CakeID == cakeID && fg.Signature() == signature {
			return fg
		}
	}
	return nil
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderQueue      OrderStatus = "queue"
	OrderProcessing OrderStatus = "processing"
	OrderReady      OrderStatus = "ready"
	OrderShipping   OrderStatus = "shipping"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
	OrderRejected   OrderStatus = "rejected"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderQueue, OrderProcessing, OrderReady, OrderShipping,
		OrderCompleted, OrderCancelled, OrderReturned, OrderRejected:
		return true
	}
	return false
}

type OrderType string

const (
	OrderTypeCustomer OrderType = "customerOrder"
	OrderTypeSelf     OrderType = "selfOrder"
)

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentCashOnDelivery PaymentStatus = "cashOnDelivery"
	PaymentSuccess        PaymentStatus = "success"
	PaymentFailed         PaymentStatus = "failed"
)

type OrderItem struct {
	CakeID           string             `json:"cake_id"`
	SelectedVariants []VariantSelection `json:"selected_variants"`
	Quantity         float64            `json:"quantity"`
	PriceAtBuy       int64              `json:"price_at_buy"`
}

func (i OrderItem) Signature() string {
	return VariantSignature(i.SelectedVariants)
}

type Order struct {
	ID              string      `json:"id"`
	GroupID         string      `json:"group_id,omitempty"`
	BranchID        string      `json:"branch_id"`
	CustomerID      string      `json:"customer_id,omitempty"`
	Items           []OrderItem `json:"items"`
	TotalPrice      int64       `json:"total_price"`
	VoucherCode     string      `json:"voucher_code,omitempty"`
	Note            string      `json:"note,omitempty"`
	Type            OrderType   `json:"type"`
	Urgent          bool        `json:"urgent"`
	ExpectedTime    string      `json:"expected_time,omitempty"`
	Status          OrderStatus `json:"status"`
	HandlerID       string      `json:"handler_id,omitempty"`
	TerminateReason string      `json:"terminate_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderGroup struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalPrice    int64         `json:"total_price"`
	OrderIDs      []string      `json:"order_ids"`
	CreatedAt     time.Time     `json:"created_at"`
}

type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanClosed     PlanStatus = "closed"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanPending, PlanInProgress, PlanCompleted, PlanClosed:
		return true
	}
	return false
}

type PlanMaterial struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type PlanDetail struct {
	CakeID            string             `json:"cake_id"`
	SelectedVariants  []VariantSelection `json:"selected_variants"`
	OrderCount        int                `json:"order_count"`
	OrderAmount       float64            `json:"order_amount"`
	CurrentInventory  float64            `json:"current_inventory"`
	PlannedProduction float64            `json:"planned_production"`
	Materials         []PlanMaterial     `json:"materials"`
}

func (d PlanDetail) Signature() string {
	return VariantSignature(d.SelectedVariants)
}

type Plan struct {
	ID        string       `json:"id"`
	BranchID  string       `json:"branch_id"`
	Date      string       `json:"date"`
	Status    PlanStatus   `json:"status"`
	Details   []PlanDetail `json:"details"`
	OrderIDs  []string     `json:"order_ids"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	UserID string
	Email  string
	Role   string
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Name      string
	Email     string
	Password  string
	Role      string
	BranchID  string
	Active    bool
	CreatedAt time.Time
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	BranchID    string `json:"branch_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type CheckoutItem struct {
	CakeID           string             `json:"cake_id"`
	SelectedVariants []VariantSelection `json:"selected_variants"`
	Quantity         float64            `json:"quantity"`
}

type CheckoutBranchOrder struct {
	BranchID     string         `json:"branch_id"`
	Items        []CheckoutItem `json:"items"`
	Note         string         `json:"note,omitempty"`
	VoucherCode  string         `json:"voucher_code,omitempty"`
	Urgent       bool           `json:"urgent"`
	ExpectedTime string         `json:"expected_time,omitempty"`
}

type CheckoutRequest struct {
	CustomerID     string                `json:"customer_id,omitempty"`
	OrderType      OrderType             `json:"order_type"`
	CashOnDelivery bool                  `json:"cash_on_delivery"`
	BranchOrders   []CheckoutBranchOrder `json:"branch_orders"`
}

type CheckoutResponse struct {
	Group  OrderGroup `json:"group"`
	Orders []Order    `json:"orders"`
}

type SetOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}

type TerminateOrderRequest struct {
	Status OrderStatus `json:"status"`
	Reason string      `json:"reason"`
}

type PaymentStatusRequest struct {
	Status PaymentStatus `json:"status"`
}

type ImportLine struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type ImportRequest struct {
	BranchID string       `json:"branch_id"`
	Lines    []ImportLine `json:"lines"`
}

type ExpireLine struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type RemoveExpiredRequest struct {
	BranchID string       `json:"branch_id"`
	Lines    []ExpireLine `json:"lines"`
}

type PlanStatusRequest struct {
	Status PlanStatus     `json:"status"`
	Adjust bool           `json:"adjust"`
	Totals []PlanMaterial `json:"totals,omitempty"`
}

type OutboxEvent struct {
	ID          string     `json:"id"`
	Seq         int64      `json:"seq"`
	Kind        string     `json:"kind"`
	Key         string     `json:"key"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

const (
	EventBranchRestock  = "branch.restock"
	EventPaymentUpdated = "payment.updated"
)

type RestockEvent struct {
	BranchID string      `json:"branch_id"`
	OrderID  string      `json:"order_id"`
	Items    []OrderItem `json:"items"`
}

type PaymentUpdatedEvent struct {
	GroupID string        `json:"group_id"`
	Status  PaymentStatus `json:"status"`
}
