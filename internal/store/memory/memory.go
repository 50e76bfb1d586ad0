package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
	"banhngot/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	materials    map[string]domain.Material
	recipes      map[string]domain.Recipe
	recipeByCake map[string]string
	cakes        map[string]domain.Cake
	branches     map[string]domain.Branch
	orders       map[string]domain.Order
	groups       map[string]domain.OrderGroup
	plans        map[string]domain.Plan
	customers    map[string]domain.Customer
	usersByEmail map[string]domain.UserAccount
	outbox       []domain.OutboxEvent
	outboxSeq    int64
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		name     string
		email    string
		password string
		role     string
		branchID string
	}{
		{"Admin", "admin@banhngot.local", adminPwd, domain.RoleAdmin, ""},
		{"Staff Q1", "staff@banhngot.local", staffPwd, domain.RoleStaff, "branch-q1"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users[u.email] = domain.UserAccount{
			ID:        xid.New("usr"),
			Name:      u.name,
			Email:     u.email,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  u.branchID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	materials := []domain.Material{
		{ID: "mat-flour", Name: "Bột mì", UnitType: domain.MaterialUnitIngredient, CalcUnit: "g", PricePerUnit: 25},
		{ID: "mat-sugar", Name: "Đường", UnitType: domain.MaterialUnitIngredient, CalcUnit: "g", PricePerUnit: 20},
		{ID: "mat-butter", Name: "Bơ", UnitType: domain.MaterialUnitIngredient, CalcUnit: "g", PricePerUnit: 90},
		{ID: "mat-egg", Name: "Trứng gà", UnitType: domain.MaterialUnitIngredient, CalcUnit: "pc", PricePerUnit: 3500},
		{ID: "mat-cream", Name: "Kem tươi", UnitType: domain.MaterialUnitIngredient, CalcUnit: "ml", PricePerUnit: 60},
		{ID: "mat-matcha", Name: "Bột matcha", UnitType: domain.MaterialUnitIngredient, CalcUnit: "g", PricePerUnit: 450},
		{ID: "mat-choco", Name: "Socola", UnitType: domain.MaterialUnitIngredient, CalcUnit: "g", PricePerUnit: 220},
		{ID: "mat-box", Name: "Hộp bánh", UnitType: domain.MaterialUnitAccessory, CalcUnit: "pc", PricePerUnit: 4000},
	}

	recipes := []domain.Recipe{
		{
			ID:   "rcp-sponge",
			Name: "Bánh bông lan",
			Lines: []domain.RecipeLine{
				{MaterialID: "mat-flour", Quantity: 120},
				{MaterialID: "mat-sugar", Quantity: 80},
				{MaterialID: "mat-egg", Quantity: 3},
			},
			Variants: []domain.VariantGroup{
				{
					VariantKey: "flavor",
					Label:      "Vị",
					Items: []domain.VariantItem{
						{ItemKey: "matcha", Name: "Matcha", PriceDelta: 15000, Lines: []domain.RecipeLine{{MaterialID: "mat-matcha", Quantity: 12}}},
						{ItemKey: "choco", Name: "Socola", PriceDelta: 12000, Lines: []domain.RecipeLine{{MaterialID: "mat-choco", Quantity: 30}}},
					},
				},
				{
					VariantKey: "topping",
					Label:      "Phủ kem",
					Items: []domain.VariantItem{
						{ItemKey: "cream", Name: "Kem tươi", PriceDelta: 10000, Lines: []domain.RecipeLine{{MaterialID: "mat-cream", Quantity: 50}}},
					},
				},
			},
		},
		{
			ID:   "rcp-croissant",
			Name: "Bánh sừng bò",
			Lines: []domain.RecipeLine{
				{MaterialID: "mat-flour", Quantity: 90},
				{MaterialID: "mat-butter", Quantity: 60},
				{MaterialID: "mat-sugar", Quantity: 15},
			},
		},
	}

	cakes := []domain.Cake{
		{ID: "cake-sponge", Name: "Bông lan trứng muối", Price: 85000, RecipeID: "rcp-sponge"},
		{ID: "cake-croissant", Name: "Croissant bơ", Price: 35000, RecipeID: "rcp-croissant"},
	}

	branches := []domain.Branch{
		{
			ID:      "branch-q1",
			Name:    "Bánh Ngọt Quận 1",
			Address: "12 Lê Lợi, Quận 1",
			Materials: []domain.MaterialStock{
				seedMaterialStock("mat-flour", 5000),
				seedMaterialStock("mat-sugar", 3000),
				seedMaterialStock("mat-butter", 2000),
				seedMaterialStock("mat-egg", 200),
				seedMaterialStock("mat-cream", 1500),
				seedMaterialStock("mat-matcha", 300),
				seedMaterialStock("mat-choco", 800),
			},
		},
		{
			ID:      "branch-q3",
			Name:    "Bánh Ngọt Quận 3",
			Address: "45 Võ Văn Tần, Quận 3",
			Materials: []domain.MaterialStock{
				seedMaterialStock("mat-flour", 4000),
				seedMaterialStock("mat-sugar", 2500),
				seedMaterialStock("mat-butter", 1500),
				seedMaterialStock("mat-egg", 150),
			},
			FinishedGoods: []domain.FinishedGoodStock{
				{
					CakeID:  "cake-croissant",
					Volume:  24,
					History: []domain.InventoryChange{{Delta: 24, Type: domain.ChangeNewImport, CreatedAt: time.Now().UTC()}},
				},
			},
		},
	}

	customers := []domain.Customer{
		{ID: "cus-lan", Name: "Trần Thị Lan", Phone: "0903123456", Points: 120, CreatedAt: time.Now().UTC()},
		{ID: "cus-minh", Name: "Ngô Văn Minh", Phone: "0917654321", Points: 0, CreatedAt: time.Now().UTC()},
	}

	s := &Store{
		materials:    make(map[string]domain.Material, len(materials)),
		recipes:      make(map[string]domain.Recipe, len(recipes)),
		recipeByCake: make(map[string]string, len(cakes)),
		cakes:        make(map[string]domain.Cake, len(cakes)),
		branches:     make(map[string]domain.Branch, len(branches)),
		orders:       make(map[string]domain.Order),
		groups:       make(map[string]domain.OrderGroup),
		plans:        make(map[string]domain.Plan),
		customers:    make(map[string]domain.Customer, len(customers)),
		usersByEmail: seedUsers(),
		outbox:       make([]domain.OutboxEvent, 0, 32),
	}
	for _, m := range materials {
		s.materials[m.ID] = m
	}
	for _, r := range recipes {
		s.recipes[r.ID] = r
	}
	for _, c := range cakes {
		s.cakes[c.ID] = c
		s.recipeByCake[c.ID] = c.RecipeID
	}
	for _, b := range branches {
		s.branches[b.ID] = b
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

func seedMaterialStock(materialID string, volume float64) domain.MaterialStock {
	return domain.MaterialStock{
		MaterialID: materialID,
		Volume:     volume,
		History:    []domain.InventoryChange{{Delta: volume, Type: domain.ChangeNewImport, CreatedAt: time.Now().UTC()}},
	}
}

func (s *Store) ListMaterials(_ context.Context) ([]domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	materials := make([]domain.Material, 0, len(s.materials))
	for _, m := range s.materials {
		if m.Deleted {
			continue
		}
		materials = append(materials, m)
	}
	slices.SortFunc(materials, func(a, b domain.Material) int {
		return cmpString(a.ID, b.ID)
	})
	return materials, nil
}

func (s *Store) GetMaterialByID(_ context.Context, id string) (*domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	material, exists := s.materials[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMaterial := material
	return &copyMaterial, nil
}

func (s *Store) CreateMaterial(_ context.Context, material domain.Material) (*domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if material.Name == "" || material.CalcUnit == "" {
		return nil, store.ErrInvalidOrder
	}
	if material.ID == "" {
		material.ID = xid.New("mat")
	}
	if _, exists := s.materials[material.ID]; exists {
		return nil, store.ErrConflict
	}
	s.materials[material.ID] = material
	created := material
	return &created, nil
}

func (s *Store) ListCakes(_ context.Context) ([]domain.Cake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cakes := make([]domain.Cake, 0, len(s.cakes))
	for _, c := range s.cakes {
		if c.Deleted || c.Hidden {
			continue
		}
		cakes = append(cakes, c)
	}
	slices.SortFunc(cakes, func(a, b domain.Cake) int {
		return cmpString(a.ID, b.ID)
	})
	return cakes, nil
}

func (s *Store) GetCakeByID(_ context.Context, id string) (*domain.Cake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cake, exists := s.cakes[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCake := cake
	return &copyCake, nil
}

func (s *Store) GetRecipeByID(_ context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.recipes[id]
	if !exists {
		return nil, store.ErrRecipeNotFound
	}
	return cloneRecipe(rec), nil
}

func (s *Store) GetRecipeByCakeID(_ context.Context, cakeID string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipeID, exists := s.recipeByCake[cakeID]
	if !exists {
		return nil, store.ErrRecipeNotFound
	}
	rec, exists := s.recipes[recipeID]
	if !exists {
		return nil, store.ErrRecipeNotFound
	}
	return cloneRecipe(rec), nil
}

func (s *Store) UpdateRecipe(_ context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recipes[recipe.ID]; !exists {
		return nil, store.ErrRecipeNotFound
	}
	s.recipes[recipe.ID] = recipe
	return cloneRecipe(recipe), nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		branches = append(branches, *cloneBranch(b))
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int {
		return cmpString(a.ID, b.ID)
	})
	return branches, nil
}

func (s *Store) GetBranchByID(_ context.Context, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, exists := s.branches[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneBranch(branch), nil
}

func (s *Store) AdjustInventory(_ context.Context, branchID string, mutations []store.Mutation, at time.Time) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch, exists := s.branches[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}

	updated := cloneBranch(branch)
	if err := store.ApplyMutations(updated, mutations, at); err != nil {
		return nil, err
	}
	s.branches[branchID] = *updated
	return cloneBranch(*updated), nil
}

func (s *Store) CreateCheckout(_ context.Context, group domain.OrderGroup, orders []domain.Order) (*domain.OrderGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.ID]; exists {
		return nil, store.ErrConflict
	}
	for _, o := range orders {
		if _, exists := s.orders[o.ID]; exists {
			return nil, store.ErrConflict
		}
		if _, exists := s.branches[o.BranchID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	s.groups[group.ID] = group
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	created := group
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrdersByBranch(_ context.Context, branchID string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.BranchID != branchID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *Store) GetOrderGroupByID(_ context.Context, id string) (*domain.OrderGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.groups[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyGroup := group
	copyGroup.OrderIDs = slices.Clone(group.OrderIDs)
	return &copyGroup, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, groupID string, status domain.PaymentStatus, events []domain.OutboxEvent) (*domain.OrderGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, exists := s.groups[groupID]
	if !exists {
		return nil, store.ErrNotFound
	}

	group.PaymentStatus = status
	s.groups[groupID] = group
	if status == domain.PaymentFailed {
		for _, orderID := range group.OrderIDs {
			order, ok := s.orders[orderID]
			if !ok {
				continue
			}
			order.Status = domain.OrderCancelled
			order.UpdatedAt = time.Now().UTC()
			s.orders[orderID] = order
		}
	}
	s.appendEvents(events)

	copyGroup := group
	copyGroup.OrderIDs = slices.Clone(group.OrderIDs)
	return &copyGroup, nil
}

func (s *Store) ApplyOrderTransition(_ context.Context, tr store.OrderTransition) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[tr.OrderID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Validate the whole write set against clones before touching anything.
	var updatedBranch *domain.Branch
	if len(tr.Mutations) > 0 {
		branch, ok := s.branches[tr.BranchID]
		if !ok {
			return nil, store.ErrNotFound
		}
		updatedBranch = cloneBranch(branch)
		if err := store.ApplyMutations(updatedBranch, tr.Mutations, tr.At); err != nil {
			return nil, err
		}
	}
	for cakeID := range tr.SoldCounts {
		if _, ok := s.cakes[cakeID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if tr.PointsDelta != 0 {
		if _, ok := s.customers[tr.CustomerID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	if updatedBranch != nil {
		s.branches[tr.BranchID] = *updatedBranch
	}
	for cakeID, qty := range tr.SoldCounts {
		cake := s.cakes[cakeID]
		cake.SoldCount += int64(qty)
		s.cakes[cakeID] = cake
	}
	if tr.PointsDelta != 0 {
		customer := s.customers[tr.CustomerID]
		customer.Points += tr.PointsDelta
		s.customers[tr.CustomerID] = customer
	}

	order.Status = tr.Status
	order.HandlerID = tr.HandlerID
	if tr.TerminateReason != "" {
		order.TerminateReason = tr.TerminateReason
	}
	order.UpdatedAt = tr.At
	s.orders[tr.OrderID] = order
	s.appendEvents(tr.Events)

	return cloneOrder(order), nil
}

func (s *Store) GetPlanByID(_ context.Context, id string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return clonePlan(plan), nil
}

func (s *Store) FindPlan(_ context.Context, branchID string, date string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.BranchID == branchID && p.Date == date && p.Status != domain.PlanClosed {
			return clonePlan(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPlansByBranch(_ context.Context, branchID string, limit int) ([]domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]domain.Plan, 0)
	for _, p := range s.plans {
		if p.BranchID != branchID {
			continue
		}
		plans = append(plans, *clonePlan(p))
	}
	slices.SortFunc(plans, func(a, b domain.Plan) int {
		return cmpString(b.Date, a.Date)
	})
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

func (s *Store) SavePlan(_ context.Context, plan domain.Plan) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == "" {
		return nil, store.ErrInvalidOrder
	}
	plan.UpdatedAt = time.Now().UTC()
	s.plans[plan.ID] = *clonePlan(plan)
	return clonePlan(plan), nil
}

func (s *Store) ApplyPlanTransition(_ context.Context, tr store.PlanTransition) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, exists := s.plans[tr.PlanID]
	if !exists {
		return nil, store.ErrNotFound
	}

	var updatedBranch *domain.Branch
	if len(tr.Mutations) > 0 {
		branch, ok := s.branches[tr.BranchID]
		if !ok {
			return nil, store.ErrNotFound
		}
		updatedBranch = cloneBranch(branch)
		if err := store.ApplyMutations(updatedBranch, tr.Mutations, tr.At); err != nil {
			return nil, err
		}
	}

	if updatedBranch != nil {
		s.branches[tr.BranchID] = *updatedBranch
	}
	for _, orderID := range tr.ReadyOrderIDs {
		order, ok := s.orders[orderID]
		if !ok {
			continue
		}
		order.Status = domain.OrderReady
		order.UpdatedAt = tr.At
		s.orders[orderID] = order
	}

	plan.Status = tr.Status
	plan.UpdatedAt = tr.At
	s.plans[tr.PlanID] = plan
	return clonePlan(plan), nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) AddCustomerPoints(_ context.Context, customerID string, delta int64) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customers[customerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer.Points += delta
	s.customers[customerID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListUnpublishedEvents(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.OutboxEvent, 0)
	for _, e := range s.outbox {
		if e.PublishedAt != nil {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (s *Store) MarkEventPublished(_ context.Context, seq int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].Seq == seq {
			publishedAt := at
			s.outbox[i].PublishedAt = &publishedAt
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[email]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email == "" || user.Password == "" {
		return store.ErrInvalidOrder
	}
	if _, exists := s.usersByEmail[user.Email]; exists {
		return store.ErrConflict
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByEmail[user.Email] = user
	return nil
}

// appendEvents assigns sequence numbers and timestamps under the caller's
// write lock.
func (s *Store) appendEvents(events []domain.OutboxEvent) {
	for _, e := range events {
		s.outboxSeq++
		e.Seq = s.outboxSeq
		if e.ID == "" {
			e.ID = xid.New("evt")
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		s.outbox = append(s.outbox, e)
	}
}

func cloneBranch(b domain.Branch) *domain.Branch {
	copyBranch := b
	copyBranch.Materials = make([]domain.MaterialStock, len(b.Materials))
	for i, m := range b.Materials {
		copyStock := m
		copyStock.History = slices.Clone(m.History)
		copyBranch.Materials[i] = copyStock
	}
	copyBranch.FinishedGoods = make([]domain.FinishedGoodStock, len(b.FinishedGoods))
	for i, fg := range b.FinishedGoods {
		copyStock := fg
		copyStock.SelectedVariants = slices.Clone(fg.SelectedVariants)
		copyStock.History = slices.Clone(fg.History)
		copyBranch.FinishedGoods[i] = copyStock
	}
	return &copyBranch
}

func cloneOrder(o domain.Order) *domain.Order {
	copyOrder := o
	copyOrder.Items = make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		copyItem := item
		copyItem.SelectedVariants = slices.Clone(item.SelectedVariants)
		copyOrder.Items[i] = copyItem
	}
	return &copyOrder
}

func clonePlan(p domain.Plan) *domain.Plan {
	copyPlan := p
	copyPlan.OrderIDs = slices.Clone(p.OrderIDs)
	copyPlan.Details = make([]domain.PlanDetail, len(p.Details))
	for i, d := range p.Details {
		copyDetail := d
		copyDetail.SelectedVariants = slices.Clone(d.SelectedVariants)
		copyDetail.Materials = slices.Clone(d.Materials)
		copyPlan.Details[i] = copyDetail
	}
	return &copyPlan
}

func cloneRecipe(r domain.Recipe) *domain.Recipe {
	copyRecipe := r
	copyRecipe.Lines = slices.Clone(r.Lines)
	copyRecipe.Steps = slices.Clone(r.Steps)
	copyRecipe.Variants = make([]domain.VariantGroup, len(r.Variants))
	for i, g := range r.Variants {
		copyGroup := g
		copyGroup.Items = make([]domain.VariantItem, len(g.Items))
		for j, item := range g.Items {
			copyItem := item
			copyItem.Lines = slices.Clone(item.Lines)
			copyGroup.Items[j] = copyItem
		}
		copyRecipe.Variants[i] = copyGroup
	}
	return &copyRecipe
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
