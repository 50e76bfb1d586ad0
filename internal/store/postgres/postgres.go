package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"banhngot/backend/internal/domain"
	"banhngot/backend/internal/store"
	"banhngot/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_type, calc_unit, price_per_unit, deleted
		FROM materials
		WHERE deleted = false
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := make([]domain.Material, 0, 64)
	for rows.Next() {
		var m domain.Material
		if err := rows.Scan(&m.ID, &m.Name, &m.UnitType, &m.CalcUnit, &m.PricePerUnit, &m.Deleted); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return materials, nil
}

func (s *Store) GetMaterialByID(ctx context.Context, id string) (*domain.Material, error) {
	var m domain.Material
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit_type, calc_unit, price_per_unit, deleted
		FROM materials
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.UnitType, &m.CalcUnit, &m.PricePerUnit, &m.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreateMaterial(ctx context.Context, material domain.Material) (*domain.Material, error) {
	if material.Name == "" || material.CalcUnit == "" {
		return nil, store.ErrInvalidOrder
	}
	if material.ID == "" {
		material.ID = xid.New("mat")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (id, name, unit_type, calc_unit, price_per_unit, deleted, created_at)
		VALUES ($1,$2,$3,$4,$5,false,now())
	`, material.ID, material.Name, material.UnitType, material.CalcUnit, material.PricePerUnit)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := material
	return &created, nil
}

func (s *Store) ListCakes(ctx context.Context) ([]domain.Cake, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, recipe_id, sold_count, hidden, deleted
		FROM cakes
		WHERE deleted = false AND hidden = false
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cakes := make([]domain.Cake, 0, 64)
	for rows.Next() {
		var c domain.Cake
		if err := rows.Scan(&c.ID, &c.Name, &c.Price, &c.RecipeID, &c.SoldCount, &c.Hidden, &c.Deleted); err != nil {
			return nil, err
		}
		cakes = append(cakes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cakes, nil
}

func (s *Store) GetCakeByID(ctx context.Context, id string) (*domain.Cake, error) {
	var c domain.Cake
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, recipe_id, sold_count, hidden, deleted
		FROM cakes
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Price, &c.RecipeID, &c.SoldCount, &c.Hidden, &c.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error) {
	return s.queryRecipe(ctx, `
		SELECT id, name, lines, steps, variants
		FROM recipes
		WHERE id = $1
	`, id)
}

func (s *Store) GetRecipeByCakeID(ctx context.Context, cakeID string) (*domain.Recipe, error) {
	return s.queryRecipe(ctx, `
		SELECT r.id, r.name, r.lines, r.steps, r.variants
		FROM recipes r
		JOIN cakes c ON c.recipe_id = r.id
		WHERE c.id = $1
	`, cakeID)
}

func (s *Store) queryRecipe(ctx context.Context, query string, arg string) (*domain.Recipe, error) {
	var rec domain.Recipe
	var lines, steps, variants []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&rec.ID, &rec.Name, &lines, &steps, &variants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRecipeNotFound
		}
		return nil, err
	}
	if err := unmarshalInto(lines, &rec.Lines); err != nil {
		return nil, err
	}
	if err := unmarshalInto(steps, &rec.Steps); err != nil {
		return nil, err
	}
	if err := unmarshalInto(variants, &rec.Variants); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) UpdateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	lines, err := json.Marshal(recipe.Lines)
	if err != nil {
		return nil, err
	}
	steps, err := json.Marshal(recipe.Steps)
	if err != nil {
		return nil, err
	}
	variants, err := json.Marshal(recipe.Variants)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recipes
		SET name = $2, lines = $3, steps = $4, variants = $5, updated_at = now()
		WHERE id = $1
	`, recipe.ID, recipe.Name, lines, steps, variants)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrRecipeNotFound
	}

	updated := recipe
	return &updated, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, materials, finished_goods
		FROM branches
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, *branch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) GetBranchByID(ctx context.Context, id string) (*domain.Branch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, materials, finished_goods
		FROM branches
		WHERE id = $1
	`, id)
	branch, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return branch, nil
}

func (s *Store) AdjustInventory(ctx context.Context, branchID string, mutations []store.Mutation, at time.Time) (*domain.Branch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	branch, err := lockBranch(ctx, tx, branchID)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMutations(branch, mutations, at); err != nil {
		return nil, err
	}
	if err := writeBranch(ctx, tx, branch); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return branch, nil
}

func (s *Store) CreateCheckout(ctx context.Context, group domain.OrderGroup, orders []domain.Order) (*domain.OrderGroup, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	orderIDs, err := json.Marshal(group.OrderIDs)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_groups (id, customer_id, payment_status, total_price, order_ids, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, group.ID, nullIfEmpty(group.CustomerID), group.PaymentStatus, group.TotalPrice, orderIDs, group.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, o := range orders {
		items, err := json.Marshal(o.Items)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, group_id, branch_id, customer_id, items, total_price, voucher_code,
				note, order_type, urgent, expected_time, status, handler_id,
				terminate_reason, created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		`, o.ID, o.GroupID, o.BranchID, nullIfEmpty(o.CustomerID), items, o.TotalPrice,
			o.VoucherCode, o.Note, o.Type, o.Urgent, o.ExpectedTime, o.Status,
			nullIfEmpty(o.HandlerID), o.TerminateReason, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, store.ErrConflict
			}
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := group
	return &created, nil
}

const orderColumns = `
	id, group_id, branch_id, COALESCE(customer_id,''), items, total_price,
	voucher_code, note, order_type, urgent, expected_time, status,
	COALESCE(handler_id,''), terminate_reason, created_at, updated_at
`

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) ListOrdersByBranch(ctx context.Context, branchID string, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE branch_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, branchID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrderGroupByID(ctx context.Context, id string) (*domain.OrderGroup, error) {
	return queryOrderGroup(ctx, s.db, id, false)
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, groupID string, status domain.PaymentStatus, events []domain.OutboxEvent) (*domain.OrderGroup, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	group, err := queryOrderGroup(ctx, tx, groupID, true)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE order_groups SET payment_status = $2 WHERE id = $1
	`, groupID, status)
	if err != nil {
		return nil, err
	}
	group.PaymentStatus = status

	if status == domain.PaymentFailed {
		for _, orderID := range group.OrderIDs {
			_, err = tx.ExecContext(ctx, `
				UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
			`, orderID, domain.OrderCancelled)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Store) ApplyOrderTransition(ctx context.Context, tr store.OrderTransition) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, tr.OrderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if len(tr.Mutations) > 0 {
		branch, err := lockBranch(ctx, tx, tr.BranchID)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMutations(branch, tr.Mutations, tr.At); err != nil {
			return nil, err
		}
		if err := writeBranch(ctx, tx, branch); err != nil {
			return nil, err
		}
	}

	for cakeID, qty := range tr.SoldCounts {
		res, err := tx.ExecContext(ctx, `
			UPDATE cakes SET sold_count = sold_count + $2 WHERE id = $1
		`, cakeID, int64(qty))
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	if tr.PointsDelta != 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE customers SET points = points + $2 WHERE id = $1
		`, tr.CustomerID, tr.PointsDelta)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	order.Status = tr.Status
	order.HandlerID = tr.HandlerID
	if tr.TerminateReason != "" {
		order.TerminateReason = tr.TerminateReason
	}
	order.UpdatedAt = tr.At
	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, handler_id = $3, terminate_reason = $4, updated_at = $5
		WHERE id = $1
	`, tr.OrderID, order.Status, nullIfEmpty(order.HandlerID), order.TerminateReason, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertEvents(ctx, tx, tr.Events); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

const planColumns = `id, branch_id, plan_date, status, details, order_ids, created_at, updated_at`

func (s *Store) GetPlanByID(ctx context.Context, id string) (*domain.Plan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *Store) FindPlan(ctx context.Context, branchID string, date string) (*domain.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE branch_id = $1 AND plan_date = $2 AND status <> $3
		ORDER BY created_at DESC
		LIMIT 1
	`, branchID, date, domain.PlanClosed)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *Store) ListPlansByBranch(ctx context.Context, branchID string, limit int) ([]domain.Plan, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE branch_id = $1
		ORDER BY plan_date DESC
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]domain.Plan, 0, limit)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Store) SavePlan(ctx context.Context, plan domain.Plan) (*domain.Plan, error) {
	if plan.ID == "" {
		return nil, store.ErrInvalidOrder
	}
	plan.UpdatedAt = time.Now().UTC()

	details, err := json.Marshal(plan.Details)
	if err != nil {
		return nil, err
	}
	orderIDs, err := json.Marshal(plan.OrderIDs)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, branch_id, plan_date, status, details, order_ids, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status, details = EXCLUDED.details,
			order_ids = EXCLUDED.order_ids, updated_at = EXCLUDED.updated_at
	`, plan.ID, plan.BranchID, plan.Date, plan.Status, details, orderIDs, plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	saved := plan
	return &saved, nil
}

func (s *Store) ApplyPlanTransition(ctx context.Context, tr store.PlanTransition) (*domain.Plan, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1 FOR UPDATE`, tr.PlanID)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if len(tr.Mutations) > 0 {
		branch, err := lockBranch(ctx, tx, tr.BranchID)
		if err != nil {
			return nil, err
		}
		if err := store.ApplyMutations(branch, tr.Mutations, tr.At); err != nil {
			return nil, err
		}
		if err := writeBranch(ctx, tx, branch); err != nil {
			return nil, err
		}
	}

	for _, orderID := range tr.ReadyOrderIDs {
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
		`, orderID, domain.OrderReady, tr.At)
		if err != nil {
			return nil, err
		}
	}

	plan.Status = tr.Status
	plan.UpdatedAt = tr.At
	_, err = tx.ExecContext(ctx, `
		UPDATE plans SET status = $2, updated_at = $3 WHERE id = $1
	`, tr.PlanID, plan.Status, plan.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, points, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Points, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) AddCustomerPoints(ctx context.Context, customerID string, delta int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET points = points + $2
		WHERE id = $1
		RETURNING id, name, phone, points, created_at
	`, customerID, delta).Scan(&c.ID, &c.Name, &c.Phone, &c.Points, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListUnpublishedEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit < 1 {
		limit = 64
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, kind, key, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.OutboxEvent, 0, limit)
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &e.Key, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) MarkEventPublished(ctx context.Context, seq int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_events SET published_at = $2 WHERE seq = $1 AND published_at IS NULL
	`, seq, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, COALESCE(branch_id,''), active, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.BranchID, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Email == "" || user.Password == "" {
		return store.ErrInvalidOrder
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, branch_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.Name, user.Email, user.Password, user.Role, nullIfEmpty(user.BranchID), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryOrderGroup(ctx context.Context, q rowQuerier, id string, forUpdate bool) (*domain.OrderGroup, error) {
	query := `
		SELECT id, COALESCE(customer_id,''), payment_status, total_price, order_ids, created_at
		FROM order_groups
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var group domain.OrderGroup
	var orderIDs []byte
	err := q.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.CustomerID, &group.PaymentStatus, &group.TotalPrice, &orderIDs, &group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := unmarshalInto(orderIDs, &group.OrderIDs); err != nil {
		return nil, err
	}
	group.CreatedAt = group.CreatedAt.UTC()
	return &group, nil
}

func scanBranch(row rowScanner) (*domain.Branch, error) {
	var branch domain.Branch
	var materials, finishedGoods []byte
	if err := row.Scan(&branch.ID, &branch.Name, &branch.Address, &materials, &finishedGoods); err != nil {
		return nil, err
	}
	if err := unmarshalInto(materials, &branch.Materials); err != nil {
		return nil, err
	}
	if err := unmarshalInto(finishedGoods, &branch.FinishedGoods); err != nil {
		return nil, err
	}
	return &branch, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	err := row.Scan(
		&order.ID, &order.GroupID, &order.BranchID, &order.CustomerID, &items,
		&order.TotalPrice, &order.VoucherCode, &order.Note, &order.Type, &order.Urgent,
		&order.ExpectedTime, &order.Status, &order.HandlerID, &order.TerminateReason,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalInto(items, &order.Items); err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var plan domain.Plan
	var details, orderIDs []byte
	err := row.Scan(
		&plan.ID, &plan.BranchID, &plan.Date, &plan.Status, &details, &orderIDs,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalInto(details, &plan.Details); err != nil {
		return nil, err
	}
	if err := unmarshalInto(orderIDs, &plan.OrderIDs); err != nil {
		return nil, err
	}
	plan.CreatedAt = plan.CreatedAt.UTC()
	plan.UpdatedAt = plan.UpdatedAt.UTC()
	return &plan, nil
}

func lockBranch(ctx context.Context, tx *sql.Tx, branchID string) (*domain.Branch, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, name, address, materials, finished_goods
		FROM branches
		WHERE id = $1
		FOR UPDATE
	`, branchID)
	branch, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return branch, nil
}

func writeBranch(ctx context.Context, tx *sql.Tx, branch *domain.Branch) error {
	materials, err := json.Marshal(branch.Materials)
	if err != nil {
		return err
	}
	finishedGoods, err := json.Marshal(branch.FinishedGoods)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE branches
		SET materials = $2, finished_goods = $3, updated_at = now()
		WHERE id = $1
	`, branch.ID, materials, finishedGoods)
	return err
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []domain.OutboxEvent) error {
	for _, e := range events {
		id := e.ID
		if id == "" {
			id = xid.New("evt")
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, kind, key, payload, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, id, e.Kind, e.Key, e.Payload, createdAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func unmarshalInto(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
