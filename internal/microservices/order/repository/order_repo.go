package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"food-marketplace/internal/domain"
)

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, order_number, customer_id, vendor_id, delivery_partner_id, status,
	subtotal::text, delivery_fee::text, tax::text, discount::text, total::text,
	delivery_address, payment_method, created_at, updated_at, estimated_completion,
	delivered_at, cancelled_at, version`

func (r *OrderRepository) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to get order number: %w", err)
	}
	return formatOrderNumber(at, n), nil
}

func formatOrderNumber(at time.Time, n int64) string {
	return fmt.Sprintf("ORD_%s_%06d", at.UTC().Format("20060102"), n)
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	addr, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("failed to encode delivery address: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. order row
	_, err = tx.Exec(ctx, `
		INSERT INTO orders
		    (id, order_number, customer_id, vendor_id, delivery_partner_id, status,
		     subtotal, delivery_fee, tax, discount, total,
		     delivery_address, payment_method, created_at, updated_at, estimated_completion,
		     delivered_at, cancelled_at, version)
		VALUES
		    ($1, $2, $3, $4, $5, $6,
		     $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric,
		     $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		o.ID, o.Number, o.CustomerID, o.VendorID, o.DeliveryPartnerID, string(o.Status),
		o.Pricing.Subtotal.String(), o.Pricing.DeliveryFee.String(), o.Pricing.Tax.String(),
		o.Pricing.Discount.String(), o.Pricing.Total.String(),
		addr, string(o.PaymentMethod), o.CreatedAt, o.UpdatedAt, o.EstimatedCompletion,
		o.DeliveredAt, o.CancelledAt, o.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("order %s already exists: %w", o.Number, ErrConflict)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	// 2. items
	for i, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, menu_item_id, name, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric)
		`, o.ID, i, it.MenuItemID, it.Name, it.UnitPrice.String(), it.Quantity, it.LineTotal.String())
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", it.MenuItemID, err)
		}
	}

	// 3. status log
	for _, h := range o.History {
		if err = insertHistory(ctx, tx, o.ID, h); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID string, h domain.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_by_role, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, string(h.Status), h.ActorID, string(h.ActorRole), h.At)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("order %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if err := r.loadChildren(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int) error {
	if len(o.History) == 0 {
		return errors.New("update status: order has no history")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2, delivered_at = $3, cancelled_at = $4, version = $5
		WHERE id = $6 AND status = $7 AND version = $8
	`, string(o.Status), o.UpdatedAt, o.DeliveredAt, o.CancelledAt, o.Version,
		o.ID, string(expected), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if err := insertHistory(ctx, tx, o.ID, o.History[len(o.History)-1]); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *OrderRepository) AssignPartner(ctx context.Context, id, partnerID string, at time.Time) (*domain.Order, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_partner_id = $1, updated_at = $2, version = version + 1
		WHERE id = $3 AND status = $4 AND delivery_partner_id IS NULL
	`, partnerID, at, id, string(domain.StatusHandedToDelivery))
	if err != nil {
		return nil, fmt.Errorf("failed to assign partner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}
	return r.GetByID(ctx, id)
}

func (r *OrderRepository) ListAvailable(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND delivery_partner_id IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, string(domain.StatusHandedToDelivery), limit)
	if err != nil {
		return nil, fmt.Errorf("list available orders: %w", err)
	}
	return r.collect(ctx, rows)
}

func (r *OrderRepository) ListForActor(ctx context.Context, actor domain.Actor, limit int, cursor string) ([]*domain.Order, string, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		args    []any
		filters []string
	)
	switch actor.Role {
	case domain.RoleCustomer:
		filters = append(filters, "customer_id = $1")
		args = append(args, actor.ID)
	case domain.RoleVendor:
		filters = append(filters, "vendor_id = $1")
		args = append(args, actor.ID)
	case domain.RoleDelivery:
		filters = append(filters, "delivery_partner_id = $1")
		args = append(args, actor.ID)
	}
	if cursor != "" {
		args = append(args, cursor)
		n := strconv.Itoa(len(args))
		filters = append(filters, "(created_at, id) < (SELECT created_at, id FROM orders WHERE id = $"+n+")")
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	for i, f := range filters {
		if i == 0 {
			query += " WHERE " + f
		} else {
			query += " AND " + f
		}
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list orders: %w", err)
	}
	orders, err := r.collect(ctx, rows)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(orders) == limit {
		next = orders[len(orders)-1].ID
	}
	return orders, next, nil
}

func (r *OrderRepository) collect(ctx context.Context, rows pgx.Rows) ([]*domain.Order, error) {
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadChildren fills items and history for a batch of orders in two queries.
func (r *OrderRepository) loadChildren(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT order_id, menu_item_id, name, unit_price::text, quantity, line_total::text
		FROM order_items WHERE order_id = ANY($1::text[]) ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID, unit, line string
			it                  domain.LineItem
		)
		if err := rows.Scan(&orderID, &it.MenuItemID, &it.Name, &unit, &it.Quantity, &line); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		if err := decodeAmounts(
			amount{unit, &it.UnitPrice},
			amount{line, &it.LineTotal},
		); err != nil {
			rows.Close()
			return fmt.Errorf("order item %s/%s: %w", orderID, it.MenuItemID, err)
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT order_id, status, changed_by, changed_by_role, changed_at
		FROM order_status_log WHERE order_id = ANY($1::text[]) ORDER BY order_id, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load order history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID, status, role string
			h                     domain.HistoryEntry
		)
		if err := rows.Scan(&orderID, &status, &h.ActorID, &role, &h.At); err != nil {
			return fmt.Errorf("scan order history: %w", err)
		}
		h.Status = domain.OrderStatus(status)
		h.ActorRole = domain.Role(role)
		byID[orderID].History = append(byID[orderID].History, h)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                   domain.Order
		status, payment                     string
		subtotal, fee, tax, discount, total string
		addr                                []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.VendorID, &o.DeliveryPartnerID, &status,
		&subtotal, &fee, &tax, &discount, &total,
		&addr, &payment, &o.CreatedAt, &o.UpdatedAt, &o.EstimatedCompletion,
		&o.DeliveredAt, &o.CancelledAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentMethod = domain.PaymentMethod(payment)
	if err := json.Unmarshal(addr, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("decode delivery address: %w", err)
	}
	if err := decodeAmounts(
		amount{subtotal, &o.Pricing.Subtotal},
		amount{fee, &o.Pricing.DeliveryFee},
		amount{tax, &o.Pricing.Tax},
		amount{discount, &o.Pricing.Discount},
		amount{total, &o.Pricing.Total},
	); err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return &o, nil
}

// amount pairs a NUMERIC column read as text with its destination.
type amount struct {
	src string
	dst *decimal.Decimal
}

func decodeAmounts(fields ...amount) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return fmt.Errorf("decode amount %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return nil
}
