package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/fulfillment/internal/domain/order"
)

const (
	orderColumns = `id, user_id, cart_id, offer_id, type, total_price, status, created_at, updated_at`

	findOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	findOrderByCartSQL = `SELECT ` + orderColumns + ` FROM orders WHERE cart_id = $1`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + orderColumns

	updateOrderSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
		RETURNING ` + orderColumns

	ordersCartIDKey = "orders_cart_id_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FindOrder returns the order with orderID owned by userID.
func (r *OrderRepository) FindOrder(ctx context.Context, orderID, userID uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, findOrderSQL, orderID, userID)
}

// FindOrderByCartID returns the order created from cartID.
func (r *OrderRepository) FindOrderByCartID(ctx context.Context, cartID uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, findOrderByCartSQL, cartID)
}

// CreateOrder inserts o and returns the stored row. A second order for the
// same cart fails with order.ErrAlreadyExists.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, insertOrderSQL,
		o.ID, o.UserID, o.CartID, o.OfferID, string(o.Type), o.TotalPrice, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	var created order.Order
	if err == nil {
		created, err = pgx.CollectExactlyOneRow(rows, scanOrder)
	}
	if err != nil {
		if isUniqueViolation(err, ordersCartIDKey) {
			return nil, order.ErrAlreadyExists
		}
		return nil, fmt.Errorf("inserting order %s: %w", o.ID, err)
	}
	return &created, nil
}

// UpdateOrder stores the status and updated_at of o and returns the stored row.
func (r *OrderRepository) UpdateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, updateOrderSQL, o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("updating order %s: %w", o.ID, err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %s: %w", o.ID, err)
	}
	return &updated, nil
}

func (r *OrderRepository) findOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		typ    string
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.OfferID, &typ, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt)
	o.Type = order.Type(typ)
	o.Status = order.Status(status)
	return o, err
}
