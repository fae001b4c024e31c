package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/fulfillment/internal/domain/cart"
)

const (
	findCartSQL = `SELECT id, user_id, total_price FROM carts WHERE id = $1 AND user_id = $2`

	insertCartSQL = `INSERT INTO carts (id, user_id, total_price) VALUES ($1, $2, $3)`

	updateCartSQL = `UPDATE carts SET total_price = $2 WHERE id = $1
		RETURNING id, user_id, total_price`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`

	findCartItemsSQL = `SELECT id, cart_id, product_id, quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY product_id`

	insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES ($1, $2, $3, $4)`

	updateCartItemSQL = `UPDATE cart_items SET quantity = $2 WHERE id = $1`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1`
)

var (
	_ cart.Repository     = (*CartRepository)(nil)
	_ cart.ItemRepository = (*CartItemRepository)(nil)
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindCart returns the cart with cartID owned by userID.
func (r *CartRepository) FindCart(ctx context.Context, cartID, userID uuid.UUID) (*cart.Cart, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findCartSQL, cartID, userID)
	if err != nil {
		return nil, fmt.Errorf("finding cart %s: %w", cartID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[cart.Cart])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart %s: %w", cartID, err)
	}
	return &c, nil
}

// AddCart inserts c.
func (r *CartRepository) AddCart(ctx context.Context, c *cart.Cart) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, insertCartSQL, c.ID, c.UserID, c.TotalPrice); err != nil {
		return fmt.Errorf("inserting cart %s: %w", c.ID, err)
	}
	return nil
}

// UpdateCart stores the total of c and returns the stored cart.
func (r *CartRepository) UpdateCart(ctx context.Context, c *cart.Cart) (*cart.Cart, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, updateCartSQL, c.ID, c.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("updating cart %s: %w", c.ID, err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[cart.Cart])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("updating cart %s: %w", c.ID, err)
	}
	return &updated, nil
}

// RemoveCart deletes the cart and, by cascade, its items.
func (r *CartRepository) RemoveCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, deleteCartSQL, cartID); err != nil {
		return fmt.Errorf("deleting cart %s: %w", cartID, err)
	}
	return nil
}

// CartItemRepository implements cart.ItemRepository backed by PostgreSQL.
type CartItemRepository struct {
	pool *pgxpool.Pool
}

// NewCartItemRepository returns a CartItemRepository that uses the given pool.
func NewCartItemRepository(pool *pgxpool.Pool) *CartItemRepository {
	return &CartItemRepository{pool: pool}
}

// FindItemsByCartID returns the items of a cart ordered by product.
func (r *CartItemRepository) FindItemsByCartID(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("finding items of cart %s: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[cart.Item])
	if err != nil {
		return nil, fmt.Errorf("finding items of cart %s: %w", cartID, err)
	}
	return items, nil
}

// AddItem inserts it.
func (r *CartItemRepository) AddItem(ctx context.Context, it *cart.Item) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertCartItemSQL, it.ID, it.CartID, it.ProductID, it.Quantity)
	if err != nil {
		return fmt.Errorf("inserting cart item %s: %w", it.ID, err)
	}
	return nil
}

// UpdateItem stores the quantity of it.
func (r *CartItemRepository) UpdateItem(ctx context.Context, it *cart.Item) error {
	_, err := conn(ctx, r.pool).Exec(ctx, updateCartItemSQL, it.ID, it.Quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %s: %w", it.ID, err)
	}
	return nil
}

// RemoveItem deletes the item with itemID.
func (r *CartItemRepository) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, deleteCartItemSQL, itemID); err != nil {
		return fmt.Errorf("deleting cart item %s: %w", itemID, err)
	}
	return nil
}
