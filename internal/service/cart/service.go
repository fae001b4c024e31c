// Package cart implements cart building and the reconciliation of a cart's
// persisted items against a requested item list.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/cart"
	"github.com/xenking/fulfillment/internal/domain/product"
	"github.com/xenking/fulfillment/internal/domain/user"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// Transactor runs fn in a single unit of work. Repository calls made with the
// ctx passed to fn join it; returning an error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestedItem is one line of a create or update request.
type RequestedItem struct {
	ProductID int64
	Quantity  int
}

// Snapshot is the externally visible state of a cart.
type Snapshot struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TotalPrice decimal.Decimal
	Items      []cart.Item
}

// UpdateResult is returned by UpdateCart. When the update removed every item
// the cart itself is deleted, Removed is true and Cart is nil.
type UpdateResult struct {
	Cart    *Snapshot
	Removed bool
}

// Service encapsulates cart business logic.
type Service struct {
	carts    cart.Repository
	items    cart.ItemRepository
	products product.Repository
	users    user.Repository
	tx       Transactor
	newID    func() uuid.UUID
}

// NewService creates a cart Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	items cart.ItemRepository,
	products product.Repository,
	users user.Repository,
	tx Transactor,
) *Service {
	return &Service{
		carts:    carts,
		items:    items,
		products: products,
		users:    users,
		tx:       tx,
		newID:    uuid.New,
	}
}

// CreateCart creates a cart for userID holding items. Repeated lines for a
// product are merged; every line must have a positive quantity.
func (s *Service) CreateCart(ctx context.Context, userID uuid.UUID, items []RequestedItem) (*Snapshot, error) {
	if len(items) == 0 {
		return nil, cart.ErrEmptyItems
	}
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	// Merge duplicate lines and validate each one before touching storage.
	merged := make(map[int64]int, len(items))
	order := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, validation.Violation("cart_item", "quantity", "gt=0")
		}
		if _, ok := merged[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		merged[it.ProductID] += it.Quantity
	}

	c, err := cart.New(s.newID(), userID, decimal.Zero)
	if err != nil {
		return nil, err
	}
	lines := make([]cart.Item, 0, len(order))
	total := decimal.Zero
	for _, productID := range order {
		line, err := cart.NewItem(s.newID(), c.ID, productID, merged[productID])
		if err != nil {
			return nil, err
		}
		p, err := s.findProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		lines = append(lines, *line)
	}
	c.TotalPrice = total

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.carts.AddCart(ctx, c); err != nil {
			return errors.Wrap(err, "add cart")
		}
		for i := range lines {
			if err := s.items.AddItem(ctx, &lines[i]); err != nil {
				return errors.Wrap(err, "add cart item")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Cart created",
		zap.Stringer("cart_id", c.ID),
		zap.Int("items", len(lines)),
		zap.Stringer("total_price", c.TotalPrice),
	)
	return &Snapshot{ID: c.ID, UserID: c.UserID, TotalPrice: c.TotalPrice, Items: lines}, nil
}

// GetCart returns the cart owned by userID with its items.
func (s *Service) GetCart(ctx context.Context, userID, cartID uuid.UUID) (*Snapshot, error) {
	c, err := s.carts.FindCart(ctx, cartID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}
	items, err := s.items.FindItemsByCartID(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart items")
	}
	return &Snapshot{ID: c.ID, UserID: c.UserID, TotalPrice: c.TotalPrice, Items: items}, nil
}

// UpdateCart converges the persisted items of a cart to the requested lines.
//
// A line for a product already in the cart overwrites its quantity, or deletes
// it when the quantity is 0. A line for a new product is added when its
// quantity is positive and ignored otherwise. Every requested product is
// resolved before anything is written. The total is then recomputed from the
// remaining items at current prices; a cart left without items is deleted.
// All writes share one unit of work.
func (s *Service) UpdateCart(ctx context.Context, userID, cartID uuid.UUID, items []RequestedItem) (*UpdateResult, error) {
	c, err := s.carts.FindCart(ctx, cartID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}

	current, err := s.items.FindItemsByCartID(ctx, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart items")
	}
	if len(current) == 0 {
		return nil, cart.ErrItemsNotFound
	}

	for _, it := range items {
		if it.Quantity < 0 {
			return nil, validation.Violation("cart_item", "quantity", "gte=0")
		}
		if _, err := s.findProduct(ctx, it.ProductID); err != nil {
			return nil, err
		}
	}

	byProduct := make(map[int64]cart.Item, len(current))
	for _, it := range current {
		byProduct[it.ProductID] = it
	}

	var res *UpdateResult
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.reconcile(ctx, c, byProduct, items)
		return err
	}); err != nil {
		return nil, err
	}

	if res.Removed {
		zctx.From(ctx).Info("Cart removed", zap.Stringer("cart_id", cartID))
		return res, nil
	}
	zctx.From(ctx).Info("Cart updated",
		zap.Stringer("cart_id", res.Cart.ID),
		zap.Int("items", len(res.Cart.Items)),
		zap.Stringer("total_price", res.Cart.TotalPrice),
	)
	return res, nil
}

// reconcile applies the requested lines to byProduct, the cart's current items
// keyed by product, and persists the new total or removes the emptied cart.
func (s *Service) reconcile(ctx context.Context, c *cart.Cart, byProduct map[int64]cart.Item, items []RequestedItem) (*UpdateResult, error) {
	for _, req := range items {
		existing, ok := byProduct[req.ProductID]
		switch {
		case ok && req.Quantity == 0:
			if err := s.items.RemoveItem(ctx, existing.ID); err != nil {
				return nil, errors.Wrap(err, "remove cart item")
			}
			delete(byProduct, req.ProductID)
		case ok:
			existing.Quantity = req.Quantity
			if err := s.items.UpdateItem(ctx, &existing); err != nil {
				return nil, errors.Wrap(err, "update cart item")
			}
			byProduct[req.ProductID] = existing
		case req.Quantity > 0:
			line, err := cart.NewItem(s.newID(), c.ID, req.ProductID, req.Quantity)
			if err != nil {
				return nil, err
			}
			if err := s.items.AddItem(ctx, line); err != nil {
				return nil, errors.Wrap(err, "add cart item")
			}
			byProduct[req.ProductID] = *line
		}
	}

	remaining, err := s.items.FindItemsByCartID(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart items")
	}
	if len(remaining) == 0 {
		if err := s.carts.RemoveCart(ctx, c.ID); err != nil {
			return nil, errors.Wrap(err, "remove cart")
		}
		return &UpdateResult{Removed: true}, nil
	}

	total, err := s.total(ctx, remaining)
	if err != nil {
		return nil, err
	}
	c.TotalPrice = total

	updated, err := s.carts.UpdateCart(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "update cart")
	}
	return &UpdateResult{Cart: &Snapshot{
		ID:         updated.ID,
		UserID:     updated.UserID,
		TotalPrice: updated.TotalPrice,
		Items:      remaining,
	}}, nil
}

// total sums quantity × current price over items, looking each price up fresh.
func (s *Service) total(ctx context.Context, items []cart.Item) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, it := range items {
		p, err := s.findProduct(ctx, it.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total, nil
}

func (s *Service) findProduct(ctx context.Context, id int64) (*product.Product, error) {
	p, err := s.products.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &cart.ProductNotFoundError{ProductID: id}
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return p, nil
}
