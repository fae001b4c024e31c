package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

var (
	// ErrNotFound is returned when no cart matches the id and owner.
	ErrNotFound = apperr.New(apperr.NotFound, "cart not found")
	// ErrItemsNotFound is returned when a cart has no persisted items to reconcile.
	ErrItemsNotFound = apperr.New(apperr.NotFound, "cart items not found for this cart")
	// ErrEmptyItems is returned when a cart would be created without any item.
	ErrEmptyItems = apperr.New(apperr.Validation, "items required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Kind classifies the error as NotFound.
func (e *ProductNotFoundError) Kind() apperr.Kind { return apperr.NotFound }

// Cart is a user's basket. TotalPrice is derived from the items and current
// product prices; it is never taken from the caller.
type Cart struct {
	ID         uuid.UUID `validate:"required"`
	UserID     uuid.UUID `validate:"required"`
	TotalPrice decimal.Decimal
}

// New validates the fields and returns a Cart.
func New(id, userID uuid.UUID, total decimal.Decimal) (*Cart, error) {
	c := &Cart{ID: id, UserID: userID, TotalPrice: total}
	if err := validation.Struct("cart", c, validation.NonNegative("total_price", total)...); err != nil {
		return nil, err
	}
	return c, nil
}

// Item is one product line of a cart.
type Item struct {
	ID        uuid.UUID `validate:"required"`
	CartID    uuid.UUID `validate:"required"`
	ProductID int64     `validate:"gt=0"`
	Quantity  int       `validate:"gt=0"`
}

// NewItem validates the fields and returns an Item.
func NewItem(id, cartID uuid.UUID, productID int64, quantity int) (*Item, error) {
	it := &Item{ID: id, CartID: cartID, ProductID: productID, Quantity: quantity}
	if err := validation.Struct("cart_item", it); err != nil {
		return nil, err
	}
	return it, nil
}

// Repository defines persistence operations for carts.
type Repository interface {
	FindCart(ctx context.Context, cartID, userID uuid.UUID) (*Cart, error)
	AddCart(ctx context.Context, c *Cart) error
	UpdateCart(ctx context.Context, c *Cart) (*Cart, error)
	RemoveCart(ctx context.Context, cartID uuid.UUID) error
}

// ItemRepository defines persistence operations for cart items.
type ItemRepository interface {
	FindItemsByCartID(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	AddItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
}
