package order

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// Type is the fulfillment channel of an order.
type Type string

const (
	TypeDelivery  Type = "DELIVERY"
	TypeInStore   Type = "IN_STORE"
	TypeDriveThru Type = "DRIVE_THRU"
)

// Valid reports whether t is a declared order type.
func (t Type) Valid() bool {
	switch t {
	case TypeDelivery, TypeInStore, TypeDriveThru:
		return true
	}
	return false
}

// Status is the lifecycle state of an order. Only PENDING and CONFIRMED are
// produced by this service; the rest are reserved for kitchen and delivery
// workflows.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when no order matches the id and owner.
	ErrNotFound = apperr.New(apperr.NotFound, "order not found")
	// ErrAlreadyExists is returned when the cart already backs an order.
	ErrAlreadyExists = apperr.New(apperr.Conflict, "order for cart already exists")
	// ErrCreateFailed is returned when the store accepted an insert but returned nothing.
	ErrCreateFailed = apperr.New(apperr.Integrity, "failed to create order")
	// ErrNotPending is returned when a freshly created order is not PENDING.
	ErrNotPending = apperr.New(apperr.Integrity, "created order is not PENDING")
	// ErrUpdateFailed is returned when an update returned nothing.
	ErrUpdateFailed = apperr.New(apperr.Integrity, "failed to update order")
	// ErrNotConfirmed is returned when a confirmed update did not stick.
	ErrNotConfirmed = apperr.New(apperr.Integrity, "failed to update order status to CONFIRMED")
)

// AlreadyConfirmedError is returned when paying for an order that is already
// CONFIRMED. The message layout is consumed by clients and must not change.
type AlreadyConfirmedError struct {
	Order Order
}

func (e *AlreadyConfirmedError) Error() string {
	offerID := "none"
	if e.Order.OfferID != nil {
		offerID = strconv.FormatInt(*e.Order.OfferID, 10)
	}
	return fmt.Sprintf(
		"order already confirmed: id=%s, cart_id=%s, status=%s, type=%s, total_price=%s, offer_id=%s",
		e.Order.ID, e.Order.CartID, e.Order.Status, e.Order.Type, e.Order.TotalPrice.StringFixed(2), offerID,
	)
}

// Kind classifies the error as Conflict.
func (e *AlreadyConfirmedError) Kind() apperr.Kind { return apperr.Conflict }

// Order is a purchase created from exactly one cart.
type Order struct {
	ID         uuid.UUID `validate:"required"`
	UserID     uuid.UUID `validate:"required"`
	CartID     uuid.UUID `validate:"required"`
	OfferID    *int64    `validate:"omitnil,gt=0"`
	Type       Type
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time `validate:"required"`
	UpdatedAt  time.Time `validate:"required"`
}

// New validates the fields and returns a PENDING order stamped with now.
func New(id, userID, cartID uuid.UUID, offerID *int64, typ Type, total decimal.Decimal, now time.Time) (*Order, error) {
	o := &Order{
		ID:         id,
		UserID:     userID,
		CartID:     cartID,
		OfferID:    offerID,
		Type:       typ,
		TotalPrice: total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	extra := validation.OneOf("type", typ)
	extra = append(extra, validation.NonNegative("total_price", total)...)
	if err := validation.Struct("order", o, extra...); err != nil {
		return nil, err
	}
	return o, nil
}

// Confirmed returns a copy of o moved to CONFIRMED at now.
func (o Order) Confirmed(now time.Time) *Order {
	o.Status = StatusConfirmed
	o.UpdatedAt = now
	return &o
}

// Repository defines persistence operations for orders.
type Repository interface {
	FindOrder(ctx context.Context, orderID, userID uuid.UUID) (*Order, error)
	FindOrderByCartID(ctx context.Context, cartID uuid.UUID) (*Order, error)
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) (*Order, error)
}
