// Package order creates orders from carts, applying offers and seeding the
// companion payment in the same unit of work.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/cart"
	"github.com/xenking/fulfillment/internal/domain/offer"
	"github.com/xenking/fulfillment/internal/domain/order"
	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/domain/user"
)

// Transactor runs fn in a single unit of work. Repository calls made with the
// ctx passed to fn join it; returning an error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	Type    order.Type
	CartID  uuid.UUID
	OfferID *int64
}

// Service encapsulates order creation business logic.
type Service struct {
	users    user.Repository
	carts    cart.Repository
	offers   offer.Repository
	orders   order.Repository
	payments payment.Repository
	tx       Transactor

	now   func() time.Time
	newID func() uuid.UUID
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	users user.Repository,
	carts cart.Repository,
	offers offer.Repository,
	orders order.Repository,
	payments payment.Repository,
	tx Transactor,
) *Service {
	return &Service{
		users:    users,
		carts:    carts,
		offers:   offers,
		orders:   orders,
		payments: payments,
		tx:       tx,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// CreateOrder turns the user's cart into a PENDING order and seeds its
// PENDING payment. A cart backs at most one order.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*order.Order, error) {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	switch _, err := s.orders.FindOrderByCartID(ctx, req.CartID); {
	case err == nil:
		return nil, order.ErrAlreadyExists
	case !errors.Is(err, order.ErrNotFound):
		return nil, errors.Wrap(err, "find order by cart")
	}

	c, err := s.carts.FindCart(ctx, req.CartID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}

	now := s.now()
	total := c.TotalPrice
	if req.OfferID != nil {
		o, err := s.offers.FindOffer(ctx, *req.OfferID)
		if err != nil {
			return nil, errors.Wrap(err, "find offer")
		}
		if !o.IsActive(now) {
			return nil, offer.ErrNotActive
		}
		if total, err = o.ApplyDiscount(total); err != nil {
			return nil, err
		}
	}

	o, err := order.New(s.newID(), userID, c.ID, req.OfferID, req.Type, total.Round(2), now)
	if err != nil {
		return nil, err
	}

	var created *order.Order
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		res, err := s.orders.CreateOrder(ctx, o)
		if err != nil {
			return errors.Wrap(err, "create order")
		}
		if res == nil {
			return order.ErrCreateFailed
		}
		if res.Status != order.StatusPending {
			return order.ErrNotPending
		}
		created = res

		p, err := payment.NewPending(s.newID(), userID, created.ID)
		if err != nil {
			return err
		}
		if _, err := s.payments.CreatePayment(ctx, p); err != nil {
			return errors.Wrap(err, "failed to create payment for order")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order created",
		zap.Stringer("order_id", created.ID),
		zap.Stringer("cart_id", created.CartID),
		zap.String("type", string(created.Type)),
		zap.Stringer("total_price", created.TotalPrice),
	)
	return created, nil
}
