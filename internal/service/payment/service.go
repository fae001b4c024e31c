// Package payment executes the payment of a pending order and confirms it.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/fulfillment/internal/domain/order"
	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/domain/user"
)

// ExecuteRequest holds the payment details chosen by the customer.
type ExecuteRequest struct {
	Method  payment.Method
	Gateway payment.Gateway
}

// Service encapsulates payment execution business logic.
type Service struct {
	users    user.Repository
	orders   order.Repository
	payments payment.Repository

	settleDelay time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewService creates a payment Service. settleDelay is the pause after a
// payment is recorded, standing in for gateway latency.
func NewService(
	users user.Repository,
	orders order.Repository,
	payments payment.Repository,
	settleDelay time.Duration,
) *Service {
	return &Service{
		users:       users,
		orders:      orders,
		payments:    payments,
		settleDelay: settleDelay,
		now:         time.Now,
		sleep:       wait,
	}
}

// ExecutePayment marks the order's payment PAID and the order CONFIRMED.
//
// The payment is written before the order. If the order update fails the
// payment stays PAID and the error is returned as is.
func (s *Service) ExecutePayment(ctx context.Context, orderID, userID uuid.UUID, req ExecuteRequest) (*payment.Payment, error) {
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	o, err := s.orders.FindOrder(ctx, orderID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find order")
	}
	if o.Status == order.StatusConfirmed {
		return nil, &order.AlreadyConfirmedError{Order: *o}
	}

	p, err := s.payments.FindPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "find payment")
	}
	if p.Status == payment.StatusPaid {
		return nil, payment.ErrAlreadyPaid
	}

	paid, err := p.Execute(req.Method, req.Gateway)
	if err != nil {
		return nil, err
	}
	executed, err := s.payments.ExecutePayment(ctx, paid)
	if err != nil {
		return nil, errors.Wrap(err, "execute payment")
	}

	updated, err := s.orders.UpdateOrder(ctx, o.Confirmed(s.now()))
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if updated == nil {
		return nil, order.ErrUpdateFailed
	}
	if updated.Status != order.StatusConfirmed {
		return nil, order.ErrNotConfirmed
	}

	lg := zctx.From(ctx)
	lg.Info("Payment executed",
		zap.Stringer("order_id", orderID),
		zap.Stringer("payment_id", executed.ID),
		zap.String("method", string(executed.Method)),
	)

	if err := s.sleep(ctx, s.settleDelay); err != nil {
		lg.Debug("Settle delay interrupted", zap.Error(err))
	}
	return executed, nil
}

// GetPayment returns the payment of an order owned by userID.
func (s *Service) GetPayment(ctx context.Context, orderID, userID uuid.UUID) (*payment.Payment, error) {
	if _, err := s.orders.FindOrder(ctx, orderID, userID); err != nil {
		return nil, errors.Wrap(err, "find order")
	}
	p, err := s.payments.FindPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "find payment")
	}
	return p, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
