package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/cart"
	"github.com/xenking/fulfillment/internal/domain/offer"
	"github.com/xenking/fulfillment/internal/domain/order"
	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/domain/user"
	"github.com/xenking/fulfillment/internal/txretry"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockUserRepo struct {
	users map[uuid.UUID]*user.User
}

func (m *mockUserRepo) FindUser(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockCartRepo struct {
	carts map[uuid.UUID]cart.Cart
}

func (m *mockCartRepo) FindCart(_ context.Context, cartID, userID uuid.UUID) (*cart.Cart, error) {
	c, ok := m.carts[cartID]
	if !ok || c.UserID != userID {
		return nil, cart.ErrNotFound
	}
	return &c, nil
}

func (m *mockCartRepo) AddCart(context.Context, *cart.Cart) error { return nil }

func (m *mockCartRepo) UpdateCart(_ context.Context, c *cart.Cart) (*cart.Cart, error) {
	return c, nil
}

func (m *mockCartRepo) RemoveCart(context.Context, uuid.UUID) error { return nil }

type mockOfferRepo struct {
	offers map[int64]offer.Offer
}

func (m *mockOfferRepo) FindOffer(_ context.Context, id int64) (*offer.Offer, error) {
	o, ok := m.offers[id]
	if !ok {
		return nil, offer.ErrNotFound
	}
	return &o, nil
}

// mockOrderRepo stores orders in memory. mutate, when set, alters what
// CreateOrder returns to emulate a misbehaving store.
type mockOrderRepo struct {
	orders    map[uuid.UUID]order.Order
	createErr error
	mutate    func(*order.Order) *order.Order
}

func (m *mockOrderRepo) FindOrder(_ context.Context, orderID, userID uuid.UUID) (*order.Order, error) {
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (m *mockOrderRepo) FindOrderByCartID(_ context.Context, cartID uuid.UUID) (*order.Order, error) {
	for _, o := range m.orders {
		if o.CartID == cartID {
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, o *order.Order) (*order.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.orders[o.ID] = *o
	out := *o
	if m.mutate != nil {
		return m.mutate(&out), nil
	}
	return &out, nil
}

func (m *mockOrderRepo) UpdateOrder(_ context.Context, o *order.Order) (*order.Order, error) {
	m.orders[o.ID] = *o
	return o, nil
}

type mockPaymentRepo struct {
	payments  map[uuid.UUID]payment.Payment
	createErr error
}

func (m *mockPaymentRepo) CreatePayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.payments[p.OrderID] = *p
	return p, nil
}

func (m *mockPaymentRepo) ExecutePayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	m.payments[p.OrderID] = *p
	return p, nil
}

func (m *mockPaymentRepo) FindPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	p, ok := m.payments[orderID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return &p, nil
}

// mockTx emulates a unit of work: when fn fails, orders and payments written
// inside it are discarded.
type mockTx struct {
	orders   *mockOrderRepo
	payments *mockPaymentRepo
	calls    int
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	orders := make(map[uuid.UUID]order.Order, len(m.orders.orders))
	for k, v := range m.orders.orders {
		orders[k] = v
	}
	payments := make(map[uuid.UUID]payment.Payment, len(m.payments.payments))
	for k, v := range m.payments.payments {
		payments[k] = v
	}
	if err := fn(ctx); err != nil {
		m.orders.orders = orders
		m.payments.payments = payments
		return err
	}
	return nil
}

// --- Helpers ---

type fixture struct {
	svc      *Service
	orders   *mockOrderRepo
	payments *mockPaymentRepo
	tx       *mockTx
	userID   uuid.UUID
	cartID   uuid.UUID
}

const (
	offerPercent  int64 = 1
	offerAmount   int64 = 2
	offerExpired  int64 = 3
	offerUpcoming int64 = 4
	offerBogus    int64 = 5
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	userID := uuid.New()
	u, err := user.New(userID, "Ann", "ann@example.com", 30, user.GenderFemale, "+100", "secret")
	require.NoError(t, err)

	c, err := cart.New(uuid.New(), userID, decimal.NewFromInt(100))
	require.NoError(t, err)

	offers := &mockOfferRepo{offers: map[int64]offer.Offer{
		offerPercent: {
			ID: offerPercent, DiscountType: offer.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			StartDate: fixedNow.Add(-time.Hour), EndDate: fixedNow.Add(time.Hour),
		},
		offerAmount: {
			ID: offerAmount, DiscountType: offer.DiscountAmount, DiscountValue: decimal.NewFromInt(150),
			StartDate: fixedNow.Add(-time.Hour), EndDate: fixedNow.Add(time.Hour),
		},
		offerExpired: {
			ID: offerExpired, DiscountType: offer.DiscountAmount, DiscountValue: decimal.NewFromInt(5),
			StartDate: fixedNow.Add(-48 * time.Hour), EndDate: fixedNow.Add(-24 * time.Hour),
		},
		offerUpcoming: {
			ID: offerUpcoming, DiscountType: offer.DiscountAmount, DiscountValue: decimal.NewFromInt(5),
			StartDate: fixedNow.Add(time.Hour), EndDate: fixedNow.Add(48 * time.Hour),
		},
		offerBogus: {
			ID: offerBogus, DiscountType: "BOGO", DiscountValue: decimal.NewFromInt(5),
			StartDate: fixedNow.Add(-time.Hour), EndDate: fixedNow.Add(time.Hour),
		},
	}}

	orders := &mockOrderRepo{orders: make(map[uuid.UUID]order.Order)}
	payments := &mockPaymentRepo{payments: make(map[uuid.UUID]payment.Payment)}
	tx := &mockTx{orders: orders, payments: payments}

	svc := NewService(
		&mockUserRepo{users: map[uuid.UUID]*user.User{userID: u}},
		&mockCartRepo{carts: map[uuid.UUID]cart.Cart{c.ID: *c}},
		offers,
		orders,
		payments,
		tx,
	)
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, orders: orders, payments: payments, tx: tx, userID: userID, cartID: c.ID}
}

func ptr[T any](v T) *T { return &v }

// --- Tests ---

func TestCreateOrder_NoOffer(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{
		Type:   order.TypeDelivery,
		CartID: f.cartID,
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(o.TotalPrice))
	assert.Nil(t, o.OfferID)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, fixedNow, o.UpdatedAt)
	assert.Equal(t, f.cartID, o.CartID)
	assert.Equal(t, f.userID, o.UserID)

	p, ok := f.payments.payments[o.ID]
	require.True(t, ok, "a PENDING payment must be seeded")
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Empty(t, p.Method)
	assert.Empty(t, p.Gateway)
	assert.Equal(t, f.userID, p.UserID)
	assert.Equal(t, 1, f.tx.calls)
}

func TestCreateOrder_WithOffer(t *testing.T) {
	tests := []struct {
		name    string
		offerID int64
		want    string
	}{
		{name: "percentage 10 of 100", offerID: offerPercent, want: "90"},
		{name: "amount larger than total floors at zero", offerID: offerAmount, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			o, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{
				Type:    order.TypeInStore,
				CartID:  f.cartID,
				OfferID: ptr(tt.offerID),
			})

			require.NoError(t, err)
			assert.Equal(t, order.StatusPending, o.Status)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(o.TotalPrice), "got %s", o.TotalPrice)
			require.NotNil(t, o.OfferID)
			assert.Equal(t, tt.offerID, *o.OfferID)
		})
	}
}

func TestCreateOrder_SecondCallForCartFails(t *testing.T) {
	f := newFixture(t)
	req := CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID}

	_, err := f.svc.CreateOrder(context.Background(), f.userID, req)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(context.Background(), f.userID, req)
	require.ErrorIs(t, err, order.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Len(t, f.orders.orders, 1)
}

func TestCreateOrder_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		userID  func(f *fixture) uuid.UUID
		req     func(f *fixture) CreateOrderRequest
		wantErr error
		wantMsg string
		kind    apperr.Kind
	}{
		{
			name:   "user not found",
			userID: func(*fixture) uuid.UUID { return uuid.New() },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID}
			},
			wantErr: user.ErrNotFound,
			wantMsg: "user not found",
			kind:    apperr.NotFound,
		},
		{
			name:   "cart not found",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(*fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: uuid.New()}
			},
			wantErr: cart.ErrNotFound,
			wantMsg: "cart not found",
			kind:    apperr.NotFound,
		},
		{
			name:   "offer not found",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID, OfferID: ptr(int64(404))}
			},
			wantErr: offer.ErrNotFound,
			wantMsg: "offer not found",
			kind:    apperr.NotFound,
		},
		{
			name:   "offer expired",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID, OfferID: ptr(offerExpired)}
			},
			wantErr: offer.ErrNotActive,
			wantMsg: "offer not active",
			kind:    apperr.Validation,
		},
		{
			name:   "offer not started",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID, OfferID: ptr(offerUpcoming)}
			},
			wantErr: offer.ErrNotActive,
			kind:    apperr.Validation,
		},
		{
			name:   "offer with unknown discount type",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID, OfferID: ptr(offerBogus)}
			},
			wantErr: offer.ErrInvalidDiscountType,
			wantMsg: "invalid discount type",
			kind:    apperr.Validation,
		},
		{
			name:   "invalid order type",
			userID: func(f *fixture) uuid.UUID { return f.userID },
			req: func(f *fixture) CreateOrderRequest {
				return CreateOrderRequest{Type: "TAKEAWAY", CartID: f.cartID}
			},
			kind: apperr.Validation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateOrder(context.Background(), tt.userID(f), tt.req(f))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, f.orders.orders, "no order may be persisted")
			assert.Empty(t, f.payments.payments, "no payment may be persisted")
			assert.Zero(t, f.tx.calls)
		})
	}
}

func TestCreateOrder_PaymentSeedFailureRollsBackOrder(t *testing.T) {
	f := newFixture(t)
	f.payments.createErr = &txretry.ExhaustedError{Op: "create_payment", Attempts: 3}

	_, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{
		Type:   order.TypeDriveThru,
		CartID: f.cartID,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create payment for order")
	assert.Contains(t, err.Error(), "max retries exceeded for create_payment")
	assert.Equal(t, apperr.RetryExhausted, apperr.KindOf(err))
	assert.Empty(t, f.orders.orders, "order must be rolled back with its payment")
}

func TestCreateOrder_IntegrityChecks(t *testing.T) {
	t.Run("store returns nothing", func(t *testing.T) {
		f := newFixture(t)
		f.orders.mutate = func(*order.Order) *order.Order { return nil }

		_, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID})

		require.ErrorIs(t, err, order.ErrCreateFailed)
		assert.Equal(t, "failed to create order", err.Error())
		assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
		assert.Empty(t, f.payments.payments)
	})

	t.Run("store changes status", func(t *testing.T) {
		f := newFixture(t)
		f.orders.mutate = func(o *order.Order) *order.Order {
			o.Status = order.StatusCancelled
			return o
		}

		_, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID})

		require.ErrorIs(t, err, order.ErrNotPending)
		assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
		assert.Empty(t, f.orders.orders)
	})

	t.Run("store fails", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("connection reset")
		f.orders.createErr = boom

		_, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID})

		require.ErrorIs(t, err, boom)
		assert.Equal(t, apperr.Unknown, apperr.KindOf(err))
	})

	t.Run("unique violation reported by store", func(t *testing.T) {
		f := newFixture(t)
		f.orders.createErr = order.ErrAlreadyExists

		_, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{Type: order.TypeDelivery, CartID: f.cartID})

		require.ErrorIs(t, err, order.ErrAlreadyExists)
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	})
}

func TestCreateOrder_RoundsToCents(t *testing.T) {
	f := newFixture(t)
	f.svc.carts = &mockCartRepo{carts: map[uuid.UUID]cart.Cart{
		f.cartID: {ID: f.cartID, UserID: f.userID, TotalPrice: decimal.RequireFromString("19.99")},
	}}

	o, err := f.svc.CreateOrder(context.Background(), f.userID, CreateOrderRequest{
		Type:    order.TypeDelivery,
		CartID:  f.cartID,
		OfferID: ptr(offerPercent),
	})

	require.NoError(t, err)
	assert.Equal(t, "17.99", o.TotalPrice.StringFixed(2))
}
