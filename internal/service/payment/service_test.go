package payment

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

// mockOrderRepo keeps orders in memory. updateResult, when set, replaces
// what UpdateOrder returns.
type mockOrderRepo struct {
	orders       map[uuid.UUID]order.Order
	updateErr    error
	updateResult func(*order.Order) *order.Order
	log          *[]string
}

func (m *mockOrderRepo) FindOrder(_ context.Context, orderID, userID uuid.UUID) (*order.Order, error) {
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (m *mockOrderRepo) FindOrderByCartID(context.Context, uuid.UUID) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, o *order.Order) (*order.Order, error) {
	return o, nil
}

func (m *mockOrderRepo) UpdateOrder(_ context.Context, o *order.Order) (*order.Order, error) {
	*m.log = append(*m.log, "update_order")
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateResult != nil {
		return m.updateResult(o), nil
	}
	m.orders[o.ID] = *o
	out := *o
	return &out, nil
}

type mockPaymentRepo struct {
	payments   map[uuid.UUID]payment.Payment
	executeErr error
	log        *[]string
}

func (m *mockPaymentRepo) CreatePayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	m.payments[p.OrderID] = *p
	return p, nil
}

func (m *mockPaymentRepo) ExecutePayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	*m.log = append(*m.log, "execute_payment")
	if m.executeErr != nil {
		return nil, m.executeErr
	}
	m.payments[p.OrderID] = *p
	out := *p
	return &out, nil
}

func (m *mockPaymentRepo) FindPaymentByOrderID(_ context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	p, ok := m.payments[orderID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return &p, nil
}

// --- Helpers ---

type fixture struct {
	svc      *Service
	orders   *mockOrderRepo
	payments *mockPaymentRepo
	userID   uuid.UUID
	orderID  uuid.UUID
	sleeps   []time.Duration
	log      []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{userID: uuid.New()}
	u, err := user.New(f.userID, "Ann", "ann@example.com", 30, user.GenderFemale, "+100", "secret")
	require.NoError(t, err)

	offerID := int64(1)
	o, err := order.New(uuid.New(), f.userID, uuid.New(), &offerID, order.TypeDelivery, decimal.NewFromInt(90), fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	f.orderID = o.ID

	p, err := payment.NewPending(uuid.New(), f.userID, o.ID)
	require.NoError(t, err)

	f.orders = &mockOrderRepo{orders: map[uuid.UUID]order.Order{o.ID: *o}, log: &f.log}
	f.payments = &mockPaymentRepo{payments: map[uuid.UUID]payment.Payment{o.ID: *p}, log: &f.log}

	f.svc = NewService(&mockUserRepo{users: map[uuid.UUID]*user.User{f.userID: u}}, f.orders, f.payments, time.Second)
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

var cardVisa = ExecuteRequest{Method: payment.MethodCard, Gateway: payment.GatewayVisa}

// --- Tests ---

func TestExecutePayment_ConfirmsOrder(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)

	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.Equal(t, payment.MethodCard, p.Method)
	assert.Equal(t, payment.GatewayVisa, p.Gateway)

	o := f.orders.orders[f.orderID]
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, fixedNow, o.UpdatedAt)
	assert.Equal(t, payment.StatusPaid, f.payments.payments[f.orderID].Status)
	assert.Equal(t, []string{"execute_payment", "update_order"}, f.log, "payment is written before the order")
	assert.Equal(t, []time.Duration{time.Second}, f.sleeps)
}

func TestExecutePayment_SecondCallReportsConfirmedOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)
	require.NoError(t, err)

	_, err = f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)
	require.Error(t, err)

	var confirmed *order.AlreadyConfirmedError
	require.ErrorAs(t, err, &confirmed)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	o := f.orders.orders[f.orderID]
	want := "order already confirmed: id=" + o.ID.String() +
		", cart_id=" + o.CartID.String() +
		", status=CONFIRMED, type=DELIVERY, total_price=90.00, offer_id=1"
	assert.Equal(t, want, err.Error())
}

func TestExecutePayment_AlreadyPaid(t *testing.T) {
	f := newFixture(t)
	p := f.payments.payments[f.orderID]
	p.Status = payment.StatusPaid
	f.payments.payments[f.orderID] = p

	_, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)

	require.ErrorIs(t, err, payment.ErrAlreadyPaid)
	assert.Equal(t, "payment already paid", err.Error())
	assert.Empty(t, f.log)
}

func TestExecutePayment_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) (orderID, userID uuid.UUID)
		req     ExecuteRequest
		wantErr error
		kind    apperr.Kind
	}{
		{
			name:    "user not found",
			setup:   func(f *fixture) (uuid.UUID, uuid.UUID) { return f.orderID, uuid.New() },
			req:     cardVisa,
			wantErr: user.ErrNotFound,
			kind:    apperr.NotFound,
		},
		{
			name:    "order not found",
			setup:   func(f *fixture) (uuid.UUID, uuid.UUID) { return uuid.New(), f.userID },
			req:     cardVisa,
			wantErr: order.ErrNotFound,
			kind:    apperr.NotFound,
		},
		{
			name: "payment not found",
			setup: func(f *fixture) (uuid.UUID, uuid.UUID) {
				delete(f.payments.payments, f.orderID)
				return f.orderID, f.userID
			},
			req:     cardVisa,
			wantErr: payment.ErrNotFound,
			kind:    apperr.NotFound,
		},
		{
			name:  "card without gateway",
			setup: func(f *fixture) (uuid.UUID, uuid.UUID) { return f.orderID, f.userID },
			req:   ExecuteRequest{Method: payment.MethodCard},
			kind:  apperr.Validation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			orderID, userID := tt.setup(f)

			_, err := f.svc.ExecutePayment(context.Background(), orderID, userID, tt.req)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Empty(t, f.log, "nothing may be written")
			assert.Equal(t, order.StatusPending, f.orders.orders[f.orderID].Status)
		})
	}
}

func TestExecutePayment_RetryExhaustedLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	f.payments.executeErr = &txretry.ExhaustedError{Op: "execute_payment", Attempts: 3}

	_, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded for execute_payment")
	assert.Equal(t, apperr.RetryExhausted, apperr.KindOf(err))
	assert.Equal(t, []string{"execute_payment"}, f.log)
	assert.Equal(t, order.StatusPending, f.orders.orders[f.orderID].Status)
}

func TestExecutePayment_OrderUpdateIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		result  func(*order.Order) *order.Order
		wantErr error
		wantMsg string
	}{
		{
			name:    "update returns nothing",
			result:  func(*order.Order) *order.Order { return nil },
			wantErr: order.ErrUpdateFailed,
			wantMsg: "failed to update order",
		},
		{
			name: "status did not change",
			result: func(o *order.Order) *order.Order {
				o.Status = order.StatusPending
				return o
			},
			wantErr: order.ErrNotConfirmed,
			wantMsg: "failed to update order status to CONFIRMED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.updateResult = tt.result

			_, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, apperr.Integrity, apperr.KindOf(err))
			assert.Equal(t, payment.StatusPaid, f.payments.payments[f.orderID].Status, "no compensation is attempted")
			assert.Empty(t, f.sleeps)
		})
	}
}

func TestExecutePayment_OrderUpdateFailureKeepsPayment(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.orders.updateErr = boom

	_, err := f.svc.ExecutePayment(context.Background(), f.orderID, f.userID, cardVisa)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, payment.StatusPaid, f.payments.payments[f.orderID].Status)
}

func TestExecutePayment_CancelledSettleDelayKeepsResult(t *testing.T) {
	f := newFixture(t)
	f.svc.sleep = wait
	f.svc.settleDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	p, err := f.svc.ExecutePayment(ctx, f.orderID, f.userID, cardVisa)

	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.Equal(t, order.StatusConfirmed, f.orders.orders[f.orderID].Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetPayment(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.GetPayment(context.Background(), f.orderID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)

	_, err = f.svc.GetPayment(context.Background(), f.orderID, uuid.New())
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestWait(t *testing.T) {
	require.NoError(t, wait(context.Background(), 0))
	require.NoError(t, wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, wait(ctx, time.Hour), context.Canceled)
}
