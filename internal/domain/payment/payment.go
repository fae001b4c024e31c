package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// Method is how the customer pays.
type Method string

const (
	MethodCash   Method = "CASH"
	MethodCard   Method = "CARD"
	MethodWallet Method = "WALLET"
)

// Valid reports whether m is a declared payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodWallet:
		return true
	}
	return false
}

// Gateway is the card network used for CARD payments.
type Gateway string

const (
	GatewayVisa       Gateway = "VISA"
	GatewayMastercard Gateway = "MASTERCARD"
	GatewayAmex       Gateway = "AMEX"
	GatewayPaypal     Gateway = "PAYPAL"
)

// Valid reports whether g is a declared gateway.
func (g Gateway) Valid() bool {
	switch g {
	case GatewayVisa, GatewayMastercard, GatewayAmex, GatewayPaypal:
		return true
	}
	return false
}

// Status is the lifecycle state of a payment. Only PENDING and PAID are
// produced by this service.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInitiated Status = "INITIATED"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrNotFound is returned when an order has no payment row.
	ErrNotFound = apperr.New(apperr.NotFound, "payment not found")
	// ErrAlreadyPaid is returned when executing a payment that is already PAID.
	ErrAlreadyPaid = apperr.New(apperr.Conflict, "payment already paid")
	// ErrAlreadyExists is returned when an order already has a payment row.
	ErrAlreadyExists = apperr.New(apperr.Conflict, "payment for order already exists")
)

// Payment is the single payment attached to an order. Method and Gateway are
// empty until the payment is executed.
type Payment struct {
	ID      uuid.UUID `validate:"required"`
	UserID  uuid.UUID `validate:"required"`
	OrderID uuid.UUID `validate:"required"`
	Method  Method
	Gateway Gateway
	Status  Status
}

// NewPending returns the placeholder payment seeded alongside a new order.
func NewPending(id, userID, orderID uuid.UUID) (*Payment, error) {
	p := &Payment{ID: id, UserID: userID, OrderID: orderID, Status: StatusPending}
	if err := validation.Struct("payment", p); err != nil {
		return nil, err
	}
	return p, nil
}

// Execute returns a PAID copy of p using the given method. A CARD payment
// requires a gateway; other methods may omit it.
func (p Payment) Execute(method Method, gateway Gateway) (*Payment, error) {
	p.Method = method
	p.Gateway = gateway
	p.Status = StatusPaid

	extra := validation.OneOf("payment_method", method)
	switch {
	case method == MethodCard && gateway == "":
		extra = append(extra, validation.FieldError{Field: "payment_card_gateway", Rule: "required_if", Param: "payment_method CARD"})
	case gateway != "":
		extra = append(extra, validation.OneOf("payment_card_gateway", gateway)...)
	}
	if err := validation.Struct("payment", &p, extra...); err != nil {
		return nil, err
	}
	return &p, nil
}

// Repository defines persistence operations for payments. Writes retry on
// transient lock conflicts.
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) (*Payment, error)
	ExecutePayment(ctx context.Context, p *Payment) (*Payment, error)
	FindPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
}
