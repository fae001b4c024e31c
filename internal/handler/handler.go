// Package handler exposes the fulfillment services over HTTP.
package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/xenking/fulfillment/internal/domain/order"
	"github.com/xenking/fulfillment/internal/domain/payment"
	"github.com/xenking/fulfillment/internal/domain/product"
	cartsvc "github.com/xenking/fulfillment/internal/service/cart"
	ordersvc "github.com/xenking/fulfillment/internal/service/order"
	paymentsvc "github.com/xenking/fulfillment/internal/service/payment"
)

// CartService is the subset of the cart service used over HTTP.
type CartService interface {
	CreateCart(ctx context.Context, userID uuid.UUID, items []cartsvc.RequestedItem) (*cartsvc.Snapshot, error)
	GetCart(ctx context.Context, userID, cartID uuid.UUID) (*cartsvc.Snapshot, error)
	UpdateCart(ctx context.Context, userID, cartID uuid.UUID, items []cartsvc.RequestedItem) (*cartsvc.UpdateResult, error)
}

// OrderService creates orders.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req ordersvc.CreateOrderRequest) (*order.Order, error)
}

// PaymentService executes and reads order payments.
type PaymentService interface {
	ExecutePayment(ctx context.Context, orderID, userID uuid.UUID, req paymentsvc.ExecuteRequest) (*payment.Payment, error)
	GetPayment(ctx context.Context, orderID, userID uuid.UUID) (*payment.Payment, error)
}

var (
	_ CartService    = (*cartsvc.Service)(nil)
	_ OrderService   = (*ordersvc.Service)(nil)
	_ PaymentService = (*paymentsvc.Service)(nil)
)

// Handler serves the /api routes.
type Handler struct {
	products product.Repository
	carts    CartService
	orders   OrderService
	payments PaymentService
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	products product.Repository,
	carts CartService,
	orders OrderService,
	payments PaymentService,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}
