package offer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// DiscountType enumerates the supported offer discount strategies.
type DiscountType string

const (
	// DiscountPercentage removes value percent of the price.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountAmount removes a fixed amount, never going below zero.
	DiscountAmount DiscountType = "AMOUNT"
)

// Valid reports whether t is a declared discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountAmount
}

var (
	// ErrNotFound is returned when a requested offer does not exist.
	ErrNotFound = apperr.New(apperr.NotFound, "offer not found")
	// ErrNotActive is returned when an offer is used outside its window.
	ErrNotActive = apperr.New(apperr.Validation, "offer not active")
	// ErrInvalidDiscountType is returned when applying an offer whose type
	// is not one of the declared strategies.
	ErrInvalidDiscountType = apperr.New(apperr.Validation, "invalid discount type")
)

var hundred = decimal.NewFromInt(100)

// Offer is a time-boxed discount rule.
type Offer struct {
	ID            int64 `validate:"gt=0"`
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	StartDate     time.Time `validate:"required"`
	EndDate       time.Time `validate:"required"`
}

// New validates the fields and returns an Offer. The window must be
// non-empty and end after now.
func New(id int64, dt DiscountType, value decimal.Decimal, start, end, now time.Time) (*Offer, error) {
	o := &Offer{
		ID:            id,
		DiscountType:  dt,
		DiscountValue: value,
		StartDate:     start,
		EndDate:       end,
	}

	extra := validation.OneOf("discount_type", dt)
	extra = append(extra, validation.NonNegative("discount_value", value)...)
	if !start.Before(end) {
		extra = append(extra, validation.FieldError{Field: "end_date", Rule: "gtfield", Param: "start_date"})
	}
	if !end.After(now) {
		extra = append(extra, validation.FieldError{Field: "end_date", Rule: "future"})
	}

	if err := validation.Struct("offer", o, extra...); err != nil {
		return nil, err
	}
	return o, nil
}

// NewExpiringIn returns an Offer starting at now and ending days later.
func NewExpiringIn(id int64, dt DiscountType, value decimal.Decimal, days int, now time.Time) (*Offer, error) {
	if days <= 0 {
		return nil, validation.Violation("offer", "expires_in_days", "gt=0")
	}
	return New(id, dt, value, now, now.AddDate(0, 0, days), now)
}

// IsActive reports whether now falls inside the offer window, bounds included.
func (o *Offer) IsActive(now time.Time) bool {
	return !now.Before(o.StartDate) && !now.After(o.EndDate)
}

// ApplyDiscount returns price reduced by the offer.
func (o *Offer) ApplyDiscount(price decimal.Decimal) (decimal.Decimal, error) {
	switch o.DiscountType {
	case DiscountPercentage:
		return price.Sub(price.Mul(o.DiscountValue).Div(hundred)), nil
	case DiscountAmount:
		discounted := price.Sub(o.DiscountValue)
		if discounted.IsNegative() {
			return decimal.Zero, nil
		}
		return discounted, nil
	default:
		return decimal.Zero, ErrInvalidDiscountType
	}
}

// Repository provides offer lookup.
type Repository interface {
	FindOffer(ctx context.Context, id int64) (*Offer, error)
}
