package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperr.New(apperr.NotFound, "product not found")

// Category enumerates the catalog sections.
type Category string

const (
	CategoryFood    Category = "FOOD"
	CategoryDrink   Category = "DRINK"
	CategoryDessert Category = "DESSERT"
	CategorySnack   Category = "SNACK"
)

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryDrink, CategoryDessert, CategorySnack:
		return true
	}
	return false
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID       int64  `validate:"gt=0"`
	Name     string `validate:"required"`
	Price    decimal.Decimal
	Category Category
}

// New validates the fields and returns a Product.
func New(id int64, name string, price decimal.Decimal, category Category) (*Product, error) {
	p := &Product{ID: id, Name: name, Price: price, Category: category}
	extra := append(validation.NonNegative("price", price), validation.OneOf("category", category)...)
	if err := validation.Struct("product", p, extra...); err != nil {
		return nil, err
	}
	return p, nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	FindProduct(ctx context.Context, id int64) (*Product, error)
}
