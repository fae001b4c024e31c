package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/xenking/fulfillment/internal/domain/apperr"
	"github.com/xenking/fulfillment/internal/domain/validation"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = apperr.New(apperr.NotFound, "user not found")

// Gender enumerates the accepted user genders.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// Valid reports whether g is a declared gender.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User is a registered customer.
type User struct {
	ID          uuid.UUID `validate:"required"`
	Name        string    `validate:"required"`
	Email       string    `validate:"required,email"`
	Age         int       `validate:"gte=18"`
	Gender      Gender
	PhoneNumber string `validate:"required"`
	Password    string `validate:"gt=4"`
}

// New validates the fields and returns a User. The password is kept as given;
// callers hash it before persisting.
func New(id uuid.UUID, name, email string, age int, gender Gender, phone, password string) (*User, error) {
	u := &User{
		ID:          id,
		Name:        name,
		Email:       email,
		Age:         age,
		Gender:      gender,
		PhoneNumber: phone,
		Password:    password,
	}
	if err := validation.Struct("user", u, validation.OneOf("gender", gender)...); err != nil {
		return nil, err
	}
	return u, nil
}

// Repository provides user lookup.
type Repository interface {
	FindUser(ctx context.Context, id uuid.UUID) (*User, error)
}
