package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/fulfillment/internal/domain/apperr"
)

type color string

func (c color) Valid() bool { return c == "RED" || c == "BLUE" }

type sample struct {
	Name        string `validate:"required"`
	PhoneNumber string `validate:"required"`
	Age         int    `validate:"gte=18"`
}

func TestStruct_CollectsAllFields(t *testing.T) {
	err := Struct("sample", sample{Age: 3}, OneOf("color", color("GREEN"))...)
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sample", verr.Entity)
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("phone_number"))
	assert.True(t, verr.Has("age"))
	assert.True(t, verr.Has("color"))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestStruct_Valid(t *testing.T) {
	err := Struct("sample", sample{Name: "a", PhoneNumber: "1", Age: 18}, OneOf("color", color("RED"))...)
	require.NoError(t, err)
}

func TestNonNegative(t *testing.T) {
	assert.Empty(t, NonNegative("price", decimal.Zero))
	assert.Len(t, NonNegative("price", decimal.NewFromInt(-1)), 1)
}

func TestSnake(t *testing.T) {
	tests := map[string]string{
		"ID":          "id",
		"UserID":      "user_id",
		"PhoneNumber": "phone_number",
		"name":        "name",
	}
	for in, want := range tests {
		assert.Equal(t, want, snake(in), in)
	}
}

func TestError_Message(t *testing.T) {
	err := Violation("offer", "end_date", "future")
	assert.Equal(t, "invalid offer: end_date: future", err.Error())
}
