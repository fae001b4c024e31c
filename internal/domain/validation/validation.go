// Package validation evaluates entity invariants eagerly at construction
// time and reports every violated field at once.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/fulfillment/internal/domain/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes one violated invariant.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (f FieldError) String() string {
	if f.Param == "" {
		return fmt.Sprintf("%s: %s", f.Field, f.Rule)
	}
	return fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param)
}

// Error is returned by entity constructors when invariants are violated.
type Error struct {
	Entity string
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, ", "))
}

// Kind classifies validation failures.
func (e *Error) Kind() apperr.Kind { return apperr.Validation }

// Has reports whether field violated any rule.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Struct validates the tagged fields of v and merges in extra violations
// computed by the caller (cross-field rules, enum and money checks).
func Struct(entity string, v any, extra ...FieldError) error {
	var fields []FieldError
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrapf(err, "validate %s", entity)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field: snake(fe.Field()),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
	}
	fields = append(fields, extra...)
	if len(fields) == 0 {
		return nil
	}
	return &Error{Entity: entity, Fields: fields}
}

// Enum is implemented by the enumerated field types of the domain.
type Enum interface {
	Valid() bool
}

// OneOf returns a violation for field when value is not a declared member.
func OneOf(field string, value Enum) []FieldError {
	if value.Valid() {
		return nil
	}
	return []FieldError{{Field: field, Rule: "oneof", Param: fmt.Sprint(value)}}
}

// NonNegative returns a violation for field when d is below zero.
func NonNegative(field string, d decimal.Decimal) []FieldError {
	if d.IsNegative() {
		return []FieldError{{Field: field, Rule: "gte", Param: "0"}}
	}
	return nil
}

// Violation builds a single-field validation error.
func Violation(entity, field, rule string) *Error {
	return &Error{Entity: entity, Fields: []FieldError{{Field: field, Rule: rule}}}
}

func snake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && unicode.IsLower(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
