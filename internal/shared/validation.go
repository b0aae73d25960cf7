package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// NewValidator returns a validator with the dashboard's custom rules registered:
//
//	money     decimal string strictly greater than zero
//	money_gte decimal string greater than or equal to zero
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive()
	})
	_ = v.RegisterValidation("money_gte", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && !d.IsNegative()
	})
	return v
}

// FieldErrors maps validation failures to a message per struct field. Errors that are not
// validation errors are reported under "general".
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "money":
		return "Enter an amount greater than zero."
	case "money_gte":
		return "Enter a valid amount."
	case "email":
		return "Enter a valid email address."
	case "datetime":
		return "Enter a valid date."
	case "gt":
		return fmt.Sprintf("Must be greater than %s.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters.", fe.Param())
	case "oneof":
		return "Choose one of the listed values."
	}
	return "Invalid value."
}
