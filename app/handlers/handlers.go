// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"reflect"
	"regexp"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	taxIDPattern = regexp.MustCompile(`^\d{2}-\d{7}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// newValidator builds the shared request validator with the domain's
// custom tags registered.
func newValidator() *validator.Validate {
	v := validator.New()

	// Expose decimal and date wrapper types to the validator so tag
	// validations can inspect the underlying values.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(dto.Date); ok {
			return d.Time
		}
		return nil
	}, dto.Date{})

	// EIN format: two digits, a dash, seven digits
	v.RegisterValidation("tax_id", func(fl validator.FieldLevel) bool {
		return taxIDPattern.MatchString(fl.Field().String())
	})

	// US ZIP code, with optional +4 extension
	v.RegisterValidation("zip_code", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})

	v.RegisterValidation("decimal_positive", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})

	v.RegisterValidation("date_set", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.IsZero()
	})

	return v
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if err.Field() == "EmployeeClasses" {
			return "At least one employee class is required"
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "gt":
		return err.Field() + " must be greater than " + err.Param()
	case "eq":
		if err.Field() == "TermsAccepted" {
			return "Terms and conditions must be accepted"
		}
		return err.Field() + " must equal " + err.Param()
	case "tax_id":
		return "Tax ID must be in format XX-XXXXXXX"
	case "zip_code":
		return "ZIP code must be in format XXXXX or XXXXX-XXXX"
	case "decimal_positive":
		return err.Field() + " must be a positive amount"
	case "date_set":
		return err.Field() + " is required"
	default:
		return err.Field() + " is invalid"
	}
}
