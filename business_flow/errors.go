// Package businessflow contains the core business logic for the enrollment lifecycle
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	ErrBusinessNotFound   = errors.New("business not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrUserNotFound       = errors.New("user not found")

	// Kept from an earlier revision that rejected duplicate emails;
	// the register path now reuses the existing user instead.
	ErrEmailAlreadyExists = errors.New("email already registered")

	ErrNoEmployeeClasses    = errors.New("at least one employee class is required")
	ErrEnrollmentCompleted  = errors.New("enrollment is already completed")
	ErrEffectiveDateMissing = errors.New("effective date is required")
	ErrMonthlyBudgetInvalid = errors.New("monthly budget must be positive")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsBusinessNotFound(err error) bool {
	return errors.Is(err, ErrBusinessNotFound)
}

func IsPlanNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}

func IsEnrollmentNotFound(err error) bool {
	return errors.Is(err, ErrEnrollmentNotFound)
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsNoEmployeeClasses(err error) bool {
	return errors.Is(err, ErrNoEmployeeClasses)
}

func IsEnrollmentCompleted(err error) bool {
	return errors.Is(err, ErrEnrollmentCompleted)
}

func IsEffectiveDateMissing(err error) bool {
	return errors.Is(err, ErrEffectiveDateMissing)
}

func IsMonthlyBudgetInvalid(err error) bool {
	return errors.Is(err, ErrMonthlyBudgetInvalid)
}
