// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date accepts both date-only strings ("2006-01-02") and full RFC 3339
// timestamps, since the transport layer may serialize dates either way.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(time.RFC3339))
}

// BusinessRegistrationRequest represents the first wizard step payload.
// TermsAccepted is validated but never persisted.
type BusinessRegistrationRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	TaxID    string `json:"taxId" validate:"required,tax_id"`
	Address  string `json:"address" validate:"required,max=255"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=50"`
	Zip      string `json:"zip" validate:"required,zip_code"`
	Industry string `json:"industry" validate:"required,max=100"`
	Size     string `json:"size" validate:"required,max=50"`

	FirstName string `json:"firstName" validate:"required,max=255"`
	LastName  string `json:"lastName" validate:"required,max=255"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"required,min=7,max=20"`

	TermsAccepted bool `json:"termsAccepted" validate:"eq=true"`
}

// BusinessRegistrationResponse carries the identifiers the wizard needs
// to proceed to plan selection.
type BusinessRegistrationResponse struct {
	Message    string `json:"message"`
	BusinessID uint   `json:"businessId"`
	UserID     uint   `json:"userId"`
}

// PlanSelectionRequest represents the second wizard step payload.
// MonthlyBudget accepts a JSON number or a numeric string and is kept
// as an exact decimal end to end.
type PlanSelectionRequest struct {
	PlanID        uint            `json:"planId" validate:"required,gt=0"`
	EffectiveDate Date            `json:"effectiveDate" validate:"date_set"`
	MonthlyBudget decimal.Decimal `json:"monthlyBudget" validate:"decimal_positive"`
}

type PlanSelectionResponse struct {
	Message      string `json:"message"`
	EnrollmentID uint   `json:"enrollmentId"`
}

// EmployeeClassRequest represents one employee class entry
type EmployeeClassRequest struct {
	Name                    string          `json:"name" validate:"required,max=100"`
	AllowanceAmount         decimal.Decimal `json:"allowanceAmount" validate:"decimal_positive"`
	EligibilityRequirements string          `json:"eligibilityRequirements,omitempty" validate:"omitempty,max=500"`
}

// EmployeeClassesRequest represents the third wizard step payload
type EmployeeClassesRequest struct {
	EmployeeClasses []EmployeeClassRequest `json:"employeeClasses" validate:"required,min=1,dive"`
}

type EmployeeClassesResponse struct {
	Message      string `json:"message"`
	EnrollmentID uint   `json:"enrollmentId"`
}

// FinalizeEnrollmentRequest represents the last wizard step payload
type FinalizeEnrollmentRequest struct {
	AdditionalNotes string `json:"additionalNotes,omitempty" validate:"omitempty,max=2000"`
}

type FinalizeEnrollmentResponse struct {
	Message      string `json:"message"`
	EnrollmentID uint   `json:"enrollmentId"`
}

// IchraPlanDTO represents a catalog plan for API responses
type IchraPlanDTO struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	MonthlyAmount decimal.Decimal `json:"monthlyAmount"`
	AnnualAmount  decimal.Decimal `json:"annualAmount"`
	Features      []string        `json:"features"`
	IsPopular     bool            `json:"isPopular"`
}

// BusinessDTO represents business data for API responses
type BusinessDTO struct {
	ID        uint      `json:"id"`
	UUID      string    `json:"uuid"`
	UserID    uint      `json:"userId"`
	Name      string    `json:"name"`
	TaxID     string    `json:"taxId"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	Industry  string    `json:"industry"`
	Size      string    `json:"size"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmployeeClassDTO represents a stored employee class
type EmployeeClassDTO struct {
	Name                    string          `json:"name"`
	AllowanceAmount         decimal.Decimal `json:"allowanceAmount"`
	EligibilityRequirements string          `json:"eligibilityRequirements,omitempty"`
}

// EnrollmentDTO represents an enrollment, optionally joined with its
// plan and business for dashboard display.
type EnrollmentDTO struct {
	ID              uint               `json:"id"`
	UUID            string             `json:"uuid"`
	BusinessID      uint               `json:"businessId"`
	PlanID          uint               `json:"planId"`
	Status          string             `json:"status"`
	EffectiveDate   time.Time          `json:"effectiveDate"`
	EmployeeClasses []EmployeeClassDTO `json:"employeeClasses"`
	MonthlyBudget   decimal.Decimal    `json:"monthlyBudget"`
	AdditionalNotes string             `json:"additionalNotes,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`

	Plan     *IchraPlanDTO `json:"plan,omitempty"`
	Business *BusinessDTO  `json:"business,omitempty"`
}
