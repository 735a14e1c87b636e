package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Enrollment lifecycle statuses. Transitions are monotonic within a
// single record: plan_selected -> classes_defined -> completed.
const (
	EnrollmentStatusPlanSelected   = "plan_selected"
	EnrollmentStatusClassesDefined = "classes_defined"
	EnrollmentStatusCompleted      = "completed"
)

// EmployeeClass is a named group of employees sharing an allowance
// amount and eligibility description.
type EmployeeClass struct {
	Name                    string          `json:"name"`
	AllowanceAmount         decimal.Decimal `json:"allowance_amount"`
	EligibilityRequirements string          `json:"eligibility_requirements,omitempty"`
}

// EmployeeClassList is stored as a JSON column; it defaults to an
// empty sequence until the classes step runs.
type EmployeeClassList []EmployeeClass

func (l EmployeeClassList) Value() (driver.Value, error) {
	if l == nil {
		l = EmployeeClassList{}
	}
	return json.Marshal(l)
}

func (l *EmployeeClassList) Scan(value any) error {
	if value == nil {
		*l = EmployeeClassList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for EmployeeClassList: %T", value)
	}
}

type Enrollment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_uuid" json:"uuid"`
	BusinessID uint       `gorm:"not null;index:idx_enrollments_business_id" json:"business_id"`
	Business   *Business  `gorm:"foreignKey:BusinessID;references:ID" json:"business,omitempty"`
	PlanID     uint       `gorm:"not null;index:idx_enrollments_plan_id" json:"plan_id"`
	Plan       *IchraPlan `gorm:"foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Status     string     `gorm:"size:20;not null;default:plan_selected;index:idx_enrollments_status" json:"status"`

	EffectiveDate   time.Time         `gorm:"not null" json:"effective_date"`
	EmployeeClasses EmployeeClassList `gorm:"type:jsonb" json:"employee_classes"`
	MonthlyBudget   decimal.Decimal   `gorm:"type:decimal(12,2)" json:"monthly_budget"`
	AdditionalNotes string            `gorm:"size:2000" json:"additional_notes"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_enrollments_created_at" json:"created_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// EnrollmentFilter represents filter criteria for enrollment queries
type EnrollmentFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	BusinessID    *uint
	PlanID        *uint
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentStatusCompleted
}

func (e *Enrollment) HasEmployeeClasses() bool {
	return len(e.EmployeeClasses) > 0
}

// BusinessStatusFor maps an enrollment status onto the owning
// business's mirrored status.
func BusinessStatusFor(enrollmentStatus string) string {
	switch enrollmentStatus {
	case EnrollmentStatusPlanSelected:
		return BusinessStatusPlanSelected
	case EnrollmentStatusClassesDefined:
		return BusinessStatusClassesDefined
	case EnrollmentStatusCompleted:
		return BusinessStatusEnrolled
	default:
		return BusinessStatusRegistered
	}
}
