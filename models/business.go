package models

import (
	"time"

	"github.com/google/uuid"
)

// Business lifecycle statuses. The status mirrors the active
// enrollment's progress and only ever moves forward.
const (
	BusinessStatusRegistered     = "registered"
	BusinessStatusPlanSelected   = "plan_selected"
	BusinessStatusClassesDefined = "classes_defined"
	BusinessStatusEnrolled       = "enrolled"
)

type Business struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_businesses_uuid" json:"uuid"`
	UserID   uint      `gorm:"not null;index:idx_businesses_user_id" json:"user_id"`
	User     *User     `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Name     string    `gorm:"size:255;not null" json:"name"`
	TaxID    string    `gorm:"size:10;not null" json:"tax_id"`
	Address  string    `gorm:"size:255;not null" json:"address"`
	City     string    `gorm:"size:100;not null" json:"city"`
	State    string    `gorm:"size:50;not null" json:"state"`
	Zip      string    `gorm:"size:10;not null" json:"zip"`
	Industry string    `gorm:"size:100;not null" json:"industry"`
	Size     string    `gorm:"size:50;not null" json:"size"`
	Status   string    `gorm:"size:20;not null;default:registered;index:idx_businesses_status" json:"status"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_businesses_created_at" json:"created_at"`

	// Relations
	Enrollments []Enrollment `gorm:"foreignKey:BusinessID" json:"enrollments,omitempty"`
}

func (Business) TableName() string {
	return "businesses"
}

// BusinessFilter represents filter criteria for business queries
type BusinessFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	UserID        *uint
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (b *Business) IsEnrolled() bool {
	return b.Status == BusinessStatusEnrolled
}
