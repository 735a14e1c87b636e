// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/coverbridge/ichra-enrollment/models"
)

// contextKey is the key type for transaction values stored in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TxManager runs a function with transactional semantics: either every
// write issued through the repositories inside fn is applied, or none
// is. The gorm implementation uses a database transaction; the
// in-memory implementation uses a store-wide lock with snapshot
// rollback. This is the seam that keeps the two-write status mirror
// atomic from the caller's perspective.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
}

// BusinessRepository defines operations for businesses
type BusinessRepository interface {
	Repository[models.Business, models.BusinessFilter]
	ByUserID(ctx context.Context, userID uint) (*models.Business, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Business, error)
	UpdateStatus(ctx context.Context, businessID uint, status string) error
}

// IchraPlanRepository defines operations for the plan catalog
type IchraPlanRepository interface {
	Repository[models.IchraPlan, models.IchraPlanFilter]
	List(ctx context.Context) ([]*models.IchraPlan, error)
}

// EnrollmentRepository defines operations for enrollments
type EnrollmentRepository interface {
	Repository[models.Enrollment, models.EnrollmentFilter]
	ListByBusiness(ctx context.Context, businessID uint) ([]*models.Enrollment, error)
	LatestByBusiness(ctx context.Context, businessID uint) (*models.Enrollment, error)
	UpdateClasses(ctx context.Context, enrollmentID uint, classes models.EmployeeClassList, status string) error
	UpdateCompletion(ctx context.Context, enrollmentID uint, notes string, status string) error
}
