package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coverbridge/ichra-enrollment/models"
	"gorm.io/gorm"
)

// EnrollmentRepositoryImpl implements EnrollmentRepository interface
type EnrollmentRepositoryImpl struct {
	*BaseRepository[models.Enrollment, models.EnrollmentFilter]
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &EnrollmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Enrollment, models.EnrollmentFilter](db),
	}
}

// ListByBusiness retrieves all enrollments for a business, newest first.
// The first element is the active enrollment for dashboard display.
func (r *EnrollmentRepositoryImpl) ListByBusiness(ctx context.Context, businessID uint) ([]*models.Enrollment, error) {
	db := r.getDB(ctx)

	var enrollments []*models.Enrollment
	err := db.Where("business_id = ?", businessID).
		Order("created_at DESC, id DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments by business: %w", err)
	}

	return enrollments, nil
}

// LatestByBusiness retrieves the active enrollment for a business
func (r *EnrollmentRepositoryImpl) LatestByBusiness(ctx context.Context, businessID uint) (*models.Enrollment, error) {
	db := r.getDB(ctx)

	var enrollment models.Enrollment
	err := db.Where("business_id = ?", businessID).
		Order("created_at DESC, id DESC").
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest enrollment: %w", err)
	}

	return &enrollment, nil
}

// UpdateClasses replaces the employee class list and advances the status
func (r *EnrollmentRepositoryImpl) UpdateClasses(ctx context.Context, enrollmentID uint, classes models.EmployeeClassList, status string) error {
	return r.updateFields(ctx, enrollmentID, map[string]any{
		"employee_classes": classes,
		"status":           status,
	})
}

// UpdateCompletion records the final notes and advances the status
func (r *EnrollmentRepositoryImpl) UpdateCompletion(ctx context.Context, enrollmentID uint, notes string, status string) error {
	return r.updateFields(ctx, enrollmentID, map[string]any{
		"additional_notes": notes,
		"status":           status,
	})
}

func (r *EnrollmentRepositoryImpl) updateFields(ctx context.Context, enrollmentID uint, fields map[string]any) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.Enrollment{}).
		Where("id = ?", enrollmentID).
		Updates(fields)
	if result.Error != nil {
		err = fmt.Errorf("failed to update enrollment: %w", result.Error)
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("enrollment %d not found for update", enrollmentID)
		return err
	}

	return nil
}

// ByFilter retrieves enrollments based on filter criteria
func (r *EnrollmentRepositoryImpl) ByFilter(ctx context.Context, filter models.EnrollmentFilter, orderBy string, limit, offset int) ([]*models.Enrollment, error) {
	db := r.getDB(ctx)
	query := applyEnrollmentFilter(db.Model(&models.Enrollment{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var enrollments []*models.Enrollment
	err := query.Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollments by filter: %w", err)
	}

	return enrollments, nil
}

// Count returns the number of enrollments matching the filter
func (r *EnrollmentRepositoryImpl) Count(ctx context.Context, filter models.EnrollmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := applyEnrollmentFilter(db.Model(&models.Enrollment{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	return count, nil
}

// Exists checks if any enrollment matching the filter exists
func (r *EnrollmentRepositoryImpl) Exists(ctx context.Context, filter models.EnrollmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func applyEnrollmentFilter(query *gorm.DB, filter models.EnrollmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.BusinessID != nil {
		query = query.Where("business_id = ?", *filter.BusinessID)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}
