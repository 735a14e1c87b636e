package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coverbridge/ichra-enrollment/models"
	"gorm.io/gorm"
)

// BusinessRepositoryImpl implements BusinessRepository interface
type BusinessRepositoryImpl struct {
	*BaseRepository[models.Business, models.BusinessFilter]
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &BusinessRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Business, models.BusinessFilter](db),
	}
}

// ByUserID retrieves the most recently created business owned by a user
func (r *BusinessRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Business, error) {
	db := r.getDB(ctx)

	var business models.Business
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business by user ID: %w", err)
	}

	return &business, nil
}

// ListByUser retrieves all businesses owned by a user, newest first
func (r *BusinessRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]*models.Business, error) {
	db := r.getDB(ctx)

	var businesses []*models.Business
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&businesses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses by user: %w", err)
	}

	return businesses, nil
}

// UpdateStatus advances the mirrored lifecycle status of a business
func (r *BusinessRepositoryImpl) UpdateStatus(ctx context.Context, businessID uint, status string) error {
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

	result := db.Model(&models.Business{}).
		Where("id = ?", businessID).
		Update("status", status)
	if result.Error != nil {
		err = fmt.Errorf("failed to update business status: %w", result.Error)
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("business %d not found for status update", businessID)
		return err
	}

	return nil
}

// ByFilter retrieves businesses based on filter criteria
func (r *BusinessRepositoryImpl) ByFilter(ctx context.Context, filter models.BusinessFilter, orderBy string, limit, offset int) ([]*models.Business, error) {
	db := r.getDB(ctx)
	query := applyBusinessFilter(db.Model(&models.Business{}), filter)

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

	var businesses []*models.Business
	err := query.Find(&businesses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find businesses by filter: %w", err)
	}

	return businesses, nil
}

// Count returns the number of businesses matching the filter
func (r *BusinessRepositoryImpl) Count(ctx context.Context, filter models.BusinessFilter) (int64, error) {
	db := r.getDB(ctx)
	query := applyBusinessFilter(db.Model(&models.Business{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count businesses: %w", err)
	}

	return count, nil
}

// Exists checks if any business matching the filter exists
func (r *BusinessRepositoryImpl) Exists(ctx context.Context, filter models.BusinessFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func applyBusinessFilter(query *gorm.DB, filter models.BusinessFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
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
