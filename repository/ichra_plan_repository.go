package repository

import (
	"context"
	"fmt"

	"github.com/coverbridge/ichra-enrollment/models"
	"gorm.io/gorm"
)

// IchraPlanRepositoryImpl implements IchraPlanRepository interface
type IchraPlanRepositoryImpl struct {
	*BaseRepository[models.IchraPlan, models.IchraPlanFilter]
}

// NewIchraPlanRepository creates a new plan catalog repository
func NewIchraPlanRepository(db *gorm.DB) IchraPlanRepository {
	return &IchraPlanRepositoryImpl{
		BaseRepository: NewBaseRepository[models.IchraPlan, models.IchraPlanFilter](db),
	}
}

// List retrieves the full plan catalog in catalog order
func (r *IchraPlanRepositoryImpl) List(ctx context.Context) ([]*models.IchraPlan, error) {
	db := r.getDB(ctx)

	var plans []*models.IchraPlan
	err := db.Order("id ASC").Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return plans, nil
}

// ByFilter retrieves plans based on filter criteria
func (r *IchraPlanRepositoryImpl) ByFilter(ctx context.Context, filter models.IchraPlanFilter, orderBy string, limit, offset int) ([]*models.IchraPlan, error) {
	db := r.getDB(ctx)
	query := applyPlanFilter(db.Model(&models.IchraPlan{}), filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var plans []*models.IchraPlan
	err := query.Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find plans by filter: %w", err)
	}

	return plans, nil
}

// Count returns the number of plans matching the filter
func (r *IchraPlanRepositoryImpl) Count(ctx context.Context, filter models.IchraPlanFilter) (int64, error) {
	db := r.getDB(ctx)
	query := applyPlanFilter(db.Model(&models.IchraPlan{}), filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}

	return count, nil
}

// Exists checks if any plan matching the filter exists
func (r *IchraPlanRepositoryImpl) Exists(ctx context.Context, filter models.IchraPlanFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func applyPlanFilter(query *gorm.DB, filter models.IchraPlanFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.IsPopular != nil {
		query = query.Where("is_popular = ?", *filter.IsPopular)
	}
	return query
}
