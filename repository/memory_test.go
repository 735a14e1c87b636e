package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/utils"
)

func TestMemoryUserRepository(t *testing.T) {
	store := NewMemoryStore()
	repo := NewMemoryUserRepository(store)
	ctx := context.Background()

	t.Run("SaveAssignsDefaults", func(t *testing.T) {
		user := &models.User{
			Username: "jane@example.com",
			Email:    "jane@example.com",
			Role:     models.RoleBusiness,
		}
		require.NoError(t, repo.Save(ctx, user))

		assert.Equal(t, uint(1), user.ID)
		assert.NotEqual(t, uuid.Nil, user.UUID)
		assert.False(t, user.CreatedAt.IsZero())

		second := &models.User{Username: "joe@example.com", Email: "joe@example.com"}
		require.NoError(t, repo.Save(ctx, second))
		assert.Equal(t, uint(2), second.ID)
	})

	t.Run("ByEmail", func(t *testing.T) {
		user, err := repo.ByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, uint(1), user.ID)

		missing, err := repo.ByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("SaveUpdatesExisting", func(t *testing.T) {
		user, err := repo.ByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, user)

		user.FirstName = "Janet"
		require.NoError(t, repo.Save(ctx, user))

		reloaded, err := repo.ByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Janet", reloaded.FirstName)

		count, err := repo.Count(ctx, models.UserFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("ByIDNotFoundReturnsNil", func(t *testing.T) {
		user, err := repo.ByID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestMemoryBusinessRepository(t *testing.T) {
	store := NewMemoryStore()
	repo := NewMemoryBusinessRepository(store)
	ctx := context.Background()

	business := &models.Business{
		UserID: 1,
		Name:   "Acme Widgets LLC",
		TaxID:  "12-3456789",
		Status: models.BusinessStatusRegistered,
	}
	require.NoError(t, repo.Save(ctx, business))

	t.Run("UpdateStatus", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, business.ID, models.BusinessStatusPlanSelected))

		reloaded, err := repo.ByID(ctx, business.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BusinessStatusPlanSelected, reloaded.Status)
	})

	t.Run("UpdateStatusUnknownID", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, 999, models.BusinessStatusEnrolled)
		require.Error(t, err)
	})

	t.Run("ListByUserNewestFirst", func(t *testing.T) {
		second := &models.Business{UserID: 1, Name: "Acme East LLC", Status: models.BusinessStatusRegistered}
		require.NoError(t, repo.Save(ctx, second))

		list, err := repo.ListByUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		status := models.BusinessStatusRegistered
		matches, err := repo.ByFilter(ctx, models.BusinessFilter{Status: &status}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Acme East LLC", matches[0].Name)
	})
}

func TestMemoryEnrollmentRepository(t *testing.T) {
	store := NewMemoryStore()
	repo := NewMemoryEnrollmentRepository(store)
	ctx := context.Background()

	save := func(t *testing.T, businessID uint, createdAt time.Time) *models.Enrollment {
		t.Helper()
		enrollment := &models.Enrollment{
			BusinessID:    businessID,
			PlanID:        1,
			Status:        models.EnrollmentStatusPlanSelected,
			EffectiveDate: utils.UTCNow().AddDate(0, 1, 0),
			MonthlyBudget: decimal.NewFromInt(500),
			CreatedAt:     createdAt,
		}
		require.NoError(t, repo.Save(ctx, enrollment))
		return enrollment
	}

	base := utils.UTCNow()
	older := save(t, 1, base.Add(-2*time.Hour))
	newer := save(t, 1, base.Add(-1*time.Hour))
	save(t, 2, base)

	t.Run("SaveDefaultsEmptyClassList", func(t *testing.T) {
		stored, err := repo.ByID(ctx, older.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.EmployeeClasses)
		assert.Empty(t, stored.EmployeeClasses)
	})

	t.Run("ListByBusinessNewestFirst", func(t *testing.T) {
		list, err := repo.ListByBusiness(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("LatestByBusiness", func(t *testing.T) {
		latest, err := repo.LatestByBusiness(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, newer.ID, latest.ID)

		missing, err := repo.LatestByBusiness(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("EqualTimestampsBreakTiesByID", func(t *testing.T) {
		ts := base.Add(time.Hour)
		first := save(t, 3, ts)
		second := save(t, 3, ts)

		latest, err := repo.LatestByBusiness(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Greater(t, second.ID, first.ID)
	})

	t.Run("UpdateClasses", func(t *testing.T) {
		classes := models.EmployeeClassList{
			{Name: "Full-time", AllowanceAmount: decimal.NewFromInt(450)},
		}
		require.NoError(t, repo.UpdateClasses(ctx, older.ID, classes, models.EnrollmentStatusClassesDefined))

		stored, err := repo.ByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EnrollmentStatusClassesDefined, stored.Status)
		require.Len(t, stored.EmployeeClasses, 1)
		assert.Equal(t, "Full-time", stored.EmployeeClasses[0].Name)

		require.Error(t, repo.UpdateClasses(ctx, 999, classes, models.EnrollmentStatusClassesDefined))
	})

	t.Run("UpdateCompletion", func(t *testing.T) {
		require.NoError(t, repo.UpdateCompletion(ctx, older.ID, "notes", models.EnrollmentStatusCompleted))

		stored, err := repo.ByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EnrollmentStatusCompleted, stored.Status)
		assert.Equal(t, "notes", stored.AdditionalNotes)

		require.Error(t, repo.UpdateCompletion(ctx, 999, "", models.EnrollmentStatusCompleted))
	})
}

func TestMemoryTxManager(t *testing.T) {
	t.Run("CommitPersistsWrites", func(t *testing.T) {
		store := NewMemoryStore()
		users := NewMemoryUserRepository(store)
		tx := NewMemoryTxManager(store)
		ctx := context.Background()

		err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return users.Save(txCtx, &models.User{Username: "jane@example.com", Email: "jane@example.com"})
		})
		require.NoError(t, err)

		user, err := users.ByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
	})

	t.Run("ErrorRollsBackAllWrites", func(t *testing.T) {
		store := NewMemoryStore()
		users := NewMemoryUserRepository(store)
		businesses := NewMemoryBusinessRepository(store)
		tx := NewMemoryTxManager(store)
		ctx := context.Background()

		boom := errors.New("boom")
		err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := users.Save(txCtx, &models.User{Username: "jane@example.com", Email: "jane@example.com"}); err != nil {
				return err
			}
			if err := businesses.Save(txCtx, &models.Business{UserID: 1, Name: "Acme"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		user, err := users.ByEmail(ctx, "jane@example.com")
		require.NoError(t, err)
		assert.Nil(t, user)

		count, err := businesses.Count(ctx, models.BusinessFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		// ID sequences roll back too, so a retry reuses the same ids
		retry := &models.User{Username: "jane@example.com", Email: "jane@example.com"}
		require.NoError(t, users.Save(ctx, retry))
		assert.Equal(t, uint(1), retry.ID)
	})

	t.Run("PanicRollsBackAndReturnsError", func(t *testing.T) {
		store := NewMemoryStore()
		users := NewMemoryUserRepository(store)
		tx := NewMemoryTxManager(store)
		ctx := context.Background()

		err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := users.Save(txCtx, &models.User{Username: "jane@example.com", Email: "jane@example.com"}); err != nil {
				return err
			}
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")

		user, lookupErr := users.ByEmail(ctx, "jane@example.com")
		require.NoError(t, lookupErr)
		assert.Nil(t, user)
	})
}

func TestSeedIchraPlans(t *testing.T) {
	store := NewMemoryStore()
	repo := NewMemoryIchraPlanRepository(store)
	ctx := context.Background()

	require.NoError(t, SeedIchraPlans(ctx, repo))

	plans, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "Basic ICHRA", plans[0].Name)
	assert.Equal(t, "Standard ICHRA", plans[1].Name)
	assert.Equal(t, "Premium ICHRA", plans[2].Name)
	assert.True(t, utils.IsTrue(plans[1].IsPopular))

	// Seeding again must not duplicate the catalog
	require.NoError(t, SeedIchraPlans(ctx, repo))
	plans, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}
