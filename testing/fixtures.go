// Package testing provides test utilities and database setup for testing the enrollment system
package testing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/repository"
	"github.com/coverbridge/ichra-enrollment/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data through
// the repository interfaces, so the same fixtures work against both
// the in-memory and the postgres backends.
type TestFixtures struct {
	Users       repository.UserRepository
	Businesses  repository.BusinessRepository
	Plans       repository.IchraPlanRepository
	Enrollments repository.EnrollmentRepository
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(
	users repository.UserRepository,
	businesses repository.BusinessRepository,
	plans repository.IchraPlanRepository,
	enrollments repository.EnrollmentRepository,
) *TestFixtures {
	return &TestFixtures{
		Users:       users,
		Businesses:  businesses,
		Plans:       plans,
		Enrollments: enrollments,
	}
}

// SeedPlans populates the canonical plan catalog.
func (tf *TestFixtures) SeedPlans(ctx context.Context) error {
	return repository.SeedIchraPlans(ctx, tf.Plans)
}

// CreateTestUser creates a user with a unique email.
func (tf *TestFixtures) CreateTestUser(ctx context.Context) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("temppassword"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	email := fmt.Sprintf("owner.%d@example.com", rand.Intn(1_000_000_000))
	user := &models.User{
		UUID:         uuid.New(),
		Username:     email,
		PasswordHash: string(hashedPassword),
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		Phone:        "555-123-4567",
		Role:         models.RoleBusiness,
		CreatedAt:    utils.UTCNow(),
	}
	if err := tf.Users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestBusiness creates a registered business owned by a fresh user.
func (tf *TestFixtures) CreateTestBusiness(ctx context.Context) (*models.Business, error) {
	user, err := tf.CreateTestUser(ctx)
	if err != nil {
		return nil, err
	}

	business := &models.Business{
		UUID:      uuid.New(),
		UserID:    user.ID,
		Name:      "Acme Widgets LLC",
		TaxID:     "12-3456789",
		Address:   "100 Main St",
		City:      "Springfield",
		State:     "IL",
		Zip:       "62701",
		Industry:  "Manufacturing",
		Size:      "11-50",
		Status:    models.BusinessStatusRegistered,
		CreatedAt: utils.UTCNow(),
	}
	if err := tf.Businesses.Save(ctx, business); err != nil {
		return nil, fmt.Errorf("failed to create test business: %w", err)
	}
	return business, nil
}

// CreateTestEnrollment creates an enrollment in the plan_selected state
// for the given business and plan.
func (tf *TestFixtures) CreateTestEnrollment(ctx context.Context, businessID, planID uint) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{
		UUID:            uuid.New(),
		BusinessID:      businessID,
		PlanID:          planID,
		Status:          models.EnrollmentStatusPlanSelected,
		EffectiveDate:   utils.UTCNow().AddDate(0, 1, 0),
		EmployeeClasses: models.EmployeeClassList{},
		MonthlyBudget:   decimal.NewFromInt(500),
		CreatedAt:       utils.UTCNow(),
	}
	if err := tf.Enrollments.Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to create test enrollment: %w", err)
	}
	return enrollment, nil
}

// ValidRegistrationRequest returns a registration payload that passes
// every validation rule, with a unique email.
func ValidRegistrationRequest() dto.BusinessRegistrationRequest {
	return dto.BusinessRegistrationRequest{
		Name:          "Acme Widgets LLC",
		TaxID:         "12-3456789",
		Address:       "100 Main St",
		City:          "Springfield",
		State:         "IL",
		Zip:           "62701",
		Industry:      "Manufacturing",
		Size:          "11-50",
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         fmt.Sprintf("jane.doe.%d@example.com", rand.Intn(1_000_000_000)),
		Phone:         "555-123-4567",
		TermsAccepted: true,
	}
}

// ValidPlanSelectionRequest returns a plan selection payload for planID.
func ValidPlanSelectionRequest(planID uint) dto.PlanSelectionRequest {
	return dto.PlanSelectionRequest{
		PlanID:        planID,
		EffectiveDate: dto.Date{Time: utils.UTCNow().AddDate(0, 1, 0).Truncate(24 * time.Hour)},
		MonthlyBudget: decimal.RequireFromString("799.99"),
	}
}

// ValidEmployeeClassesRequest returns a two-class payload.
func ValidEmployeeClassesRequest() dto.EmployeeClassesRequest {
	return dto.EmployeeClassesRequest{
		EmployeeClasses: []dto.EmployeeClassRequest{
			{
				Name:                    "Full-time",
				AllowanceAmount:         decimal.RequireFromString("450.00"),
				EligibilityRequirements: "30+ hours per week",
			},
			{
				Name:            "Part-time",
				AllowanceAmount: decimal.RequireFromString("250.00"),
			},
		},
	}
}
