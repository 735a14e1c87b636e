package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/repository"
	"github.com/coverbridge/ichra-enrollment/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// placeholderPassword stands in for a real credential until account
// management exists; it is still stored hashed.
const placeholderPassword = "temppassword"

const planCatalogCacheKey = "ichra:plans:catalog"

// EnrollmentFlow is the authoritative enrollment lifecycle state
// machine. Each wizard step maps to exactly one method; status
// transitions are monotonic: plan_selected -> classes_defined ->
// completed, mirrored onto the business as registered -> plan_selected
// -> classes_defined -> enrolled.
type EnrollmentFlow interface {
	RegisterBusiness(ctx context.Context, req *dto.BusinessRegistrationRequest) (*dto.BusinessRegistrationResponse, error)
	SelectPlan(ctx context.Context, businessID uint, req *dto.PlanSelectionRequest) (*dto.PlanSelectionResponse, error)
	DefineClasses(ctx context.Context, enrollmentID uint, req *dto.EmployeeClassesRequest) (*dto.EmployeeClassesResponse, error)
	FinalizeEnrollment(ctx context.Context, enrollmentID uint, req *dto.FinalizeEnrollmentRequest) (*dto.FinalizeEnrollmentResponse, error)

	ListPlans(ctx context.Context) ([]dto.IchraPlanDTO, error)
	GetPlan(ctx context.Context, planID uint) (*dto.IchraPlanDTO, error)
	GetBusiness(ctx context.Context, businessID uint) (*dto.BusinessDTO, error)
	ListBusinessEnrollments(ctx context.Context, businessID uint) ([]dto.EnrollmentDTO, error)
	GetEnrollment(ctx context.Context, enrollmentID uint) (*dto.EnrollmentDTO, error)
	ActiveEnrollment(ctx context.Context, businessID uint) (*dto.EnrollmentDTO, error)
}

// EnrollmentFlowImpl implements the enrollment business flow
type EnrollmentFlowImpl struct {
	userRepo       repository.UserRepository
	businessRepo   repository.BusinessRepository
	planRepo       repository.IchraPlanRepository
	enrollmentRepo repository.EnrollmentRepository
	tx             repository.TxManager
	cache          *redis.Client // optional, nil disables caching
	cacheTTL       time.Duration
	bcryptCost     int
}

// NewEnrollmentFlow creates a new enrollment flow instance
func NewEnrollmentFlow(
	userRepo repository.UserRepository,
	businessRepo repository.BusinessRepository,
	planRepo repository.IchraPlanRepository,
	enrollmentRepo repository.EnrollmentRepository,
	tx repository.TxManager,
	cache *redis.Client,
	cacheTTL time.Duration,
	bcryptCost int,
) EnrollmentFlow {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &EnrollmentFlowImpl{
		userRepo:       userRepo,
		businessRepo:   businessRepo,
		planRepo:       planRepo,
		enrollmentRepo: enrollmentRepo,
		tx:             tx,
		cache:          cache,
		cacheTTL:       cacheTTL,
		bcryptCost:     bcryptCost,
	}
}

// RegisterBusiness creates the business and its primary contact. A
// known email reuses the existing user rather than failing, so the
// call is safe to retry; the business row itself is always new.
func (f *EnrollmentFlowImpl) RegisterBusiness(ctx context.Context, req *dto.BusinessRegistrationRequest) (*dto.BusinessRegistrationResponse, error) {
	var user *models.User
	var business *models.Business

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		user, err = f.userRepo.ByEmail(txCtx, req.Email)
		if err != nil {
			return err
		}

		if user == nil {
			passwordHash, err := bcrypt.GenerateFromPassword([]byte(placeholderPassword), f.bcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash placeholder credential: %w", err)
			}

			user = &models.User{
				UUID:         uuid.New(),
				Username:     req.Email,
				PasswordHash: string(passwordHash),
				FirstName:    req.FirstName,
				LastName:     req.LastName,
				Email:        req.Email,
				Phone:        req.Phone,
				Role:         models.RoleBusiness,
				CreatedAt:    utils.UTCNow(),
			}
			if err := f.userRepo.Save(txCtx, user); err != nil {
				return err
			}
		}

		business = &models.Business{
			UUID:      uuid.New(),
			UserID:    user.ID,
			Name:      req.Name,
			TaxID:     req.TaxID,
			Address:   req.Address,
			City:      req.City,
			State:     req.State,
			Zip:       req.Zip,
			Industry:  req.Industry,
			Size:      req.Size,
			Status:    models.BusinessStatusRegistered,
			CreatedAt: utils.UTCNow(),
		}
		return f.businessRepo.Save(txCtx, business)
	})

	if err != nil {
		return nil, NewBusinessError("REGISTER_BUSINESS_FAILED", "Business registration failed", err)
	}

	return &dto.BusinessRegistrationResponse{
		Message:    "Business registered successfully",
		BusinessID: business.ID,
		UserID:     user.ID,
	}, nil
}

// SelectPlan creates a new enrollment for the business. Repeating the
// call deliberately creates a new enrollment row; only the newest is
// the active one.
func (f *EnrollmentFlowImpl) SelectPlan(ctx context.Context, businessID uint, req *dto.PlanSelectionRequest) (*dto.PlanSelectionResponse, error) {
	var enrollment *models.Enrollment

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		business, err := f.businessRepo.ByID(txCtx, businessID)
		if err != nil {
			return err
		}
		if business == nil {
			return ErrBusinessNotFound
		}

		plan, err := f.planRepo.ByID(txCtx, req.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return ErrPlanNotFound
		}

		if req.EffectiveDate.IsZero() {
			return ErrEffectiveDateMissing
		}
		if !req.MonthlyBudget.IsPositive() {
			return ErrMonthlyBudgetInvalid
		}

		enrollment = &models.Enrollment{
			UUID:            uuid.New(),
			BusinessID:      businessID,
			PlanID:          plan.ID,
			Status:          models.EnrollmentStatusPlanSelected,
			EffectiveDate:   req.EffectiveDate.Time,
			EmployeeClasses: models.EmployeeClassList{},
			MonthlyBudget:   req.MonthlyBudget,
			CreatedAt:       utils.UTCNow(),
		}
		if err := f.enrollmentRepo.Save(txCtx, enrollment); err != nil {
			return err
		}

		return f.businessRepo.UpdateStatus(txCtx, businessID, models.BusinessStatusFor(enrollment.Status))
	})

	if err != nil {
		return nil, NewBusinessError("SELECT_PLAN_FAILED", "Plan selection failed", err)
	}

	return &dto.PlanSelectionResponse{
		Message:      "Plan selected successfully",
		EnrollmentID: enrollment.ID,
	}, nil
}

// DefineClasses replaces the enrollment's employee class list.
// Resubmitting overwrites the stored list; a completed enrollment can
// no longer be edited.
func (f *EnrollmentFlowImpl) DefineClasses(ctx context.Context, enrollmentID uint, req *dto.EmployeeClassesRequest) (*dto.EmployeeClassesResponse, error) {
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		enrollment, err := f.enrollmentRepo.ByID(txCtx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return ErrEnrollmentNotFound
		}
		if enrollment.IsCompleted() {
			return ErrEnrollmentCompleted
		}
		if len(req.EmployeeClasses) == 0 {
			return ErrNoEmployeeClasses
		}

		classes := make(models.EmployeeClassList, 0, len(req.EmployeeClasses))
		for _, c := range req.EmployeeClasses {
			classes = append(classes, models.EmployeeClass{
				Name:                    c.Name,
				AllowanceAmount:         c.AllowanceAmount,
				EligibilityRequirements: c.EligibilityRequirements,
			})
		}

		if err := f.enrollmentRepo.UpdateClasses(txCtx, enrollmentID, classes, models.EnrollmentStatusClassesDefined); err != nil {
			return err
		}

		return f.businessRepo.UpdateStatus(txCtx, enrollment.BusinessID, models.BusinessStatusFor(models.EnrollmentStatusClassesDefined))
	})

	if err != nil {
		return nil, NewBusinessError("DEFINE_CLASSES_FAILED", "Defining employee classes failed", err)
	}

	return &dto.EmployeeClassesResponse{
		Message:      "Employee classes added successfully",
		EnrollmentID: enrollmentID,
	}, nil
}

// FinalizeEnrollment completes the enrollment. It requires a non-empty
// class list; retrying overwrites the stored notes.
func (f *EnrollmentFlowImpl) FinalizeEnrollment(ctx context.Context, enrollmentID uint, req *dto.FinalizeEnrollmentRequest) (*dto.FinalizeEnrollmentResponse, error) {
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		enrollment, err := f.enrollmentRepo.ByID(txCtx, enrollmentID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return ErrEnrollmentNotFound
		}
		if !enrollment.HasEmployeeClasses() {
			return ErrNoEmployeeClasses
		}

		if err := f.enrollmentRepo.UpdateCompletion(txCtx, enrollmentID, req.AdditionalNotes, models.EnrollmentStatusCompleted); err != nil {
			return err
		}

		return f.businessRepo.UpdateStatus(txCtx, enrollment.BusinessID, models.BusinessStatusFor(models.EnrollmentStatusCompleted))
	})

	if err != nil {
		return nil, NewBusinessError("FINALIZE_ENROLLMENT_FAILED", "Finalizing enrollment failed", err)
	}

	return &dto.FinalizeEnrollmentResponse{
		Message:      "Enrollment completed successfully",
		EnrollmentID: enrollmentID,
	}, nil
}

// ListPlans returns the plan catalog, read through the optional cache.
// The catalog is seeded at startup and never empty in normal operation.
func (f *EnrollmentFlowImpl) ListPlans(ctx context.Context) ([]dto.IchraPlanDTO, error) {
	if f.cache != nil {
		if cached, err := f.cache.Get(ctx, planCatalogCacheKey).Bytes(); err == nil {
			var plans []dto.IchraPlanDTO
			if err := json.Unmarshal(cached, &plans); err == nil {
				return plans, nil
			}
		}
	}

	plans, err := f.planRepo.List(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to retrieve plans", err)
	}

	out := make([]dto.IchraPlanDTO, 0, len(plans))
	for _, plan := range plans {
		out = append(out, ToIchraPlanDTO(plan))
	}

	if f.cache != nil {
		if payload, err := json.Marshal(out); err == nil {
			if err := f.cache.Set(ctx, planCatalogCacheKey, payload, f.cacheTTL).Err(); err != nil {
				log.Printf("plan catalog cache write failed: %v", err)
			}
		}
	}

	return out, nil
}

// GetPlan returns a single catalog plan
func (f *EnrollmentFlowImpl) GetPlan(ctx context.Context, planID uint) (*dto.IchraPlanDTO, error) {
	plan, err := f.planRepo.ByID(ctx, planID)
	if err != nil {
		return nil, NewBusinessError("GET_PLAN_FAILED", "Failed to retrieve plan", err)
	}
	if plan == nil {
		return nil, NewBusinessError("PLAN_NOT_FOUND", "Plan not found", ErrPlanNotFound)
	}

	out := ToIchraPlanDTO(plan)
	return &out, nil
}

// GetBusiness returns a business by id
func (f *EnrollmentFlowImpl) GetBusiness(ctx context.Context, businessID uint) (*dto.BusinessDTO, error) {
	business, err := f.businessRepo.ByID(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("GET_BUSINESS_FAILED", "Failed to retrieve business", err)
	}
	if business == nil {
		return nil, NewBusinessError("BUSINESS_NOT_FOUND", "Business not found", ErrBusinessNotFound)
	}

	out := ToBusinessDTO(business)
	return &out, nil
}

// ListBusinessEnrollments returns all enrollments of a business, newest
// first, each joined with its plan.
func (f *EnrollmentFlowImpl) ListBusinessEnrollments(ctx context.Context, businessID uint) ([]dto.EnrollmentDTO, error) {
	business, err := f.businessRepo.ByID(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("LIST_ENROLLMENTS_FAILED", "Failed to retrieve enrollments", err)
	}
	if business == nil {
		return nil, NewBusinessError("BUSINESS_NOT_FOUND", "Business not found", ErrBusinessNotFound)
	}

	enrollments, err := f.enrollmentRepo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("LIST_ENROLLMENTS_FAILED", "Failed to retrieve enrollments", err)
	}

	out := make([]dto.EnrollmentDTO, 0, len(enrollments))
	for _, enrollment := range enrollments {
		item := ToEnrollmentDTO(enrollment)
		if plan, err := f.planRepo.ByID(ctx, enrollment.PlanID); err == nil && plan != nil {
			planDTO := ToIchraPlanDTO(plan)
			item.Plan = &planDTO
		}
		out = append(out, item)
	}

	return out, nil
}

// GetEnrollment returns an enrollment joined with its plan and business
func (f *EnrollmentFlowImpl) GetEnrollment(ctx context.Context, enrollmentID uint) (*dto.EnrollmentDTO, error) {
	enrollment, err := f.enrollmentRepo.ByID(ctx, enrollmentID)
	if err != nil {
		return nil, NewBusinessError("GET_ENROLLMENT_FAILED", "Failed to retrieve enrollment", err)
	}
	if enrollment == nil {
		return nil, NewBusinessError("ENROLLMENT_NOT_FOUND", "Enrollment not found", ErrEnrollmentNotFound)
	}

	out := ToEnrollmentDTO(enrollment)
	if plan, err := f.planRepo.ByID(ctx, enrollment.PlanID); err == nil && plan != nil {
		planDTO := ToIchraPlanDTO(plan)
		out.Plan = &planDTO
	}
	if business, err := f.businessRepo.ByID(ctx, enrollment.BusinessID); err == nil && business != nil {
		businessDTO := ToBusinessDTO(business)
		out.Business = &businessDTO
	}

	return &out, nil
}

// ActiveEnrollment returns the most recently created enrollment for a
// business, joined with its plan.
func (f *EnrollmentFlowImpl) ActiveEnrollment(ctx context.Context, businessID uint) (*dto.EnrollmentDTO, error) {
	business, err := f.businessRepo.ByID(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("GET_ENROLLMENT_FAILED", "Failed to retrieve enrollment", err)
	}
	if business == nil {
		return nil, NewBusinessError("BUSINESS_NOT_FOUND", "Business not found", ErrBusinessNotFound)
	}

	enrollment, err := f.enrollmentRepo.LatestByBusiness(ctx, businessID)
	if err != nil {
		return nil, NewBusinessError("GET_ENROLLMENT_FAILED", "Failed to retrieve enrollment", err)
	}
	if enrollment == nil {
		return nil, NewBusinessError("ENROLLMENT_NOT_FOUND", "Enrollment not found", ErrEnrollmentNotFound)
	}

	return f.GetEnrollment(ctx, enrollment.ID)
}
