package businessflow

import (
	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/utils"
)

// ToIchraPlanDTO converts a catalog plan model to its API representation
func ToIchraPlanDTO(plan *models.IchraPlan) dto.IchraPlanDTO {
	return dto.IchraPlanDTO{
		ID:            plan.ID,
		Name:          plan.Name,
		Description:   plan.Description,
		MonthlyAmount: plan.MonthlyAmount,
		AnnualAmount:  plan.AnnualAmount,
		Features:      []string(plan.Features),
		IsPopular:     utils.IsTrue(plan.IsPopular),
	}
}

// ToBusinessDTO converts a business model to its API representation
func ToBusinessDTO(business *models.Business) dto.BusinessDTO {
	return dto.BusinessDTO{
		ID:        business.ID,
		UUID:      business.UUID.String(),
		UserID:    business.UserID,
		Name:      business.Name,
		TaxID:     business.TaxID,
		Address:   business.Address,
		City:      business.City,
		State:     business.State,
		Zip:       business.Zip,
		Industry:  business.Industry,
		Size:      business.Size,
		Status:    business.Status,
		CreatedAt: business.CreatedAt,
	}
}

// ToEnrollmentDTO converts an enrollment model to its API
// representation. Plan and business joins are attached by the caller.
func ToEnrollmentDTO(enrollment *models.Enrollment) dto.EnrollmentDTO {
	classes := make([]dto.EmployeeClassDTO, 0, len(enrollment.EmployeeClasses))
	for _, c := range enrollment.EmployeeClasses {
		classes = append(classes, dto.EmployeeClassDTO{
			Name:                    c.Name,
			AllowanceAmount:         c.AllowanceAmount,
			EligibilityRequirements: c.EligibilityRequirements,
		})
	}

	return dto.EnrollmentDTO{
		ID:              enrollment.ID,
		UUID:            enrollment.UUID.String(),
		BusinessID:      enrollment.BusinessID,
		PlanID:          enrollment.PlanID,
		Status:          enrollment.Status,
		EffectiveDate:   enrollment.EffectiveDate,
		EmployeeClasses: classes,
		MonthlyBudget:   enrollment.MonthlyBudget,
		AdditionalNotes: enrollment.AdditionalNotes,
		CreatedAt:       enrollment.CreatedAt,
	}
}
