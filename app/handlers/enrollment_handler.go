// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	businessflow "github.com/coverbridge/ichra-enrollment/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// EnrollmentHandlerInterface defines the contract for enrollment lifecycle handlers
type EnrollmentHandlerInterface interface {
	RegisterBusiness(c fiber.Ctx) error
	SelectPlan(c fiber.Ctx) error
	DefineClasses(c fiber.Ctx) error
	FinalizeEnrollment(c fiber.Ctx) error
	GetBusiness(c fiber.Ctx) error
	ListBusinessEnrollments(c fiber.Ctx) error
	GetActiveEnrollment(c fiber.Ctx) error
	GetEnrollment(c fiber.Ctx) error
}

// EnrollmentHandler handles enrollment lifecycle HTTP requests
type EnrollmentHandler struct {
	flow      businessflow.EnrollmentFlow
	validator *validator.Validate
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(flow businessflow.EnrollmentFlow) *EnrollmentHandler {
	return &EnrollmentHandler{
		flow:      flow,
		validator: newValidator(),
	}
}

func (h *EnrollmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *EnrollmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RegisterBusiness handles the first wizard step
// @Summary Register Business
// @Description Register a business and its primary contact
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param request body dto.BusinessRegistrationRequest true "Business registration data"
// @Success 201 {object} dto.APIResponse{data=dto.BusinessRegistrationResponse} "Business registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/business/register [post]
func (h *EnrollmentHandler) RegisterBusiness(c fiber.Ctx) error {
	var req dto.BusinessRegistrationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.RegisterBusiness(h.createRequestContext(c), &req)
	if err != nil {
		log.Println("Business registration failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Business registration failed", "REGISTER_BUSINESS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// SelectPlan handles the second wizard step
// @Summary Select Plan
// @Description Select an ICHRA plan for a registered business, creating a new enrollment
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path int true "Business ID"
// @Param request body dto.PlanSelectionRequest true "Plan selection data"
// @Success 201 {object} dto.APIResponse{data=dto.PlanSelectionResponse} "Plan selected"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Business or plan not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/business/{id}/plan [post]
func (h *EnrollmentHandler) SelectPlan(c fiber.Ctx) error {
	businessID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid business ID", "INVALID_ID", nil)
	}

	var req dto.PlanSelectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.SelectPlan(h.createRequestContext(c), businessID, &req)
	if err != nil {
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}
		if businessflow.IsPlanNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", "PLAN_NOT_FOUND", nil)
		}
		if businessflow.IsEffectiveDateMissing(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Effective date is required", "EFFECTIVE_DATE_REQUIRED", nil)
		}
		if businessflow.IsMonthlyBudgetInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Monthly budget must be positive", "MONTHLY_BUDGET_INVALID", nil)
		}

		log.Println("Plan selection failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Plan selection failed", "SELECT_PLAN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// DefineClasses handles the third wizard step
// @Summary Define Employee Classes
// @Description Replace the enrollment's employee class list
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param request body dto.EmployeeClassesRequest true "Employee classes"
// @Success 200 {object} dto.APIResponse{data=dto.EmployeeClassesResponse} "Employee classes stored"
// @Failure 400 {object} dto.APIResponse "Validation error or completed enrollment"
// @Failure 404 {object} dto.APIResponse "Enrollment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/enrollment/{id}/classes [put]
func (h *EnrollmentHandler) DefineClasses(c fiber.Ctx) error {
	enrollmentID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment ID", "INVALID_ID", nil)
	}

	var req dto.EmployeeClassesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.DefineClasses(h.createRequestContext(c), enrollmentID, &req)
	if err != nil {
		if businessflow.IsEnrollmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", "ENROLLMENT_NOT_FOUND", nil)
		}
		if businessflow.IsEnrollmentCompleted(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Enrollment is already completed", "ENROLLMENT_COMPLETED", nil)
		}
		if businessflow.IsNoEmployeeClasses(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one employee class is required", "NO_EMPLOYEE_CLASSES", nil)
		}

		log.Println("Defining employee classes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Defining employee classes failed", "DEFINE_CLASSES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// FinalizeEnrollment handles the last wizard step
// @Summary Finalize Enrollment
// @Description Complete the enrollment, optionally attaching notes
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param request body dto.FinalizeEnrollmentRequest true "Finalization data"
// @Success 200 {object} dto.APIResponse{data=dto.FinalizeEnrollmentResponse} "Enrollment completed"
// @Failure 400 {object} dto.APIResponse "No employee classes defined"
// @Failure 404 {object} dto.APIResponse "Enrollment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/enrollment/{id}/finalize [put]
func (h *EnrollmentHandler) FinalizeEnrollment(c fiber.Ctx) error {
	enrollmentID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment ID", "INVALID_ID", nil)
	}

	var req dto.FinalizeEnrollmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.flow.FinalizeEnrollment(h.createRequestContext(c), enrollmentID, &req)
	if err != nil {
		if businessflow.IsEnrollmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", "ENROLLMENT_NOT_FOUND", nil)
		}
		if businessflow.IsNoEmployeeClasses(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Employee classes must be defined before finalizing", "NO_EMPLOYEE_CLASSES", nil)
		}

		log.Println("Finalizing enrollment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Finalizing enrollment failed", "FINALIZE_ENROLLMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetBusiness returns a registered business
// @Summary Get Business
// @Tags Enrollment
// @Produce json
// @Param id path int true "Business ID"
// @Success 200 {object} dto.APIResponse{data=dto.BusinessDTO} "Business"
// @Failure 404 {object} dto.APIResponse "Business not found"
// @Router /api/business/{id} [get]
func (h *EnrollmentHandler) GetBusiness(c fiber.Ctx) error {
	businessID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid business ID", "INVALID_ID", nil)
	}

	result, err := h.flow.GetBusiness(h.createRequestContext(c), businessID)
	if err != nil {
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}
		log.Println("Business lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve business", "GET_BUSINESS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Business retrieved successfully", result)
}

// ListBusinessEnrollments returns all enrollments of a business, newest first
// @Summary List Business Enrollments
// @Tags Enrollment
// @Produce json
// @Param id path int true "Business ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.EnrollmentDTO} "Enrollments"
// @Failure 404 {object} dto.APIResponse "Business not found"
// @Router /api/business/{id}/enrollments [get]
func (h *EnrollmentHandler) ListBusinessEnrollments(c fiber.Ctx) error {
	businessID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid business ID", "INVALID_ID", nil)
	}

	result, err := h.flow.ListBusinessEnrollments(h.createRequestContext(c), businessID)
	if err != nil {
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}
		log.Println("Enrollment listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve enrollments", "LIST_ENROLLMENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Enrollments retrieved successfully", result)
}

// GetActiveEnrollment returns the most recent enrollment of a business
// @Summary Get Active Enrollment
// @Tags Enrollment
// @Produce json
// @Param id path int true "Business ID"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentDTO} "Enrollment"
// @Failure 404 {object} dto.APIResponse "Business or enrollment not found"
// @Router /api/business/{id}/enrollment [get]
func (h *EnrollmentHandler) GetActiveEnrollment(c fiber.Ctx) error {
	businessID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid business ID", "INVALID_ID", nil)
	}

	result, err := h.flow.ActiveEnrollment(h.createRequestContext(c), businessID)
	if err != nil {
		if businessflow.IsBusinessNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Business not found", "BUSINESS_NOT_FOUND", nil)
		}
		if businessflow.IsEnrollmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", "ENROLLMENT_NOT_FOUND", nil)
		}
		log.Println("Active enrollment lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve enrollment", "GET_ENROLLMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Enrollment retrieved successfully", result)
}

// GetEnrollment returns an enrollment with its plan and business
// @Summary Get Enrollment
// @Tags Enrollment
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} dto.APIResponse{data=dto.EnrollmentDTO} "Enrollment"
// @Failure 404 {object} dto.APIResponse "Enrollment not found"
// @Router /api/enrollment/{id} [get]
func (h *EnrollmentHandler) GetEnrollment(c fiber.Ctx) error {
	enrollmentID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment ID", "INVALID_ID", nil)
	}

	result, err := h.flow.GetEnrollment(h.createRequestContext(c), enrollmentID)
	if err != nil {
		if businessflow.IsEnrollmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", "ENROLLMENT_NOT_FOUND", nil)
		}
		log.Println("Enrollment lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve enrollment", "GET_ENROLLMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Enrollment retrieved successfully", result)
}

type requestContextKey string

const (
	requestIDKey  requestContextKey = "request_id"
	cancelFuncKey requestContextKey = "cancel_func"
)

// createRequestContext builds a request-scoped context carrying the
// request id; the cancel func rides along so late consumers can
// release the timer early.
func (h *EnrollmentHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, requestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, cancelFuncKey, context.CancelFunc(cancel))
	return ctx
}

func parseIDParam(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		return 0, err
	}
	return uint(id), nil
}
