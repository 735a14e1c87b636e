// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	businessflow "github.com/coverbridge/ichra-enrollment/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PlanHandlerInterface defines the contract for plan catalog handlers
type PlanHandlerInterface interface {
	ListPlans(c fiber.Ctx) error
	GetPlan(c fiber.Ctx) error
}

// PlanHandler handles plan catalog HTTP requests
type PlanHandler struct {
	flow businessflow.EnrollmentFlow
}

// NewPlanHandler creates a new plan catalog handler
func NewPlanHandler(flow businessflow.EnrollmentFlow) *PlanHandler {
	return &PlanHandler{flow: flow}
}

func (h *PlanHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PlanHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListPlans returns the full plan catalog
// @Summary List Plans
// @Tags Plans
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.IchraPlanDTO} "Plan catalog"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/plans [get]
func (h *PlanHandler) ListPlans(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.flow.ListPlans(ctx)
	if err != nil {
		log.Println("Plan catalog listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve plans", "LIST_PLANS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Plans retrieved successfully", result)
}

// GetPlan returns a single catalog plan
// @Summary Get Plan
// @Tags Plans
// @Produce json
// @Param id path int true "Plan ID"
// @Success 200 {object} dto.APIResponse{data=dto.IchraPlanDTO} "Plan"
// @Failure 404 {object} dto.APIResponse "Plan not found"
// @Router /api/plans/{id} [get]
func (h *PlanHandler) GetPlan(c fiber.Ctx) error {
	planID, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", "INVALID_ID", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.flow.GetPlan(ctx, planID)
	if err != nil {
		if businessflow.IsPlanNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", "PLAN_NOT_FOUND", nil)
		}
		log.Println("Plan lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve plan", "GET_PLAN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Plan retrieved successfully", result)
}
