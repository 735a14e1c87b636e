package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/coverbridge/ichra-enrollment/app/handlers"
	"github.com/coverbridge/ichra-enrollment/app/router"
	businessflow "github.com/coverbridge/ichra-enrollment/business_flow"
	"github.com/coverbridge/ichra-enrollment/config"
	"github.com/coverbridge/ichra-enrollment/repository"
	testingutil "github.com/coverbridge/ichra-enrollment/testing"
)

// testConfig mirrors the production defaults with the memory backend,
// rate limits high enough not to interfere, and the observability
// layers switched off.
func testConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Storage: config.StorageConfig{Backend: config.StorageBackendMemory},
		Server: config.ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
			BodyLimit:         1 * 1024 * 1024,
			EnableMetrics:     false,
			EnableCompression: false,
		},
		Security: config.SecurityConfig{
			AllowedOrigins:  []string{"https://coverbridge.io"},
			AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			GlobalRateLimit: 10000,
			RateLimitWindow: time.Minute,
			CSPPolicy:       "default-src 'self'",
			XFrameOptions:   "DENY",
			XSSProtection:   "0",
			BcryptCost:      bcrypt.MinCost,
		},
		Logging:    config.LoggingConfig{EnableAccessLog: false},
		Metrics:    config.MetricsConfig{Enabled: false},
		Deployment: config.DeploymentConfig{Version: "test"},
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := testConfig()
	store := repository.NewMemoryStore()
	users := repository.NewMemoryUserRepository(store)
	businesses := repository.NewMemoryBusinessRepository(store)
	plans := repository.NewMemoryIchraPlanRepository(store)
	enrollments := repository.NewMemoryEnrollmentRepository(store)

	ctx := testingutil.CreateTestContext()
	require.NoError(t, repository.SeedIchraPlans(ctx, plans))

	flow := businessflow.NewEnrollmentFlow(
		users, businesses, plans, enrollments,
		repository.NewMemoryTxManager(store),
		nil, 0, cfg.Security.BcryptCost,
	)

	r := router.NewFiberRouter(cfg, handlers.NewPlanHandler(flow), handlers.NewEnrollmentHandler(flow))
	r.SetupRoutes()
	return r.GetApp()
}

type errorDetail struct {
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *errorDetail    `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (int, apiEnvelope, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope), "response was not an API envelope: %s", raw)
	return resp.StatusCode, envelope, raw
}

func decodeData(t *testing.T, envelope apiEnvelope, out any) {
	t.Helper()
	require.NotNil(t, envelope.Data)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func registerTestBusiness(t *testing.T, app *fiber.App) dto.BusinessRegistrationResponse {
	t.Helper()

	status, envelope, _ := doRequest(t, app, http.MethodPost, "/api/business/register", testingutil.ValidRegistrationRequest())
	require.Equal(t, http.StatusCreated, status)
	require.True(t, envelope.Success)

	var resp dto.BusinessRegistrationResponse
	decodeData(t, envelope, &resp)
	require.NotZero(t, resp.BusinessID)
	return resp
}

func selectTestPlan(t *testing.T, app *fiber.App, businessID uint) dto.PlanSelectionResponse {
	t.Helper()

	path := fmt.Sprintf("/api/business/%d/plan", businessID)
	status, envelope, _ := doRequest(t, app, http.MethodPost, path, testingutil.ValidPlanSelectionRequest(2))
	require.Equal(t, http.StatusCreated, status)
	require.True(t, envelope.Success)

	var resp dto.PlanSelectionResponse
	decodeData(t, envelope, &resp)
	require.NotZero(t, resp.EnrollmentID)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, envelope, _ := doRequest(t, app, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Service is healthy", envelope.Message)
}

func TestPlanEndpoints(t *testing.T) {
	app := newTestApp(t)

	t.Run("ListPlans", func(t *testing.T) {
		status, envelope, raw := doRequest(t, app, http.MethodGet, "/api/plans", nil)
		require.Equal(t, http.StatusOK, status)
		require.True(t, envelope.Success)

		var plans []dto.IchraPlanDTO
		decodeData(t, envelope, &plans)
		require.Len(t, plans, 3)
		assert.Equal(t, "Basic ICHRA", plans[0].Name)
		assert.True(t, plans[0].MonthlyAmount.Equal(decimal.NewFromInt(300)))
		assert.True(t, plans[1].IsPopular)

		// Amounts travel as exact decimal strings
		assert.Contains(t, string(raw), `"monthlyAmount":"300"`)
	})

	t.Run("GetPlan", func(t *testing.T) {
		status, envelope, _ := doRequest(t, app, http.MethodGet, "/api/plans/2", nil)
		require.Equal(t, http.StatusOK, status)

		var plan dto.IchraPlanDTO
		decodeData(t, envelope, &plan)
		assert.Equal(t, "Standard ICHRA", plan.Name)
		assert.True(t, plan.AnnualAmount.Equal(decimal.NewFromInt(6000)))
	})

	t.Run("GetPlanNotFound", func(t *testing.T) {
		status, envelope, _ := doRequest(t, app, http.MethodGet, "/api/plans/999", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.False(t, envelope.Success)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "PLAN_NOT_FOUND", envelope.Error.Code)
	})

	t.Run("GetPlanInvalidID", func(t *testing.T) {
		status, envelope, _ := doRequest(t, app, http.MethodGet, "/api/plans/abc", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "INVALID_ID", envelope.Error.Code)
	})
}

func TestRegisterBusinessEndpoint(t *testing.T) {
	t.Run("SuccessfulRegistration", func(t *testing.T) {
		app := newTestApp(t)

		status, envelope, _ := doRequest(t, app, http.MethodPost, "/api/business/register", testingutil.ValidRegistrationRequest())
		require.Equal(t, http.StatusCreated, status)
		require.True(t, envelope.Success)

		var resp dto.BusinessRegistrationResponse
		decodeData(t, envelope, &resp)
		assert.NotZero(t, resp.BusinessID)
		assert.NotZero(t, resp.UserID)

		// The business is readable right away
		status, envelope, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/business/%d", resp.BusinessID), nil)
		require.Equal(t, http.StatusOK, status)

		var business dto.BusinessDTO
		decodeData(t, envelope, &business)
		assert.Equal(t, "registered", business.Status)
		assert.Equal(t, "12-3456789", business.TaxID)
	})

	t.Run("ValidationErrorsAreAggregated", func(t *testing.T) {
		app := newTestApp(t)

		req := testingutil.ValidRegistrationRequest()
		req.TaxID = "123456789" // missing dash
		req.Zip = "1234"
		req.Email = "not-an-email"
		req.TermsAccepted = false

		status, envelope, _ := doRequest(t, app, http.MethodPost, "/api/business/register", req)
		require.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)

		var details []string
		require.NoError(t, json.Unmarshal(envelope.Error.Details, &details))
		assert.Len(t, details, 4)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		app := newTestApp(t)

		req := httptest.NewRequest(http.MethodPost, "/api/business/register", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSelectPlanEndpoint(t *testing.T) {
	t.Run("SuccessfulSelection", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)
		selectTestPlan(t, app, business.BusinessID)
	})

	t.Run("BusinessNotFound", func(t *testing.T) {
		app := newTestApp(t)

		status, envelope, _ := doRequest(t, app, http.MethodPost, "/api/business/999/plan", testingutil.ValidPlanSelectionRequest(1))
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "BUSINESS_NOT_FOUND", envelope.Error.Code)
	})

	t.Run("PlanNotFound", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)

		path := fmt.Sprintf("/api/business/%d/plan", business.BusinessID)
		status, envelope, _ := doRequest(t, app, http.MethodPost, path, testingutil.ValidPlanSelectionRequest(999))
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "PLAN_NOT_FOUND", envelope.Error.Code)
	})

	t.Run("InvalidBusinessID", func(t *testing.T) {
		app := newTestApp(t)

		status, envelope, _ := doRequest(t, app, http.MethodPost, "/api/business/abc/plan", testingutil.ValidPlanSelectionRequest(1))
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "INVALID_ID", envelope.Error.Code)
	})

	t.Run("NonPositiveBudgetRejected", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)

		req := testingutil.ValidPlanSelectionRequest(1)
		req.MonthlyBudget = decimal.Zero

		path := fmt.Sprintf("/api/business/%d/plan", business.BusinessID)
		status, envelope, _ := doRequest(t, app, http.MethodPost, path, req)
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	})
}

func TestDefineClassesEndpoint(t *testing.T) {
	t.Run("SuccessfulDefinition", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)
		enrollment := selectTestPlan(t, app, business.BusinessID)

		path := fmt.Sprintf("/api/enrollment/%d/classes", enrollment.EnrollmentID)
		status, envelope, _ := doRequest(t, app, http.MethodPut, path, testingutil.ValidEmployeeClassesRequest())
		require.Equal(t, http.StatusOK, status)
		require.True(t, envelope.Success)

		// Business status mirrors the step
		status, envelope, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/business/%d", business.BusinessID), nil)
		require.Equal(t, http.StatusOK, status)
		var businessDTO dto.BusinessDTO
		decodeData(t, envelope, &businessDTO)
		assert.Equal(t, "classes_defined", businessDTO.Status)
	})

	t.Run("EmptyClassListFailsValidation", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)
		enrollment := selectTestPlan(t, app, business.BusinessID)

		path := fmt.Sprintf("/api/enrollment/%d/classes", enrollment.EnrollmentID)
		status, envelope, _ := doRequest(t, app, http.MethodPut, path, dto.EmployeeClassesRequest{})
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	})

	t.Run("EnrollmentNotFound", func(t *testing.T) {
		app := newTestApp(t)

		status, envelope, _ := doRequest(t, app, http.MethodPut, "/api/enrollment/999/classes", testingutil.ValidEmployeeClassesRequest())
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "ENROLLMENT_NOT_FOUND", envelope.Error.Code)
	})
}

func TestFinalizeEnrollmentEndpoint(t *testing.T) {
	t.Run("RequiresEmployeeClasses", func(t *testing.T) {
		app := newTestApp(t)
		business := registerTestBusiness(t, app)
		enrollment := selectTestPlan(t, app, business.BusinessID)

		path := fmt.Sprintf("/api/enrollment/%d/finalize", enrollment.EnrollmentID)
		status, envelope, _ := doRequest(t, app, http.MethodPut, path, dto.FinalizeEnrollmentRequest{})
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "NO_EMPLOYEE_CLASSES", envelope.Error.Code)
	})

	t.Run("EnrollmentNotFound", func(t *testing.T) {
		app := newTestApp(t)

		status, envelope, _ := doRequest(t, app, http.MethodPut, "/api/enrollment/999/finalize", dto.FinalizeEnrollmentRequest{})
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "ENROLLMENT_NOT_FOUND", envelope.Error.Code)
	})
}

func TestEnrollmentWizardOverHTTP(t *testing.T) {
	app := newTestApp(t)

	business := registerTestBusiness(t, app)
	enrollment := selectTestPlan(t, app, business.BusinessID)

	classesPath := fmt.Sprintf("/api/enrollment/%d/classes", enrollment.EnrollmentID)
	status, envelope, _ := doRequest(t, app, http.MethodPut, classesPath, testingutil.ValidEmployeeClassesRequest())
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)

	finalizePath := fmt.Sprintf("/api/enrollment/%d/finalize", enrollment.EnrollmentID)
	status, envelope, _ = doRequest(t, app, http.MethodPut, finalizePath, dto.FinalizeEnrollmentRequest{AdditionalNotes: "Start coverage on the 1st."})
	require.Equal(t, http.StatusOK, status)
	require.True(t, envelope.Success)

	// The enrollment view joins the plan and the business
	status, envelope, raw := doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/enrollment/%d", enrollment.EnrollmentID), nil)
	require.Equal(t, http.StatusOK, status)

	var result dto.EnrollmentDTO
	decodeData(t, envelope, &result)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "Start coverage on the 1st.", result.AdditionalNotes)
	assert.True(t, result.MonthlyBudget.Equal(decimal.RequireFromString("799.99")))
	require.Len(t, result.EmployeeClasses, 2)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "Standard ICHRA", result.Plan.Name)
	require.NotNil(t, result.Business)
	assert.Equal(t, "enrolled", result.Business.Status)
	assert.Contains(t, string(raw), `"monthlyBudget":"799.99"`)

	// The active enrollment endpoint resolves to the same record
	status, envelope, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/business/%d/enrollment", business.BusinessID), nil)
	require.Equal(t, http.StatusOK, status)
	var active dto.EnrollmentDTO
	decodeData(t, envelope, &active)
	assert.Equal(t, enrollment.EnrollmentID, active.ID)

	status, envelope, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/business/%d/enrollments", business.BusinessID), nil)
	require.Equal(t, http.StatusOK, status)
	var list []dto.EnrollmentDTO
	decodeData(t, envelope, &list)
	assert.Len(t, list, 1)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	app := newTestApp(t)

	status, envelope, _ := doRequest(t, app, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}
