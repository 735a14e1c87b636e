// Package client provides a typed Go client for the enrollment API and
// the wizard sequencer built on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/coverbridge/ichra-enrollment/app/dto"
)

const defaultAPIDomain = "http://localhost:8080"

// EnrollmentAPI is the surface the wizard drives. The HTTP client below
// implements it against a running server; tests may back it with the
// business flow directly.
type EnrollmentAPI interface {
	ListPlans(ctx context.Context) ([]dto.IchraPlanDTO, error)
	GetPlan(ctx context.Context, planID uint) (*dto.IchraPlanDTO, error)
	RegisterBusiness(ctx context.Context, req *dto.BusinessRegistrationRequest) (*dto.BusinessRegistrationResponse, error)
	SelectPlan(ctx context.Context, businessID uint, req *dto.PlanSelectionRequest) (*dto.PlanSelectionResponse, error)
	DefineClasses(ctx context.Context, enrollmentID uint, req *dto.EmployeeClassesRequest) (*dto.EmployeeClassesResponse, error)
	FinalizeEnrollment(ctx context.Context, enrollmentID uint, req *dto.FinalizeEnrollmentRequest) (*dto.FinalizeEnrollmentResponse, error)
	GetEnrollment(ctx context.Context, enrollmentID uint) (*dto.EnrollmentDTO, error)
}

type httpEnrollmentClient struct {
	apiDomain string
	client    *http.Client
}

// NewHTTPClient creates an EnrollmentAPI backed by the HTTP API at apiDomain.
func NewHTTPClient(apiDomain string) EnrollmentAPI {
	if apiDomain == "" {
		apiDomain = defaultAPIDomain
	}
	return &httpEnrollmentClient{
		apiDomain: apiDomain,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *httpEnrollmentClient) ListPlans(ctx context.Context) ([]dto.IchraPlanDTO, error) {
	var out []dto.IchraPlanDTO
	if err := c.do(ctx, http.MethodGet, "/api/plans", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpEnrollmentClient) GetPlan(ctx context.Context, planID uint) (*dto.IchraPlanDTO, error) {
	var out dto.IchraPlanDTO
	if err := c.do(ctx, http.MethodGet, "/api/plans/"+formatID(planID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpEnrollmentClient) RegisterBusiness(ctx context.Context, req *dto.BusinessRegistrationRequest) (*dto.BusinessRegistrationResponse, error) {
	var out dto.BusinessRegistrationResponse
	if err := c.do(ctx, http.MethodPost, "/api/business/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpEnrollmentClient) SelectPlan(ctx context.Context, businessID uint, req *dto.PlanSelectionRequest) (*dto.PlanSelectionResponse, error) {
	var out dto.PlanSelectionResponse
	if err := c.do(ctx, http.MethodPost, "/api/business/"+formatID(businessID)+"/plan", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpEnrollmentClient) DefineClasses(ctx context.Context, enrollmentID uint, req *dto.EmployeeClassesRequest) (*dto.EmployeeClassesResponse, error) {
	var out dto.EmployeeClassesResponse
	if err := c.do(ctx, http.MethodPut, "/api/enrollment/"+formatID(enrollmentID)+"/classes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpEnrollmentClient) FinalizeEnrollment(ctx context.Context, enrollmentID uint, req *dto.FinalizeEnrollmentRequest) (*dto.FinalizeEnrollmentResponse, error) {
	var out dto.FinalizeEnrollmentResponse
	if err := c.do(ctx, http.MethodPut, "/api/enrollment/"+formatID(enrollmentID)+"/finalize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpEnrollmentClient) GetEnrollment(ctx context.Context, enrollmentID uint) (*dto.EnrollmentDTO, error) {
	var out dto.EnrollmentDTO
	if err := c.do(ctx, http.MethodGet, "/api/enrollment/"+formatID(enrollmentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues a request and unwraps the response envelope into out.
func (c *httpEnrollmentClient) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiDomain+path, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp dto.APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("failed to decode JSON into APIResponse: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !apiResp.Success {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiResp.Message,
			Detail:     apiResp.Error,
		}
	}

	if out == nil || apiResp.Data == nil {
		return nil
	}

	dataBytes, err := json.Marshal(apiResp.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal APIResponse data: %w", err)
	}
	if err := json.Unmarshal(dataBytes, out); err != nil {
		return fmt.Errorf("failed to decode APIResponse data: %w", err)
	}
	return nil
}

// APIError is a non-2xx or unsuccessful envelope response.
type APIError struct {
	StatusCode int
	Message    string
	Detail     any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
