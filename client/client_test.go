package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/ichra-enrollment/app/dto"
	"github.com/coverbridge/ichra-enrollment/client"
	testingutil "github.com/coverbridge/ichra-enrollment/testing"
)

func TestHTTPClientUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/plans", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dto.APIResponse{
			Success: true,
			Message: "Plans retrieved successfully",
			Data: []dto.IchraPlanDTO{
				{ID: 1, Name: "Basic ICHRA", MonthlyAmount: decimal.NewFromInt(300)},
			},
		})
	}))
	defer server.Close()

	api := client.NewHTTPClient(server.URL)
	plans, err := api.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Basic ICHRA", plans[0].Name)
	assert.True(t, plans[0].MonthlyAmount.Equal(decimal.NewFromInt(300)))
}

func TestHTTPClientPostsRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/business/register", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req dto.BusinessRegistrationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Email)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dto.APIResponse{
			Success: true,
			Message: "Business registered successfully",
			Data: dto.BusinessRegistrationResponse{
				Message:    "Business registered successfully",
				BusinessID: 7,
				UserID:     3,
			},
		})
	}))
	defer server.Close()

	api := client.NewHTTPClient(server.URL)
	req := testingutil.ValidRegistrationRequest()
	resp, err := api.RegisterBusiness(context.Background(), &req)
	require.NoError(t, err)
	assert.Equal(t, uint(7), resp.BusinessID)
	assert.Equal(t, uint(3), resp.UserID)
}

func TestHTTPClientErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(dto.APIResponse{
			Success: false,
			Message: "Plan not found",
			Error:   dto.ErrorDetail{Code: "PLAN_NOT_FOUND"},
		})
	}))
	defer server.Close()

	api := client.NewHTTPClient(server.URL)
	_, err := api.GetPlan(context.Background(), 999)
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Plan not found", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "status 404")
}

func TestHTTPClientUnsuccessfulEnvelopeWithOKStatus(t *testing.T) {
	// A 200 with success=false still surfaces as an error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dto.APIResponse{
			Success: false,
			Message: "Something went wrong",
		})
	}))
	defer server.Close()

	api := client.NewHTTPClient(server.URL)
	_, err := api.ListPlans(context.Background())
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestHTTPClientRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := client.NewHTTPClient(server.URL)
	_, err := api.ListPlans(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
