package riskapi_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	testutils "github.com/ArchanaN2125/FinGuard-AI/tests"
)

func TestIngestTransaction_Success(t *testing.T) {
	// Arrange
	baseURL, stop := testutils.StartRiskAPIServer(t)
	defer stop()

	payload := map[string]interface{}{
		"transaction_id": uuid.New().String(),
		"user_id":        "user-123",
		"amount":         42.5,
		"merchant":       "GroceryMart",
		"location":       "Berlin,DE",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	// Act
	resp, err := testutils.PostRequest(t, baseURL+"/api/v1/transactions", payload)
	assert.NoError(t, err)

	// Assert response
	traceId := testutils.GetTraceId(resp)
	assert.NotEmpty(t, traceId)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Assert response body
	out, err := testutils.DecodeSuccess(resp.Body)
	assert.NoError(t, err)
	txnID, ok := out.Data["transaction_id"].(string)
	assert.True(t, ok)
	assert.Equal(t, payload["transaction_id"], txnID)
	assert.Equal(t, "queued", out.Data["status"])
}

func TestIngestTransaction_AssignsTransactionID(t *testing.T) {
	baseURL, stop := testutils.StartRiskAPIServer(t)
	defer stop()

	payload := map[string]interface{}{
		"user_id":   "user-456",
		"amount":    10.0,
		"merchant":  "CoffeeCo",
		"location":  "Paris,FR",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := testutils.PostRequest(t, baseURL+"/api/v1/transactions", payload)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	out, err := testutils.DecodeSuccess(resp.Body)
	assert.NoError(t, err)
	txnID, ok := out.Data["transaction_id"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, txnID)
	_, err = uuid.Parse(txnID)
	assert.NoError(t, err)
}

func TestIngestTransaction_MissingUserID(t *testing.T) {
	baseURL, stop := testutils.StartRiskAPIServer(t)
	defer stop()

	payload := map[string]interface{}{
		"amount":    25.0,
		"merchant":  "GroceryMart",
		"location":  "Berlin,DE",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := testutils.PostRequest(t, baseURL+"/api/v1/transactions", payload)
	assert.NoError(t, err)

	traceId := testutils.GetTraceId(resp)
	assert.NotEmpty(t, traceId)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)

	out, err := testutils.DecodeError(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "PIPELINE_VALIDATION", out.Code)
	assert.NotEmpty(t, out.Message)
}

func TestListTransactions_EmptyFeed(t *testing.T) {
	baseURL, stop := testutils.StartRiskAPIServer(t)
	defer stop()

	resp, err := testutils.GetRequest(t, baseURL+"/api/v1/transactions")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out, err := testutils.DecodeList(resp.Body)
	assert.NoError(t, err)
	assert.Empty(t, out.Data)
}

func TestGetUserRisk_UnknownUser(t *testing.T) {
	baseURL, stop := testutils.StartRiskAPIServer(t)
	defer stop()

	resp, err := testutils.GetRequest(t, fmt.Sprintf("%s/api/v1/users/%s/risk", baseURL, "nobody-here"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	out, err := testutils.DecodeError(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "APP_NOT_FOUND", out.Code)
}
