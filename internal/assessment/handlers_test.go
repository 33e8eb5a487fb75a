package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroward/damtwin/internal/auth"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(auth.CallerHeader, caller)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func submitBody(t *testing.T) map[string]any {
	return map[string]any{
		"sensorId":             "dam-north-01",
		"encryptedSeepage":     handle(t, "11").Hex(),
		"encryptedDeformation": handle(t, "22").Hex(),
		"encryptedPressure":    handle(t, "33").Hex(),
	}
}

func TestHandler_Submit(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := doJSON(t, r, http.MethodPost, "/v1/readings", operatorAddr, submitBody(t))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		RecordID int64 `json:"recordId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.RecordID)
}

func TestHandler_Submit_Unauthorized(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := doJSON(t, r, http.MethodPost, "/v1/readings", strangerAddr, submitBody(t))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/readings", "", submitBody(t))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_Submit_MalformedHandle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	body := submitBody(t)
	body["encryptedSeepage"] = "0x1234" // wrong length
	w := doJSON(t, r, http.MethodPost, "/v1/readings", operatorAddr, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestHandler_GetReading(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	id := f.submit(t)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/readings/%d", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dam-north-01")

	w = doJSON(t, r, http.MethodGet, "/v1/readings/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/readings/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AssessmentLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	id := f.submit(t)

	// Fresh assessment is readable and unassessed.
	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/readings/%d/assessment", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fresh struct {
		IsAssessed bool `json:"isAssessed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))
	assert.False(t, fresh.IsAssessed)

	// Request the assessment.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/readings/%d/assessment", id), operatorAddr, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted struct {
		RequestID string `json:"requestId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.RequestID)

	// Duplicate request while in flight.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/readings/%d/assessment", id), operatorAddr, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "request_in_flight")

	// Pending list shows the request.
	w = doJSON(t, r, http.MethodGet, "/v1/assessments/pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), accepted.RequestID)

	// Deliver the signed callback.
	score := handle(t, "55")
	flag := handle(t, "66")
	w = doJSON(t, r, http.MethodPost, "/v1/assessments/callback", "", map[string]any{
		"requestId":          accepted.RequestID,
		"encryptedRiskScore": score.Hex(),
		"warningFlag":        flag.Hex(),
		"warning":            true,
		"proof":              f.sign(t, accepted.RequestID, score, flag, true),
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Replay is rejected without revealing more than "unknown".
	w = doJSON(t, r, http.MethodPost, "/v1/assessments/callback", "", map[string]any{
		"requestId":          accepted.RequestID,
		"encryptedRiskScore": score.Hex(),
		"warningFlag":        flag.Hex(),
		"warning":            true,
		"proof":              f.sign(t, accepted.RequestID, score, flag, true),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_request")

	// The assessment is now terminal.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/v1/readings/%d/assessment", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var done struct {
		IsAssessed         bool   `json:"isAssessed"`
		EncryptedRiskScore string `json:"encryptedRiskScore"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	assert.True(t, done.IsAssessed)
	assert.Equal(t, score.Hex(), done.EncryptedRiskScore)

	// Re-requesting a terminal record conflicts.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/v1/readings/%d/assessment", id), operatorAddr, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_assessed")
}

func TestHandler_Callback_InvalidProof(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	id := f.submit(t)

	requestID, err := f.svc.RequestAssessment(context.Background(), operatorAddr, id)
	require.NoError(t, err)

	score := handle(t, "55")
	flag := handle(t, "66")
	w := doJSON(t, r, http.MethodPost, "/v1/assessments/callback", "", map[string]any{
		"requestId":          requestID,
		"encryptedRiskScore": score.Hex(),
		"warningFlag":        flag.Hex(),
		"warning":            false,
		"proof":              "0xdeadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_proof")
}

func TestHandler_Callback_MissingFields(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)

	w := doJSON(t, r, http.MethodPost, "/v1/assessments/callback", "", map[string]any{
		"requestId": "req_x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
