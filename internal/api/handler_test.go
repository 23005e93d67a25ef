package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tr, err := tracker.New(state.NewMemoryStore(), tracker.Options{})
	require.NoError(t, err)
	return NewRouter(NewHandler(tr, nil, zap.NewNop()), zap.NewNop())
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestSubmitFeedbackInfersActionAndCity(t *testing.T) {
	r := setupRouter(t)

	w, body := do(t, r, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"case_id":       "mumbai_test_001",
		"project_id":    "proj-1",
		"user_feedback": "up",
		"input_case":    map[string]interface{}{"city": "Mumbai", "plot_size": 1000},
		"output_report": map[string]interface{}{"rules_applied": []string{"MUM-FSI-001", "MUM-LOS-002"}},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["feedback_id"])
	assert.Equal(t, float64(1), body["action"])

	summary := body["adaptation_summary"].(map[string]interface{})
	st := summary["state"].(map[string]interface{})
	assert.Equal(t, "mumbai", st["city"])
	assert.Equal(t, []interface{}{1.0, 1.05, 1.0}, st["action_weights"])
	assert.NotEmpty(t, summary["audit_trail"])
}

func TestSubmitFeedbackValidation(t *testing.T) {
	r := setupRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"case_id": "c", "user_feedback": "sideways", "city": "Pune",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(t, r, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"case_id": "c", "user_feedback": "approve",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "city")

	w, _ = do(t, r, http.MethodPost, "/api/v1/feedback", map[string]interface{}{"city": "Pune"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdjustConfidence(t *testing.T) {
	r := setupRouter(t)

	w, body := do(t, r, http.MethodPost, "/api/v1/confidence/adjust", map[string]interface{}{
		"base_confidence": 0.0, "city": "Jaipur",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0.0, body["adjusted_confidence"])
	assert.Equal(t, 1.0, body["multiplier"])
	assert.Contains(t, body["explanation"], "0 cases")

	w, _ = do(t, r, http.MethodPost, "/api/v1/confidence/adjust", map[string]interface{}{
		"base_confidence": 1.5, "city": "Jaipur",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/confidence/adjust", map[string]interface{}{"city": "Jaipur"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadEndpoints(t *testing.T) {
	r := setupRouter(t)
	for _, fb := range []string{"approve", "approve", "reject"} {
		w, _ := do(t, r, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
			"case_id": "pune_1", "city": "Pune", "user_feedback": fb, "action": 0,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := do(t, r, http.MethodGet, "/api/v1/feedback/case/pune_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["total"])

	w, body = do(t, r, http.MethodGet, "/api/v1/feedback/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["upvotes"])
	assert.Equal(t, float64(1), body["downvotes"])
	assert.Equal(t, float64(3), body["total_feedback"])

	w, body = do(t, r, http.MethodGet, "/api/v1/cities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])

	w, body = do(t, r, http.MethodGet, "/api/v1/cities/PUNE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Learning", body["status"])
	assert.Equal(t, 0.9, body["confidence_multiplier"])

	w, body = do(t, r, http.MethodGet, "/api/v1/cities/pune/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["feedback"], 3)

	w, body = do(t, r, http.MethodGet, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Warming Up", body["system_status"])
	assert.Equal(t, float64(3), body["total_feedback_count"])
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	w, body := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
