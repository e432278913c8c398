package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"school-service/internal/mocks"
	"school-service/internal/telemetry"
)

type staticCounter map[string]int

func (s staticCounter) Connections(userID string) int { return s[userID] }

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, staticCounter{}, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.school", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.Payload.Action == "debug.audit_test" && e.UserID == nil
	})).Return(nil).Once()

	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(publisher, "audit.school", "school-service", "test"), staticCounter{}, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}

func TestDebugConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, staticCounter{"p-1": 2}, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/connections/p-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID      string `json:"user_id"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p-1", body.UserID)
	assert.Equal(t, 2, body.Connections)
}
