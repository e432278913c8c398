package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-service/internal/mocks"
	"school-service/internal/services"
)

func TestComputeEndpoint(t *testing.T) {
	router := setupResultRouter(new(mocks.ResultRepositoryMock), withIdentity("s-1", services.RoleStudent), nil)

	cases := []struct {
		body string
		code int
		want string
	}{
		{`{"marks_obtained":85,"total_marks":100,"passing_marks":40}`, http.StatusOK, `{"percentage":85,"grade":"A","status":"Pass"}`},
		{`{"marks_obtained":38,"total_marks":100,"passing_marks":40}`, http.StatusOK, `{"percentage":38,"grade":"F","status":"Fail"}`},
		{`{"marks_obtained":40,"total_marks":100,"passing_marks":40}`, http.StatusOK, `{"percentage":40,"grade":"F","status":"Pass"}`},
		{`{"marks_obtained":0,"total_marks":100,"passing_marks":0}`, http.StatusOK, `{"percentage":0,"grade":"F","status":"Pass"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/compute", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, tc.code, rec.Code, tc.body)
		assert.JSONEq(t, tc.want, rec.Body.String())
	}
}

func TestComputeEndpointRejects(t *testing.T) {
	router := setupResultRouter(new(mocks.ResultRepositoryMock), withIdentity("s-1", services.RoleStudent), nil)

	for _, body := range []string{
		`{"marks_obtained":101,"total_marks":100,"passing_marks":40}`,
		`{"marks_obtained":-1,"total_marks":100,"passing_marks":40}`,
		`{"marks_obtained":1,"total_marks":0,"passing_marks":0}`,
		`{"marks_obtained":1,"total_marks":10,"passing_marks":11}`,
		`{"marks_obtained":"ten","total_marks":10,"passing_marks":5}`,
		`{"total_marks":10,"passing_marks":5}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/compute", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	router := setupResultRouter(new(mocks.ResultRepositoryMock), withIdentity("t-1", services.RoleTeacher), nil)

	body := `{"subjects":[{"subject_id":"math","marks_obtained":90,"total_marks":100,"passing_marks":40},{"subject_id":"eng","marks_obtained":30,"total_marks":100,"passing_marks":40}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/aggregate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overall_percentage":60`)
	assert.Contains(t, rec.Body.String(), `"overall_status":"Fail"`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/grades/aggregate", bytes.NewBufferString(`{"subjects":[]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
