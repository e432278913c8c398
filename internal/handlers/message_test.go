package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"school-service/internal/middleware"
	"school-service/internal/mocks"
	"school-service/internal/models"
	"school-service/internal/repositories"
	"school-service/internal/services"
)

func withIdentity(userID, role string, studentIDs ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Set(middleware.StudentIDsKey, studentIDs)
		c.Next()
	}
}

func setupMessageRouter(repo *mocks.MessageRepositoryMock, directory *mocks.UserDirectoryMock, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	handler := NewMessageHandler(services.NewMessageService(repo, directory, nil, nil))
	r := gin.New()
	Routes{
		Messages: handler,
		Results:  NewResultHandler(services.NewResultService(new(mocks.ResultRepositoryMock), nil, nil), nil),
		Grading:  NewGradingHandler(),
		Auth:     withIdentity(userID, services.RoleTeacher),
	}.Register(r)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "t-1")

	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m *models.Message) bool {
		return m.SenderID == "t-1" && m.Subject == "PTA meeting" && len(m.Recipients) == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Message).ID = "6f1c2a56-3a43-4a40-9c3d-0b6a3b1f4a10"
	}).Return(nil).Once()

	body := bytes.NewBufferString(`{"recipient_ids":["p-1"],"subject":"PTA meeting","body":"Thursday at 4pm"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "6f1c2a56-3a43-4a40-9c3d-0b6a3b1f4a10", resp.ID)
	repo.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "t-1")

	cases := map[string]string{
		"no recipients":  `{"recipient_ids":[],"subject":"s","body":"b"}`,
		"blank subject":  `{"recipient_ids":["p-1"],"subject":"  ","body":"b"}`,
		"bad parent":     `{"recipient_ids":["p-1"],"subject":"s","body":"b","parent_message_id":"nope"}`,
		"only to myself": `{"recipient_ids":["t-1"],"subject":"s","body":"b"}`,
		"malformed":      `{`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewBufferString(payload))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendMessageFieldErrorsUseJSONNames(t *testing.T) {
	router := setupMessageRouter(new(mocks.MessageRepositoryMock), new(mocks.UserDirectoryMock), "t-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewBufferString(`{"recipient_ids":["p-1"],"subject":"","body":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "subject cannot be blank", resp.Fields["subject"])
}

func TestThreadEndpoint(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	directory := new(mocks.UserDirectoryMock)
	router := setupMessageRouter(repo, directory, "p-1")

	root := models.Message{ID: "m-1", SenderID: "t-1", Recipients: []models.Recipient{{UserID: "p-1"}}}
	repo.On("GetMessage", mock.Anything, "m-1").Return(root, nil).Twice()
	repo.On("ListThread", mock.Anything, "m-1").Return([]models.Message{root}, nil).Once()
	directory.On("BulkUsers", mock.Anything, []string{"t-1"}).Return([]models.UserProfile{{ID: "t-1", DisplayName: "Ms. Wanjiru", Role: "teacher"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/m-1/thread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.ThreadMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Ms. Wanjiru", resp.Messages[0].Sender.DisplayName)
	repo.AssertExpectations(t)
}

func TestThreadEndpointDirectoryDown(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	directory := new(mocks.UserDirectoryMock)
	router := setupMessageRouter(repo, directory, "t-1")

	root := models.Message{ID: "m-1", SenderID: "t-1"}
	repo.On("GetMessage", mock.Anything, "m-1").Return(root, nil).Twice()
	repo.On("ListThread", mock.Anything, "m-1").Return([]models.Message{root}, nil).Once()
	directory.On("BulkUsers", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable")).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/m-1/thread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMarkReadEndpoint(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "p-1")

	repo.On("MarkRead", mock.Anything, "m-1", "p-1", mock.Anything).Return(true, nil).Once()
	repo.On("MarkRead", mock.Anything, "m-1", "p-1", mock.Anything).Return(false, nil).Once()

	for _, want := range []string{`{"updated":true}`, `{"updated":false}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/m-1/read", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, want, rec.Body.String())
	}
	repo.AssertExpectations(t)
}

func TestMarkReadStorageDown(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "p-1")

	repo.On("MarkRead", mock.Anything, "m-1", "p-1", mock.Anything).Return(false, errors.New("dial tcp: refused")).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/m-1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAndDeleteMessageErrors(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "x-1")

	repo.On("GetMessage", mock.Anything, "m-9").Return(nil, repositories.ErrMessageNotFound).Once()
	repo.On("GetMessage", mock.Anything, "m-1").Return(models.Message{ID: "m-1", SenderID: "t-1"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/m-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/messages/m-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnreadCountEndpoint(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(repo, new(mocks.UserDirectoryMock), "p-1")

	repo.On("CountUnread", mock.Anything, "p-1").Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages/unread-count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":3}`, rec.Body.String())
}
