package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"school-service/internal/models"
	"school-service/internal/observability"
	"school-service/internal/rabbitmq"
	"school-service/internal/repositories"
	"school-service/internal/services"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListThread(ctx context.Context, rootID string) ([]models.Message, error) {
	args := m.Called(ctx, rootID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListInbox(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListSent(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountUnread(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID string, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID string, userID string, at time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, userID, at)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ResultRepositoryMock struct {
	mock.Mock
}

func (m *ResultRepositoryMock) CreateResult(ctx context.Context, result *models.Result) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *ResultRepositoryMock) GetResult(ctx context.Context, resultID string) (models.Result, error) {
	args := m.Called(ctx, resultID)
	var result models.Result
	if val := args.Get(0); val != nil {
		result = val.(models.Result)
	}
	return result, args.Error(1)
}

func (m *ResultRepositoryMock) FindBySubmission(ctx context.Context, submissionID string) (models.Result, error) {
	args := m.Called(ctx, submissionID)
	var result models.Result
	if val := args.Get(0); val != nil {
		result = val.(models.Result)
	}
	return result, args.Error(1)
}

func (m *ResultRepositoryMock) ListResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	args := m.Called(ctx, filter)
	var results []models.Result
	if val := args.Get(0); val != nil {
		results = val.([]models.Result)
	}
	return results, args.Error(1)
}

func (m *ResultRepositoryMock) UpdateMarks(ctx context.Context, result *models.Result, expected models.ResultStatus) error {
	args := m.Called(ctx, result, expected)
	return args.Error(0)
}

func (m *ResultRepositoryMock) UpdateStatus(ctx context.Context, resultID string, from, to models.ResultStatus) (models.Result, error) {
	args := m.Called(ctx, resultID, from, to)
	var result models.Result
	if val := args.Get(0); val != nil {
		result = val.(models.Result)
	}
	return result, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) BulkUsers(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	args := m.Called(ctx, ids)
	var users []models.UserProfile
	if val := args.Get(0); val != nil {
		users = val.([]models.UserProfile)
	}
	return users, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyUsers(userIDs []string, event models.NotificationEvent) {
	m.Called(userIDs, event)
}

// PublisherMock stands in for the broker publisher in service and handler tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Envelopes returns the domain event envelopes published under routingKey.
func (m *PublisherMock) Envelopes(routingKey string) []observability.EventEnvelope {
	var out []observability.EventEnvelope
	for _, call := range m.Calls {
		if call.Method != "Publish" || call.Arguments.String(1) != routingKey {
			continue
		}
		if env, ok := call.Arguments.Get(2).(observability.EventEnvelope); ok {
			out = append(out, env)
		}
	}
	return out
}

var (
	_ rabbitmq.Publisher             = (*PublisherMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.ResultRepository  = (*ResultRepositoryMock)(nil)
	_ services.UserDirectory         = (*UserDirectoryMock)(nil)
	_ services.Notifier              = (*NotifierMock)(nil)
	_ services.EventPublisher        = (*PublisherMock)(nil)
)
