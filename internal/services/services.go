package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"school-service/internal/models"
	"school-service/internal/observability"
)

var (
	ErrInvalidMessage       = errors.New("invalid message")
	ErrInvalidResult        = errors.New("invalid result")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)

// UserDirectory resolves user ids to display profiles.
type UserDirectory interface {
	BulkUsers(ctx context.Context, ids []string) ([]models.UserProfile, error)
}

// Notifier pushes realtime events to connected users.
type Notifier interface {
	NotifyUsers(userIDs []string, event models.NotificationEvent)
}

// EventPublisher publishes domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func publishEvent(ctx context.Context, publisher EventPublisher, routingKey, name string, payload any) {
	if publisher == nil {
		return
	}
	envelope := observability.NewEventEnvelope(ctx, name, payload)
	if err := publisher.Publish(ctx, routingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("event publish failed: routing_key=%s event=%s err=%v", routingKey, name, err)
	}
}
