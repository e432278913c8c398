package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"school-service/internal/observability"
)

const wsRoutingKey = "ws_events.notifications"

// Publisher forwards connection lifecycle events to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

func newConnID() string {
	return uuid.NewString()
}

func publishWSEvent(ctx context.Context, publisher Publisher, info ConnInfo, event, reason string) {
	observability.IncWSEvent("notifications", event)
	if publisher == nil {
		return
	}

	envelope := observability.EventEnvelope{
		EventType:  "ws_events",
		EventName:  event,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:  info.RequestID,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "notifications",
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"role":    info.Role,
				"ip":      info.IP,
			},
		},
	}
	if err := publisher.Publish(ctx, wsRoutingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
	}
}
