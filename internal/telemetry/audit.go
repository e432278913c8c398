package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter logs audit lines and forwards them to the event exchange.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Action records a state-changing action such as a result being published.
// A nil emitter drops the entry.
func (e *AuditEmitter) Action(ctx context.Context, action, text, requestID, userID string) {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	e.emit(ctx, AuditPayload{Level: "INFO", Action: action, Text: text}, requestID, uid)
}

func (e *AuditEmitter) emit(ctx context.Context, payload AuditPayload, requestID string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	user := ""
	if userID != nil {
		user = *userID
	}
	log.Printf("audit emit: level=%s action=%s request_id=%s user_id=%s text=%q", payload.Level, payload.Action, requestID, user, payload.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
