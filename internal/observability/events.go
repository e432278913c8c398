package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// EventEnvelope wraps domain events published to the broker.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	RequestID  string      `json:"request_id,omitempty"`
	Payload    interface{} `json:"payload"`
}

func NewEventEnvelope(ctx context.Context, name string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		EventType:  "domain_event",
		EventName:  name,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:  RequestIDFromContext(ctx),
		Payload:    payload,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// HeadersFromContext builds broker headers from the request id and active span on ctx.
func HeadersFromContext(ctx context.Context) map[string]string {
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	return BuildHeaders(RequestIDFromContext(ctx), traceID)
}
