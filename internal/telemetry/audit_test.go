package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	events     []any
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.events = append(p.events, event)
	return nil
}

func TestAuditEmitterAction(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.school", "school-service", "test")
	emitter.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	emitter.Action(context.Background(), "result.published", "result r-1 published", "req-1", "teacher-1")

	require.Len(t, pub.events, 1)
	assert.Equal(t, "audit.school", pub.routingKey)
	envelope, ok := pub.events[0].(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "2024-05-01T12:00:00Z", envelope.OccurredAt)
	assert.Equal(t, "result.published", envelope.Payload.Action)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, "teacher-1", *envelope.UserID)
}

func TestAuditEmitterWithoutUser(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.school", "school-service", "test")

	emitter.Action(context.Background(), "grade.computed", "ok", "req-2", "")

	require.Len(t, pub.events, 1)
	assert.Nil(t, pub.events[0].(AuditEnvelope).UserID)
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Action(context.Background(), "result.created", "x", "req", "t-1")
	})
}
