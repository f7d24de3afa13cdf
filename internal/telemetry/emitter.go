package telemetry

import (
	"context"
	"log"
	"time"

	"support-chat/internal/observability"
)

// Publisher publishes domain events to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Emitter wraps a Publisher with the service event envelope. A nil Emitter or
// nil publisher is a no-op, so call sites never have to guard.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
}

// Envelope is the wire format published to the events exchange.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	Payload       any    `json:"payload"`
}

// ChatAssignedPayload accompanies chat.assigned events.
type ChatAssignedPayload struct {
	ChatID     int64 `json:"chat_id"`
	OperatorID int64 `json:"operator_id"`
}

// ChatClosedPayload accompanies chat.closed events.
type ChatClosedPayload struct {
	ChatID     int64 `json:"chat_id"`
	OperatorID int64 `json:"operator_id"`
}

// MessageFailedPayload accompanies message.failed events.
type MessageFailedPayload struct {
	MessageID  int64 `json:"message_id"`
	ChatID     int64 `json:"chat_id"`
	RetryCount int   `json:"retry_count"`
}

// NewEmitter builds an Emitter.
func NewEmitter(publisher Publisher, service, environment string) *Emitter {
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// Emit publishes the payload wrapped in the service envelope. Publish
// failures are logged and counted, never surfaced to the caller.
func (e *Emitter) Emit(ctx context.Context, eventType string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, eventType, envelope); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("telemetry publish failed event_type=%s: %v", eventType, err)
	}
}
