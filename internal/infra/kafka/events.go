package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka. The notifications
// service consumes these topics to deliver email; publication happens after
// the primary transaction and never blocks the response path.
type EventPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
	logger   *zap.Logger
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID     string            `json:"event_id"`
	EventType   string            `json:"event_type"`
	PrincipalID string            `json:"principal_id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
	Payload     any               `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	// Stamp the active trace so the notifications consumer can join it.
	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(principalID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishPrincipalRegistered publishes auth.principal.registered events.
func (p *EventPublisher) PublishPrincipalRegistered(ctx context.Context, event domain.PrincipalRegisteredEvent) error {
	payload := struct {
		PrincipalID  string         `json:"principal_id"`
		Email        string         `json:"email"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID:  event.PrincipalID,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.principal.registered", event.PrincipalID, event.RegisteredAt, payload)
}

// PublishVerificationRequested publishes auth.verification.requested events.
func (p *EventPublisher) PublishVerificationRequested(ctx context.Context, event domain.VerificationRequestedEvent) error {
	payload := struct {
		PrincipalID     string         `json:"principal_id"`
		Email           string         `json:"email"`
		ActivationCode  string         `json:"activation_code"`
		ActivationToken string         `json:"activation_token"`
		Purpose         string         `json:"purpose"`
		RequestedAt     time.Time      `json:"requested_at"`
		ExpiresAt       time.Time      `json:"expires_at"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID:     event.PrincipalID,
		Email:           event.Email,
		ActivationCode:  event.ActivationCode,
		ActivationToken: event.ActivationToken,
		Purpose:         event.Purpose,
		RequestedAt:     event.RequestedAt.UTC(),
		ExpiresAt:       event.ExpiresAt.UTC(),
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.verification.requested", event.PrincipalID, event.RequestedAt, payload)
}

// PublishPasswordResetRequested publishes auth.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		Email       string         `json:"email"`
		ResetToken  string         `json:"reset_token"`
		RequestedAt time.Time      `json:"requested_at"`
		ExpiresAt   time.Time      `json:"expires_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Email:       event.Email,
		ResetToken:  event.ResetToken,
		RequestedAt: event.RequestedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.password.reset_requested", event.PrincipalID, event.RequestedAt, payload)
}

// PublishLoggedIn publishes auth.principal.logged_in events.
func (p *EventPublisher) PublishLoggedIn(ctx context.Context, event domain.LoggedInEvent) error {
	payload := struct {
		PrincipalID string         `json:"principal_id"`
		Email       string         `json:"email"`
		RememberMe  bool           `json:"remember_me"`
		TwoFactor   bool           `json:"two_factor"`
		LoggedInAt  time.Time      `json:"logged_in_at"`
		IPAddress   *string        `json:"ip_address,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		PrincipalID: event.PrincipalID,
		Email:       event.Email,
		RememberMe:  event.RememberMe,
		TwoFactor:   event.TwoFactor,
		LoggedInAt:  event.LoggedInAt.UTC(),
		IPAddress:   event.IPAddress,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "auth.principal.logged_in", event.PrincipalID, event.LoggedInAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
