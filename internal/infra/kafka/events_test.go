package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 4),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "auth",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "auth-platform",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func TestPublishVerificationRequested(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	requestedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := domain.VerificationRequestedEvent{
		EventID:         "event-123",
		PrincipalID:     "user-456",
		Email:           "user@example.com",
		ActivationCode:  "123456",
		ActivationToken: "signed-token",
		Purpose:         "activation",
		RequestedAt:     requestedAt,
		ExpiresAt:       requestedAt.Add(10 * time.Minute),
	}

	if err := publisher.PublishVerificationRequested(context.Background(), event); err != nil {
		t.Fatalf("PublishVerificationRequested: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "auth.verification.requested" {
			t.Fatalf("topic = %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			t.Fatalf("Key.Encode: %v", err)
		}
		if string(key) != "user-456" {
			t.Fatalf("key = %s, want user-456", key)
		}

		value, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode: %v", err)
		}

		var envelope struct {
			EventID   string `json:"event_id"`
			EventType string `json:"event_type"`
			Version   string `json:"version"`
			Payload   struct {
				ActivationCode  string `json:"activation_code"`
				ActivationToken string `json:"activation_token"`
				Purpose         string `json:"purpose"`
			} `json:"payload"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.EventID != "event-123" {
			t.Fatalf("event id = %s", envelope.EventID)
		}
		if envelope.EventType != "auth.verification.requested" {
			t.Fatalf("event type = %s", envelope.EventType)
		}
		if envelope.Version != "1.0" {
			t.Fatalf("version = %s", envelope.Version)
		}
		if envelope.Payload.ActivationCode != "123456" || envelope.Payload.ActivationToken != "signed-token" {
			t.Fatalf("payload artifacts = %+v", envelope.Payload)
		}
		if envelope.Payload.Purpose != "activation" {
			t.Fatalf("payload purpose = %s", envelope.Payload.Purpose)
		}
		if envelope.Metadata["service"] != "auth-platform" || envelope.Metadata["environment"] != "test" {
			t.Fatalf("metadata = %v", envelope.Metadata)
		}
	default:
		t.Fatal("no message produced")
	}
}

func TestPublishLoggedInGeneratesEventID(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.LoggedInEvent{
		PrincipalID: "user-456",
		Email:       "user@example.com",
		RememberMe:  true,
		LoggedInAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishLoggedIn(context.Background(), event); err != nil {
		t.Fatalf("PublishLoggedIn: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "auth.principal.logged_in" {
			t.Fatalf("topic = %s", msg.Topic)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode: %v", err)
		}
		var envelope struct {
			EventID string `json:"event_id"`
			Payload struct {
				RememberMe bool `json:"remember_me"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.EventID == "" {
			t.Fatal("event id was not generated")
		}
		if !envelope.Payload.RememberMe {
			t.Fatal("remember-me flag lost")
		}
	default:
		t.Fatal("no message produced")
	}
}

func TestPublishHonorsContextCancellation(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	// Fill the input buffer so the next publish must block.
	for i := 0; i < cap(asyncProducer.input); i++ {
		asyncProducer.input <- &sarama.ProducerMessage{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishPrincipalRegistered(ctx, domain.PrincipalRegisteredEvent{
		PrincipalID:  "user-456",
		Email:        "user@example.com",
		RegisteredAt: time.Now(),
	})
	if err == nil {
		t.Fatal("expected context error when producer is saturated")
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "auth"}}

	if got := producer.TopicName("auth.principal.registered"); got != "auth.principal.registered" {
		t.Fatalf("already-prefixed topic = %s", got)
	}
	if got := producer.TopicName("principal.registered"); got != "auth.principal.registered" {
		t.Fatalf("prefixed topic = %s", got)
	}

	bare := &Producer{cfg: config.KafkaSettings{}}
	if got := bare.TopicName("principal.registered"); got != "principal.registered" {
		t.Fatalf("unprefixed topic = %s", got)
	}
}

func TestPublishStampsTraceContext(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	err := publisher.PublishPrincipalRegistered(ctx, domain.PrincipalRegisteredEvent{
		PrincipalID:  "user-456",
		Email:        "user@example.com",
		RegisteredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PublishPrincipalRegistered: %v", err)
	}

	msg := <-asyncProducer.input
	value, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode: %v", err)
	}
	var envelope struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Metadata["trace_id"] != traceID.String() {
		t.Fatalf("trace_id = %q, want %s", envelope.Metadata["trace_id"], traceID)
	}
}

func TestProducerCloseWaitsForErrorHandler(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg:      config.KafkaSettings{TopicPrefix: "auth"},
		errChan:  make(chan error, 1),
		done:     make(chan struct{}),
	}
	producer.wg.Add(1)
	go producer.handleErrors()

	asyncProducer.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{Topic: "auth.principal.registered"},
		Err: sarama.ErrOutOfBrokers,
	}

	select {
	case err := <-producer.Errors():
		if err == nil {
			t.Fatal("nil error forwarded")
		}
	case <-time.After(time.Second):
		t.Fatal("producer error never forwarded")
	}

	if err := producer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The forwarding goroutine has exited, so the error channel is closed.
	if _, open := <-producer.Errors(); open {
		t.Fatal("error channel still open after Close")
	}
}
