package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed audit event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventType, userID, requestID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if requestID != "" {
		metadata["request_id"] = requestID
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes indicator.auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		UserID  int64     `json:"user_id"`
		Email   string    `json:"email"`
		IP      string    `json:"ip,omitempty"`
		LoginAt time.Time `json:"login_at"`
	}{
		UserID:  event.UserID,
		Email:   event.Email,
		IP:      event.IP,
		LoginAt: event.At.UTC(),
	}

	return p.publish(ctx, "indicator.auth.login.succeeded", formatID(event.UserID), event.RequestID, event.At, payload)
}

// PublishLoginFailed publishes indicator.auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		Email    string    `json:"email"`
		Reason   string    `json:"reason"`
		IP       string    `json:"ip,omitempty"`
		FailedAt time.Time `json:"failed_at"`
	}{
		Email:    event.Email,
		Reason:   event.Reason,
		IP:       event.IP,
		FailedAt: event.At.UTC(),
	}

	return p.publish(ctx, "indicator.auth.login.failed", "", event.RequestID, event.At, payload)
}

// PublishTokensRefreshed publishes indicator.auth.tokens.refreshed events.
func (p *EventPublisher) PublishTokensRefreshed(ctx context.Context, event domain.TokensRefreshedEvent) error {
	payload := struct {
		UserID      int64     `json:"user_id"`
		Email       string    `json:"email"`
		RefreshedAt time.Time `json:"refreshed_at"`
	}{
		UserID:      event.UserID,
		Email:       event.Email,
		RefreshedAt: event.At.UTC(),
	}

	return p.publish(ctx, "indicator.auth.tokens.refreshed", formatID(event.UserID), event.RequestID, event.At, payload)
}

// PublishImpersonation publishes indicator.auth.impersonation events.
func (p *EventPublisher) PublishImpersonation(ctx context.Context, event domain.ImpersonationEvent) error {
	payload := struct {
		ActorID     int64     `json:"actor_id"`
		TargetID    int64     `json:"target_id"`
		Outcome     string    `json:"outcome"`
		AttemptedAt time.Time `json:"attempted_at"`
	}{
		ActorID:     event.ActorID,
		TargetID:    event.TargetID,
		Outcome:     string(event.Outcome),
		AttemptedAt: event.At.UTC(),
	}

	return p.publish(ctx, "indicator.auth.impersonation", formatID(event.ActorID), event.RequestID, event.At, payload)
}

// PublishUserMutated publishes indicator.users.mutated events.
func (p *EventPublisher) PublishUserMutated(ctx context.Context, event domain.UserMutatedEvent) error {
	payload := struct {
		UserID    int64     `json:"user_id"`
		Action    string    `json:"action"`
		ChangedBy int64     `json:"changed_by"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Action:    event.Action,
		ChangedBy: event.ChangedBy,
		ChangedAt: event.At.UTC(),
	}

	return p.publish(ctx, "indicator.users.mutated", formatID(event.UserID), event.RequestID, event.At, payload)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
