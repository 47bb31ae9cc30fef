package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/logger"
)

// StubPublisher logs audit events instead of sending them to Kafka. Used when
// no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	all := append([]zap.Field{
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
	}, fields...)
	p.logger.Info("Stub event published", all...)
}

func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logEvent("indicator.auth.login.succeeded", event.At,
		zap.Int64("user_id", event.UserID),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.logEvent("indicator.auth.login.failed", event.At,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("reason", event.Reason),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

func (p *StubPublisher) PublishTokensRefreshed(_ context.Context, event domain.TokensRefreshedEvent) error {
	p.logEvent("indicator.auth.tokens.refreshed", event.At,
		zap.Int64("user_id", event.UserID),
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

func (p *StubPublisher) PublishImpersonation(_ context.Context, event domain.ImpersonationEvent) error {
	p.logEvent("indicator.auth.impersonation", event.At,
		zap.Int64("actor_id", event.ActorID),
		zap.Int64("target_id", event.TargetID),
		zap.String("outcome", string(event.Outcome)),
	)
	return nil
}

func (p *StubPublisher) PublishUserMutated(_ context.Context, event domain.UserMutatedEvent) error {
	p.logEvent("indicator.users.mutated", event.At,
		zap.Int64("user_id", event.UserID),
		zap.String("action", event.Action),
		zap.Int64("changed_by", event.ChangedBy),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
