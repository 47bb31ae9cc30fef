package port

import (
	"context"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

// EventPublisher emits audit events. Publishing is best effort: failures are
// logged by implementations and never fail the originating request.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishTokensRefreshed(ctx context.Context, event domain.TokensRefreshedEvent) error
	PublishImpersonation(ctx context.Context, event domain.ImpersonationEvent) error
	PublishUserMutated(ctx context.Context, event domain.UserMutatedEvent) error
}
