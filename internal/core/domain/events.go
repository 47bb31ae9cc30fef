package domain

import "time"

// LoginSucceededEvent is emitted after a successful credential check.
type LoginSucceededEvent struct {
	UserID    int64
	Email     string
	IP        string
	At        time.Time
	RequestID string
}

// LoginFailedEvent is emitted when credentials do not check out. The email is
// recorded as supplied; it may not belong to an existing user.
type LoginFailedEvent struct {
	Email     string
	Reason    string
	IP        string
	At        time.Time
	RequestID string
}

// TokensRefreshedEvent is emitted when a refresh token is exchanged for a new
// pair, whether by the refresh endpoint or mid-request by the auth middleware.
type TokensRefreshedEvent struct {
	UserID    int64
	Email     string
	At        time.Time
	RequestID string
}

// ImpersonationEvent records every impersonation attempt and its outcome,
// including the explicit skip reasons.
type ImpersonationEvent struct {
	ActorID   int64
	TargetID  int64
	Outcome   ImpersonationOutcome
	At        time.Time
	RequestID string
}

// UserMutatedEvent covers create/update/deactivate and grant changes on the
// identity store.
type UserMutatedEvent struct {
	UserID    int64
	Action    string
	ChangedBy int64
	At        time.Time
	RequestID string
}
