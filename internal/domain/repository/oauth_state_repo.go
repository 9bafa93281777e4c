package repository

import (
	"context"
	"time"
)

// StagedTokens is a Discord token pair parked between a successful OAuth
// callback for an unknown identity and the account-creation step.
type StagedTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// OAuthStateRepository is the short-lived, session-scoped holding area for
// the Discord login flow: the anti-CSRF state nonce and staged token pairs
// pending registration. Entries expire on their own.
type OAuthStateRepository interface {
	// SaveState stores the state nonce for a browser session.
	SaveState(ctx context.Context, sessionID, state string, ttl time.Duration) error
	// ConsumeState returns the stored nonce and deletes it, so a state can
	// be validated at most once.
	ConsumeState(ctx context.Context, sessionID string) (string, error)

	SaveStagedTokens(ctx context.Context, sessionID string, tokens StagedTokens, ttl time.Duration) error
	GetStagedTokens(ctx context.Context, sessionID string) (*StagedTokens, error)
	DeleteStagedTokens(ctx context.Context, sessionID string) error
}
