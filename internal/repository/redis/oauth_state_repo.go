package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

const (
	stateKeyPrefix  = "discord:state:"
	stagedKeyPrefix = "discord:staged:"
)

// OAuthStateRepo stores the Discord login flow's short-lived values in
// Redis: the anti-CSRF state nonce and staged token pairs awaiting
// account creation. TTLs make the entries self-cleaning.
type OAuthStateRepo struct {
	client redis.UniversalClient
}

func NewOAuthStateRepo(client redis.UniversalClient) (*OAuthStateRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required for OAuthStateRepo")
	}
	return &OAuthStateRepo{client: client}, nil
}

// SaveState stores the state nonce for a browser session.
func (r *OAuthStateRepo) SaveState(ctx context.Context, sessionID, state string, ttl time.Duration) error {
	return r.client.Set(ctx, stateKeyPrefix+sessionID, state, ttl).Err()
}

// ConsumeState atomically reads and deletes the stored nonce, so a state
// value can be validated at most once.
func (r *OAuthStateRepo) ConsumeState(ctx context.Context, sessionID string) (string, error) {
	state, err := r.client.GetDel(ctx, stateKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return state, nil
}

// SaveStagedTokens parks a token pair between the OAuth callback and the
// account-creation step.
func (r *OAuthStateRepo) SaveStagedTokens(ctx context.Context, sessionID string, tokens repository.StagedTokens, ttl time.Duration) error {
	payload, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal staged tokens: %w", err)
	}
	return r.client.Set(ctx, stagedKeyPrefix+sessionID, payload, ttl).Err()
}

// GetStagedTokens returns the parked token pair, if any.
func (r *OAuthStateRepo) GetStagedTokens(ctx context.Context, sessionID string) (*repository.StagedTokens, error) {
	payload, err := r.client.Get(ctx, stagedKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staged tokens: %w", err)
	}

	var tokens repository.StagedTokens
	if err := json.Unmarshal([]byte(payload), &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal staged tokens: %w", err)
	}
	return &tokens, nil
}

// DeleteStagedTokens drops the parked token pair once consumed.
func (r *OAuthStateRepo) DeleteStagedTokens(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, stagedKeyPrefix+sessionID).Err()
}
