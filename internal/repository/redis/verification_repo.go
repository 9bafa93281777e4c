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

const verificationKeyPrefix = "email:verify:"

// VerificationCodeRepo keeps email verification challenges in Redis, one
// per user, expiring with the code itself.
type VerificationCodeRepo struct {
	client redis.UniversalClient
}

func NewVerificationCodeRepo(client redis.UniversalClient) (*VerificationCodeRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required for VerificationCodeRepo")
	}
	return &VerificationCodeRepo{client: client}, nil
}

// Save stores the challenge. With ttl <= 0 the existing expiry is kept,
// which is how attempt counters are bumped without extending the code's
// lifetime.
func (r *VerificationCodeRepo) Save(ctx context.Context, userID uint, code repository.VerificationCode, ttl time.Duration) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}
	if ttl <= 0 {
		ttl = redis.KeepTTL
	}
	return r.client.Set(ctx, verificationKey(userID), payload, ttl).Err()
}

func (r *VerificationCodeRepo) Get(ctx context.Context, userID uint) (*repository.VerificationCode, error) {
	payload, err := r.client.Get(ctx, verificationKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}

	var code repository.VerificationCode
	if err := json.Unmarshal([]byte(payload), &code); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification code: %w", err)
	}
	return &code, nil
}

func (r *VerificationCodeRepo) Delete(ctx context.Context, userID uint) error {
	return r.client.Del(ctx, verificationKey(userID)).Err()
}

func verificationKey(userID uint) string {
	return fmt.Sprintf("%s%d", verificationKeyPrefix, userID)
}
