package repository

import (
	"context"
	"time"
)

// VerificationCode is an in-flight email verification challenge. The code
// itself is never stored, only its salted hash.
type VerificationCode struct {
	Email       string    `json:"email"`
	CodeHash    string    `json:"code_hash"`
	CodeSalt    string    `json:"code_salt"`
	SentAt      time.Time `json:"sent_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// VerificationCodeRepository stores at most one active challenge per user.
// Entries expire on their own.
type VerificationCodeRepository interface {
	// Save stores the challenge. A ttl <= 0 keeps the remaining expiry of
	// an existing entry, which is how attempt counters are bumped.
	Save(ctx context.Context, userID uint, code VerificationCode, ttl time.Duration) error
	Get(ctx context.Context, userID uint) (*VerificationCode, error)
	Delete(ctx context.Context, userID uint) error
}
