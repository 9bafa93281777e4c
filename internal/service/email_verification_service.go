package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

// EmailVerificationStatus is the state of a user's verification challenge
// as exposed to the settings page.
type EmailVerificationStatus struct {
	Email                string     `json:"email"`
	EmailVerified        bool       `json:"email_verified"`
	CanSendCode          bool       `json:"can_send_code"`
	CooldownRemainingSec int        `json:"cooldown_remaining_sec"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	AttemptsLeft         int        `json:"attempts_left"`
}

// EmailVerificationService issues and checks one-time email codes. Codes
// are stored hashed and expire on their own.
type EmailVerificationService struct {
	userRepo     repository.UserRepository
	codes        repository.VerificationCodeRepository
	emailService EmailService
	codeTTL      time.Duration
	cooldown     time.Duration
	maxAttempts  int
	audit        audit.Logger
}

func NewEmailVerificationService(
	userRepo repository.UserRepository,
	codes repository.VerificationCodeRepository,
	emailService EmailService,
	auditLog audit.Logger,
) (*EmailVerificationService, error) {
	if userRepo == nil || codes == nil || emailService == nil || auditLog == nil {
		return nil, fmt.Errorf("all dependencies are required for EmailVerificationService")
	}
	return &EmailVerificationService{
		userRepo:     userRepo,
		codes:        codes,
		emailService: emailService,
		codeTTL:      15 * time.Minute,
		cooldown:     60 * time.Second,
		maxAttempts:  5,
		audit:        auditLog,
	}, nil
}

// SendCode generates a fresh code for the user's email and mails it.
// Nothing happens when the email is already verified. Resending inside
// the cooldown window is refused.
func (s *EmailVerificationService) SendCode(ctx context.Context, user *entity.User) error {
	if user.Email == "" {
		return fmt.Errorf("%w: account has no email", apperrors.ErrValidation)
	}
	if user.EmailVerified() {
		return nil
	}

	now := time.Now()
	if existing, err := s.codes.Get(ctx, user.ID); err == nil {
		if now.Before(existing.SentAt.Add(s.cooldown)) {
			return ErrVerificationCooldown
		}
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	code, err := generateVerificationCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	salt, err := generateRandomHex(16)
	if err != nil {
		return fmt.Errorf("failed to generate verification salt: %w", err)
	}

	record := repository.VerificationCode{
		Email:       user.Email,
		CodeHash:    hashVerificationCode(code, salt),
		CodeSalt:    salt,
		SentAt:      now,
		ExpiresAt:   now.Add(s.codeTTL),
		MaxAttempts: s.maxAttempts,
	}
	if err := s.codes.Save(ctx, user.ID, record, s.codeTTL); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	idempotencyKey := fmt.Sprintf("email-verify:%d:%d", user.ID, now.Unix())
	if err := s.emailService.SendVerificationCode(ctx, user.Email, code, idempotencyKey); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	s.audit.Log("verification code sent", map[string]interface{}{"user": user.Login})
	return nil
}

// ConfirmCode checks the submitted code and marks the email verified.
// The stored challenge must match the user's current email, so changing
// the address invalidates an in-flight code.
func (s *EmailVerificationService) ConfirmCode(ctx context.Context, user *entity.User, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty verification code", apperrors.ErrValidation)
	}
	if user.EmailVerified() {
		return nil
	}

	record, err := s.codes.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrInvalidVerificationCode
		}
		return err
	}

	now := time.Now()
	if record.Email != user.Email || now.After(record.ExpiresAt) {
		return ErrVerificationExpired
	}
	if record.Attempts >= record.MaxAttempts {
		return ErrVerificationAttempts
	}

	expected := hashVerificationCode(code, record.CodeSalt)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(record.CodeHash)) != 1 {
		record.Attempts++
		if saveErr := s.codes.Save(ctx, user.ID, *record, 0); saveErr != nil {
			return saveErr
		}
		if record.Attempts >= record.MaxAttempts {
			return ErrVerificationAttempts
		}
		return ErrInvalidVerificationCode
	}

	if err := s.codes.Delete(ctx, user.ID); err != nil {
		return err
	}
	verifiedAt := now
	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{
		"email_verified_at": &verifiedAt,
	}); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	user.EmailVerifiedAt = &verifiedAt

	s.audit.Log("email verified", map[string]interface{}{"user": user.Login})
	return nil
}

// Status reports the verification state for the settings page.
func (s *EmailVerificationService) Status(ctx context.Context, user *entity.User) (*EmailVerificationStatus, error) {
	status := &EmailVerificationStatus{
		Email:         user.Email,
		EmailVerified: user.EmailVerified(),
		CanSendCode:   user.Email != "" && !user.EmailVerified(),
		AttemptsLeft:  s.maxAttempts,
	}
	if !status.CanSendCode {
		status.AttemptsLeft = 0
		return status, nil
	}

	record, err := s.codes.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return status, nil
		}
		return nil, err
	}

	now := time.Now()
	if record.ExpiresAt.After(now) && record.Email == user.Email {
		exp := record.ExpiresAt
		status.ExpiresAt = &exp
		status.AttemptsLeft = record.MaxAttempts - record.Attempts
		if status.AttemptsLeft < 0 {
			status.AttemptsLeft = 0
		}
	}
	if remaining := int(record.SentAt.Add(s.cooldown).Sub(now).Seconds()); remaining > 0 {
		status.CanSendCode = false
		status.CooldownRemainingSec = remaining
	}
	return status, nil
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashVerificationCode(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}
