package service

import "errors"

// Flow-specific errors used by handlers for stable error_type mapping.
var (
	ErrInvalidCredentials      = errors.New("invalid_credentials")
	ErrRegistrationRequired    = errors.New("registration_required")
	ErrStateMismatch           = errors.New("oauth_state_mismatch")
	ErrPasswordRequired        = errors.New("password_required")
	ErrDiscordRequired         = errors.New("discord_link_required")
	ErrUnsupportedAvatarFormat = errors.New("unsupported_avatar_format")
	ErrInvalidVerificationCode = errors.New("invalid_verification_code")
	ErrVerificationExpired     = errors.New("verification_expired")
	ErrVerificationCooldown    = errors.New("verification_resend_cooldown")
	ErrVerificationAttempts    = errors.New("verification_attempts_exceeded")
)
