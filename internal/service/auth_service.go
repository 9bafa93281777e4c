package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

const (
	minLoginLen    = 3
	maxLoginLen    = 30
	minPasswordLen = 4
)

var reservedLogins = map[string]bool{
	"admin":         true,
	"root":          true,
	"administrator": true,
	"system":        true,
}

// AuthService handles password registration and login.
type AuthService struct {
	userRepo repository.UserRepository
	audit    audit.Logger
}

// NewAuthService creates the password authentication service.
func NewAuthService(userRepo repository.UserRepository, auditLog audit.Logger) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit logger is required for AuthService")
	}
	return &AuthService{userRepo: userRepo, audit: auditLog}, nil
}

// Register creates a new password-authenticated account.
func (s *AuthService) Register(login, password string) (*entity.User, error) {
	login = strings.TrimSpace(login)
	if err := validateLogin(login); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}
	if err := s.checkLoginAvailable(login, 0); err != nil {
		return nil, err
	}

	user := &entity.User{
		Login:        login,
		Password:     password,
		AvatarSource: entity.AvatarNone,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] user id=%d login=%s registered", user.ID, user.Login)
	s.audit.Log("user registered", map[string]interface{}{"user": user.Login})
	return user, nil
}

// Login checks the credentials and returns the user. The error is the
// same for an unknown login and a wrong password.
func (s *AuthService) Login(login, password string) (*entity.User, error) {
	user, err := s.userRepo.GetByLogin(strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{"last_seen": &now}); err != nil {
		log.Printf("[AuthService] failed to update last_seen for user id=%d: %v", user.ID, err)
	}
	return user, nil
}

// checkLoginAvailable returns ErrConflict when another account already
// uses the login. selfID exempts the user's own current login.
func (s *AuthService) checkLoginAvailable(login string, selfID uint) error {
	existing, err := s.userRepo.GetByLogin(login)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return fmt.Errorf("%w: login already taken", apperrors.ErrConflict)
}

// validateLogin enforces the login handle rules: 3-30 characters,
// alphanumeric plus '-' and '_', and not a reserved name.
func validateLogin(login string) error {
	if len(login) < minLoginLen || len(login) > maxLoginLen {
		return fmt.Errorf("%w: login must be between %d and %d characters", apperrors.ErrValidation, minLoginLen, maxLoginLen)
	}
	if reservedLogins[strings.ToLower(login)] {
		return fmt.Errorf("%w: login is reserved", apperrors.ErrValidation)
	}
	for _, r := range login {
		if r == '-' || r == '_' {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return fmt.Errorf("%w: login must be alphanumeric, '-' and '_' are the only special characters allowed", apperrors.ErrValidation)
	}
	return nil
}

// generateRandomHex returns byteLen random bytes hex-encoded.
func generateRandomHex(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 16
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
