package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

const (
	stateTTL  = 10 * time.Minute
	stagedTTL = 15 * time.Minute
)

// DiscordAuthService runs the OAuth login flow: authorization redirect,
// callback validation, account matching, linking and unlinking.
type DiscordAuthService struct {
	userRepo   repository.UserRepository
	stateRepo  repository.OAuthStateRepository
	exchanger  TokenExchanger
	apiFactory APIFactory
	avatars    *AvatarService
	avatarSize int
	audit      audit.Logger
}

// NewDiscordAuthService creates the Discord authentication service.
// avatarSize is the CDN image size stored on registration; it must match
// the size the avatar sync uses or every sweep rewrites fresh accounts.
func NewDiscordAuthService(
	userRepo repository.UserRepository,
	stateRepo repository.OAuthStateRepository,
	exchanger TokenExchanger,
	apiFactory APIFactory,
	avatars *AvatarService,
	avatarSize int,
	auditLog audit.Logger,
) (*DiscordAuthService, error) {
	if userRepo == nil || stateRepo == nil || exchanger == nil || avatars == nil || auditLog == nil {
		return nil, fmt.Errorf("all dependencies are required for DiscordAuthService")
	}
	if apiFactory == nil {
		apiFactory = DefaultAPIFactory
	}
	if avatarSize <= 0 {
		avatarSize = 128
	}
	return &DiscordAuthService{
		userRepo:   userRepo,
		stateRepo:  stateRepo,
		exchanger:  exchanger,
		apiFactory: apiFactory,
		avatars:    avatars,
		avatarSize: avatarSize,
		audit:      auditLog,
	}, nil
}

// BeginLogin generates a state nonce, stores it against the browser
// session and returns the Discord authorization URL to redirect to.
func (s *DiscordAuthService) BeginLogin(ctx context.Context, sessionID string) (string, error) {
	state, err := generateRandomHex(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	if err := s.stateRepo.SaveState(ctx, sessionID, state, stateTTL); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	return s.exchanger.AuthorizationURL(state), nil
}

// HandleCallback validates the state, exchanges the code and resolves
// the Discord identity to a local account. When no account matches, the
// tokens are staged for CompleteRegistration and ErrRegistrationRequired
// is returned along with the identity for prefilling the form.
func (s *DiscordAuthService) HandleCallback(ctx context.Context, sessionID, state, code string) (*entity.User, *discord.User, error) {
	stored, err := s.stateRepo.ConsumeState(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, ErrStateMismatch
		}
		return nil, nil, err
	}
	if state == "" || stored != state {
		s.audit.Log("discord oauth state mismatch", map[string]interface{}{"session": sessionID})
		return nil, nil, ErrStateMismatch
	}

	tokens, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("code exchange failed: %w", err)
	}

	api, err := s.apiFactory(tokens.AccessToken, discord.TokenUser)
	if err != nil {
		return nil, nil, err
	}
	identity, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch discord identity: %w", err)
	}

	user, err := s.matchAccount(identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			staged := repository.StagedTokens{
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
			}
			if saveErr := s.stateRepo.SaveStagedTokens(ctx, sessionID, staged, stagedTTL); saveErr != nil {
				return nil, nil, saveErr
			}
			return nil, identity, ErrRegistrationRequired
		}
		return nil, nil, err
	}

	if err := s.completeLink(user, identity, tokens); err != nil {
		return nil, nil, err
	}
	s.audit.Log("discord login", map[string]interface{}{
		"user":       user.Login,
		"discord_id": identity.ID,
	})
	return user, identity, nil
}

// matchAccount finds the local account for a Discord identity: first by
// the stored Discord ID, then by email. The email fallback only applies
// when Discord reports the address as verified, so an attacker cannot
// take over an account by registering its email unverified on Discord.
func (s *DiscordAuthService) matchAccount(identity *discord.User) (*entity.User, error) {
	user, err := s.userRepo.GetByDiscordID(identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	email := normalizeEmail(identity.Email)
	if email == "" || !identity.Verified {
		return nil, apperrors.ErrNotFound
	}
	return s.userRepo.GetByEmail(email)
}

// normalizeEmail puts an address into the canonical form stored on
// accounts, so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// completeLink persists the Discord linkage and fresh tokens on the
// account. Runs on every successful login so tokens stay current.
func (s *DiscordAuthService) completeLink(user *entity.User, identity *discord.User, tokens *discord.TokenPair) error {
	now := time.Now()
	fields := map[string]interface{}{
		"discord_id":            identity.ID,
		"discord_access_token":  tokens.AccessToken,
		"discord_refresh_token": tokens.RefreshToken,
		"last_seen":             &now,
	}
	if err := s.userRepo.UpdateProfile(user.ID, fields); err != nil {
		return fmt.Errorf("failed to persist discord linkage: %w", err)
	}
	user.DiscordID = identity.ID
	user.DiscordAccessToken = tokens.AccessToken
	user.DiscordRefreshToken = tokens.RefreshToken
	user.LastSeen = &now
	return nil
}

// CompleteRegistration creates a new account from a staged Discord
// identity. useAvatar switches the fresh account straight to the
// Discord avatar.
func (s *DiscordAuthService) CompleteRegistration(ctx context.Context, sessionID, login string, useAvatar bool) (*entity.User, error) {
	staged, err := s.stateRepo.GetStagedTokens(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrStateMismatch
		}
		return nil, err
	}

	api, err := s.apiFactory(staged.AccessToken, discord.TokenUser)
	if err != nil {
		return nil, err
	}
	identity, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discord identity: %w", err)
	}

	if err := validateLogin(login); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByLogin(login); err == nil {
		return nil, fmt.Errorf("%w: login already taken", apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	user := &entity.User{
		Login:               login,
		DisplayName:         identity.DisplayName(),
		DiscordID:           identity.ID,
		DiscordAccessToken:  staged.AccessToken,
		DiscordRefreshToken: staged.RefreshToken,
		AvatarSource:        entity.AvatarNone,
	}
	if identity.Email != "" && identity.Verified {
		user.Email = normalizeEmail(identity.Email)
		now := time.Now()
		user.EmailVerifiedAt = &now
	}
	if useAvatar {
		if url := identity.AvatarURL(s.avatarSize); url != "" {
			user.Image = url
			user.AvatarSource = entity.AvatarDiscord
		}
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.stateRepo.DeleteStagedTokens(ctx, sessionID); err != nil {
		log.Printf("[DiscordAuthService] failed to delete staged tokens for session %s: %v", sessionID, err)
	}

	s.audit.Log("user registered via discord", map[string]interface{}{
		"user":       user.Login,
		"discord_id": identity.ID,
	})
	return user, nil
}

// Unlink removes the Discord linkage. Refused unless the account keeps
// a password, which would otherwise become unreachable.
func (s *DiscordAuthService) Unlink(user *entity.User) error {
	if !user.HasDiscord() {
		return nil
	}
	if !user.HasPassword() {
		return ErrPasswordRequired
	}

	fields := map[string]interface{}{
		"discord_id":            "",
		"discord_access_token":  "",
		"discord_refresh_token": "",
	}
	if err := s.userRepo.UpdateProfile(user.ID, fields); err != nil {
		return fmt.Errorf("failed to remove discord linkage: %w", err)
	}
	user.DiscordID = ""
	user.DiscordAccessToken = ""
	user.DiscordRefreshToken = ""

	if user.AvatarSource == entity.AvatarDiscord {
		if err := s.avatars.Reset(user); err != nil {
			return err
		}
	}

	s.audit.Log("discord unlinked", map[string]interface{}{"user": user.Login})
	return nil
}
