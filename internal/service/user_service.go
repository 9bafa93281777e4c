package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

// SettingsInput carries the profile fields a user may edit. Pointer
// fields distinguish "not submitted" from "set to empty".
type SettingsInput struct {
	Login        *string
	Email        *string
	DisplayName  *string
	Bio          *string
	HideInList   *bool
	AvatarSource *entity.AvatarSource
}

// UserService manages profiles, passwords and game memberships.
type UserService struct {
	userRepo repository.UserRepository
	gameRepo repository.GameRepository
	avatars  *AvatarService
	sync     *DiscordSyncService
	audit    audit.Logger
}

// NewUserService creates the user profile service.
func NewUserService(
	userRepo repository.UserRepository,
	gameRepo repository.GameRepository,
	avatars *AvatarService,
	sync *DiscordSyncService,
	auditLog audit.Logger,
) (*UserService, error) {
	if userRepo == nil || gameRepo == nil || avatars == nil || sync == nil || auditLog == nil {
		return nil, fmt.Errorf("all dependencies are required for UserService")
	}
	return &UserService{
		userRepo: userRepo,
		gameRepo: gameRepo,
		avatars:  avatars,
		sync:     sync,
		audit:    auditLog,
	}, nil
}

// GetByID returns one user.
func (s *UserService) GetByID(id uint) (*entity.User, error) {
	return s.userRepo.GetByID(id)
}

// GetByLogin returns one user by login handle.
func (s *UserService) GetByLogin(login string) (*entity.User, error) {
	return s.userRepo.GetByLogin(login)
}

// List returns one page of the public member list. Users who opted out
// are excluded by the repository query, so pages stay full.
func (s *UserService) List(page, pageSize int) ([]entity.User, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	} else if pageSize > 100 {
		pageSize = 100
	}
	return s.userRepo.List(pageSize, (page-1)*pageSize)
}

// UpdateSettings applies submitted profile fields. Only changed fields
// are written. Changing the email drops its verified status; the avatar
// source is checked against what the account is eligible for, and a
// switch to the Discord source fetches the current avatar immediately.
func (s *UserService) UpdateSettings(ctx context.Context, user *entity.User, input SettingsInput) error {
	fields := map[string]interface{}{}

	if input.Login != nil {
		login := strings.TrimSpace(*input.Login)
		if login != user.Login {
			if err := validateLogin(login); err != nil {
				return err
			}
			if existing, err := s.userRepo.GetByLogin(login); err == nil && existing.ID != user.ID {
				return fmt.Errorf("%w: login already taken", apperrors.ErrConflict)
			} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			fields["login"] = login
		}
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email != user.Email {
			fields["email"] = email
			fields["email_verified_at"] = nil
		}
	}
	if input.DisplayName != nil && *input.DisplayName != user.DisplayName {
		fields["display_name"] = *input.DisplayName
	}
	if input.Bio != nil && *input.Bio != user.Bio {
		fields["bio"] = *input.Bio
	}
	if input.HideInList != nil && *input.HideInList != user.HideInList {
		fields["hide_in_list"] = *input.HideInList
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateProfile(user.ID, fields); err != nil {
			return err
		}
		s.applySettings(user, fields)
	}

	// avatar source last: eligibility may depend on the email just set
	if input.AvatarSource != nil && *input.AvatarSource != user.AvatarSource {
		if err := s.avatars.Apply(user, *input.AvatarSource); err != nil {
			return err
		}
		if user.AvatarSource == entity.AvatarDiscord {
			// best effort: a failure leaves the image empty until the
			// next login or sweep fills it in
			if _, err := s.sync.SyncAvatar(ctx, user); err != nil {
				log.Printf("[UserService] avatar sync on source switch failed for user=%s: %v", user.Login, err)
			}
		}
	}
	return nil
}

func (s *UserService) applySettings(user *entity.User, fields map[string]interface{}) {
	if v, ok := fields["login"].(string); ok {
		user.Login = v
	}
	if v, ok := fields["email"].(string); ok {
		user.Email = v
		user.EmailVerifiedAt = nil
	}
	if v, ok := fields["display_name"].(string); ok {
		user.DisplayName = v
	}
	if v, ok := fields["bio"].(string); ok {
		user.Bio = v
	}
	if v, ok := fields["hide_in_list"].(bool); ok {
		user.HideInList = v
	}
}

// ChangePassword sets a new password. The current password is required
// when one is already set.
func (s *UserService) ChangePassword(user *entity.User, current, newPassword string) error {
	if user.HasPassword() && !user.CheckPassword(current) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}
	if err := s.userRepo.UpdatePassword(user.ID, newPassword); err != nil {
		return err
	}
	s.audit.Log("password changed", map[string]interface{}{"user": user.Login})
	return nil
}

// DeletePassword removes password authentication. Refused unless a
// Discord linkage remains, which would otherwise strand the account.
func (s *UserService) DeletePassword(user *entity.User, current string) error {
	if !user.HasPassword() {
		return nil
	}
	if !user.CheckPassword(current) {
		return ErrInvalidCredentials
	}
	if !user.HasDiscord() {
		return ErrDiscordRequired
	}
	if err := s.userRepo.ClearPassword(user.ID); err != nil {
		return err
	}
	user.Password = ""
	s.audit.Log("password removed", map[string]interface{}{"user": user.Login})
	return nil
}

// JoinGame adds the user to a game and mirrors the matching guild role.
// The role sync outcome is informational only.
func (s *UserService) JoinGame(ctx context.Context, user *entity.User, slug string) error {
	game, err := s.gameRepo.GetBySlug(slug)
	if err != nil {
		return err
	}
	if err := s.gameRepo.AddMember(user.ID, game.ID); err != nil {
		return err
	}
	_ = s.sync.UpdateGameRole(ctx, user, game, true)
	return nil
}

// LeaveGame removes the user from a game and revokes the guild role.
func (s *UserService) LeaveGame(ctx context.Context, user *entity.User, slug string) error {
	game, err := s.gameRepo.GetBySlug(slug)
	if err != nil {
		return err
	}
	if err := s.gameRepo.RemoveMember(user.ID, game.ID); err != nil {
		return err
	}
	_ = s.sync.UpdateGameRole(ctx, user, game, false)
	return nil
}

// Games lists the games the user is a member of.
func (s *UserService) Games(user *entity.User) ([]entity.Game, error) {
	return s.gameRepo.ListMemberGames(user.ID)
}

// AllGames lists every game.
func (s *UserService) AllGames() ([]entity.Game, error) {
	return s.gameRepo.List()
}
