package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ShenYT0/msn-web/internal/audit"
	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

// RoleSyncResult describes the outcome of one guild role adjustment.
// Role sync is best effort: the result carries the failure instead of an
// error so membership changes never fail on Discord being down.
type RoleSyncResult struct {
	Login   string
	Game    string
	Role    string
	Action  string // "add" or "remove"
	Applied bool
	Skipped string // reason when nothing was attempted
	Err     error
}

// DiscordSyncService keeps linked accounts in step with Discord: avatar
// refresh, token refresh sweeps and guild role assignment.
type DiscordSyncService struct {
	userRepo   repository.UserRepository
	exchanger  TokenExchanger
	apiFactory APIFactory
	guildID    string
	botToken   string
	avatarSize int
	audit      audit.Logger
}

// NewDiscordSyncService creates the sync service. guildID and botToken
// may be empty; role sync then reports itself skipped.
func NewDiscordSyncService(
	userRepo repository.UserRepository,
	exchanger TokenExchanger,
	apiFactory APIFactory,
	guildID, botToken string,
	avatarSize int,
	auditLog audit.Logger,
) (*DiscordSyncService, error) {
	if userRepo == nil || exchanger == nil || auditLog == nil {
		return nil, fmt.Errorf("all dependencies are required for DiscordSyncService")
	}
	if apiFactory == nil {
		apiFactory = DefaultAPIFactory
	}
	if avatarSize <= 0 {
		avatarSize = 128
	}
	return &DiscordSyncService{
		userRepo:   userRepo,
		exchanger:  exchanger,
		apiFactory: apiFactory,
		guildID:    guildID,
		botToken:   botToken,
		avatarSize: avatarSize,
		audit:      auditLog,
	}, nil
}

// SyncAvatar refreshes the stored Discord avatar URL for one user.
// Idempotent: no write happens when the CDN URL is unchanged. Returns
// whether the avatar was updated.
func (s *DiscordSyncService) SyncAvatar(ctx context.Context, user *entity.User) (bool, error) {
	if user.AvatarSource != entity.AvatarDiscord || user.DiscordAccessToken == "" {
		return false, nil
	}

	api, err := s.apiFactory(user.DiscordAccessToken, discord.TokenUser)
	if err != nil {
		return false, err
	}
	identity, err := api.CurrentUser(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch discord identity: %w", err)
	}

	url := identity.AvatarURL(s.avatarSize)
	if url == user.Image {
		return false, nil
	}

	fields := map[string]interface{}{"image": url}
	source := user.AvatarSource
	if url == "" {
		// avatar removed on Discord, fall back to no avatar
		source = entity.AvatarNone
		fields["avatar_source"] = source
	}
	if err := s.userRepo.UpdateProfile(user.ID, fields); err != nil {
		return false, err
	}
	user.Image = url
	user.AvatarSource = source
	return true, nil
}

// RefreshOne rotates the user's Discord tokens through the refresh
// grant. The database is only touched when the access token actually
// changed. Returns whether a new token pair was persisted.
func (s *DiscordSyncService) RefreshOne(ctx context.Context, user *entity.User) (bool, error) {
	if user.DiscordRefreshToken == "" {
		return false, nil
	}

	tokens, err := s.exchanger.Refresh(ctx, user.DiscordRefreshToken)
	if err != nil {
		return false, fmt.Errorf("refresh grant failed: %w", err)
	}
	if tokens.AccessToken == user.DiscordAccessToken {
		return false, nil
	}

	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{
		"discord_access_token":  tokens.AccessToken,
		"discord_refresh_token": tokens.RefreshToken,
	}); err != nil {
		return false, err
	}
	user.DiscordAccessToken = tokens.AccessToken
	user.DiscordRefreshToken = tokens.RefreshToken
	return true, nil
}

// RefreshAll sweeps every linked account (or just the given login) and
// refreshes tokens user by user. A failure on one account is logged and
// does not stop the sweep. Returns the logins whose tokens changed.
func (s *DiscordSyncService) RefreshAll(ctx context.Context, login string) ([]string, error) {
	users, err := s.userRepo.ListLinked(login)
	if err != nil {
		return nil, err
	}

	var refreshed []string
	for i := range users {
		changed, err := s.RefreshOne(ctx, &users[i])
		if err != nil {
			log.Printf("[DiscordSyncService] token refresh failed for user=%s: %v", users[i].Login, err)
			s.audit.Log("discord token refresh failed", map[string]interface{}{
				"user":  users[i].Login,
				"error": err.Error(),
			})
			continue
		}
		if changed {
			refreshed = append(refreshed, users[i].Login)
		}
	}
	return refreshed, nil
}

// SyncAllAvatars sweeps every account using the Discord avatar (or just
// the given login) and refreshes stale CDN URLs. Returns the logins
// whose avatar changed.
func (s *DiscordSyncService) SyncAllAvatars(ctx context.Context, login string) ([]string, error) {
	users, err := s.userRepo.ListByAvatarSource(entity.AvatarDiscord, login)
	if err != nil {
		return nil, err
	}

	var updated []string
	for i := range users {
		changed, err := s.SyncAvatar(ctx, &users[i])
		if err != nil {
			log.Printf("[DiscordSyncService] avatar sync failed for user=%s: %v", users[i].Login, err)
			s.audit.Log("discord avatar sync failed", map[string]interface{}{
				"user":  users[i].Login,
				"error": err.Error(),
			})
			continue
		}
		if changed {
			updated = append(updated, users[i].Login)
		}
	}
	return updated, nil
}

// UpdateGameRole grants or revokes the guild role named after the game.
// It never returns an error: the outcome, including any failure, is
// captured in the result and written to the audit log regardless.
func (s *DiscordSyncService) UpdateGameRole(ctx context.Context, user *entity.User, game *entity.Game, join bool) RoleSyncResult {
	res := RoleSyncResult{Login: user.Login, Game: game.Name, Action: "remove"}
	if join {
		res.Action = "add"
	}
	defer func() { s.auditRoleSync(res) }()

	if !user.HasDiscord() {
		res.Skipped = "no discord linkage"
		return res
	}
	if s.guildID == "" || s.botToken == "" {
		res.Skipped = "guild sync not configured"
		return res
	}

	api, err := s.apiFactory(s.botToken, discord.TokenBot)
	if err != nil {
		res.Err = err
		return res
	}
	guild, err := api.Guild(ctx, s.guildID)
	if err != nil {
		res.Err = fmt.Errorf("failed to fetch guild: %w", err)
		return res
	}
	role := guild.RoleByName(game.Name)
	if role == nil {
		res.Skipped = "no matching guild role"
		return res
	}
	res.Role = role.Name

	if join {
		err = api.AddMemberRole(ctx, s.guildID, user.DiscordID, role.ID)
	} else {
		err = api.RemoveMemberRole(ctx, s.guildID, user.DiscordID, role.ID)
	}
	if err != nil {
		res.Err = fmt.Errorf("role %s failed: %w", res.Action, err)
		return res
	}
	res.Applied = true
	return res
}

func (s *DiscordSyncService) auditRoleSync(res RoleSyncResult) {
	fields := map[string]interface{}{
		"user":    res.Login,
		"game":    res.Game,
		"action":  res.Action,
		"applied": res.Applied,
	}
	if res.Role != "" {
		fields["role"] = res.Role
	}
	if res.Skipped != "" {
		fields["skipped"] = res.Skipped
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		log.Printf("[DiscordSyncService] role sync failed for user=%s game=%s: %v", res.Login, res.Game, res.Err)
	}
	s.audit.Log("discord role sync", fields)
}
