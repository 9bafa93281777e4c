package service

import (
	"context"

	"github.com/ShenYT0/msn-web/pkg/discord"
)

// ProviderAPI is the authenticated Discord REST surface the services
// consume. pkg/discord.API satisfies it; tests substitute fakes.
type ProviderAPI interface {
	CurrentUser(ctx context.Context) (*discord.User, error)
	Guild(ctx context.Context, guildID string) (*discord.Guild, error)
	GuildMembers(ctx context.Context, guildID string) ([]discord.Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

// TokenExchanger is the OAuth2 token-endpoint surface the services
// consume. pkg/discord.TokenClient satisfies it.
type TokenExchanger interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*discord.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*discord.TokenPair, error)
}

// APIFactory builds an authenticated ProviderAPI for one token. Each call
// constructs a fresh client so no auth state leaks between requests.
type APIFactory func(token string, kind discord.TokenKind) (ProviderAPI, error)

// DefaultAPIFactory builds real Discord API clients.
func DefaultAPIFactory(token string, kind discord.TokenKind) (ProviderAPI, error) {
	return discord.NewAPI(token, kind)
}
