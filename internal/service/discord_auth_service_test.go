package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

type discordAuthFixture struct {
	userRepo  *MockUserRepository
	stateRepo *MockOAuthStateRepository
	exchanger *MockTokenExchanger
	api       *MockProviderAPI
	factory   *fixedFactory
	audit     *captureAudit
	svc       *DiscordAuthService
}

func newDiscordAuthFixture(t *testing.T) *discordAuthFixture {
	t.Helper()
	f := &discordAuthFixture{
		userRepo:  new(MockUserRepository),
		stateRepo: new(MockOAuthStateRepository),
		exchanger: new(MockTokenExchanger),
		api:       new(MockProviderAPI),
		audit:     &captureAudit{},
	}
	f.factory = &fixedFactory{api: f.api}

	avatars, err := NewAvatarService(f.userRepo, t.TempDir(), 80, 512)
	require.NoError(t, err)

	f.svc, err = NewDiscordAuthService(f.userRepo, f.stateRepo, f.exchanger, f.factory.factory, avatars, 256, f.audit)
	require.NoError(t, err)
	return f
}

func TestDiscordAuthService_BeginLogin_StateRoundTrip(t *testing.T) {
	f := newDiscordAuthFixture(t)

	var savedState string
	f.stateRepo.On("SaveState", mock.Anything, "sess1", mock.AnythingOfType("string"), stateTTL).
		Run(func(args mock.Arguments) { savedState = args.String(2) }).
		Return(nil)
	f.exchanger.On("AuthorizationURL", mock.AnythingOfType("string")).
		Return("https://discord.com/oauth2/authorize?state=mocked")

	_, err := f.svc.BeginLogin(context.Background(), "sess1")
	require.NoError(t, err)

	// the state placed in the authorization URL is the one stored
	assert.NotEmpty(t, savedState)
	assert.Len(t, savedState, 32)
	f.exchanger.AssertCalled(t, "AuthorizationURL", savedState)
}

func TestDiscordAuthService_HandleCallback_StateMismatchBeforeExchange(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("expected", nil)

	_, _, err := f.svc.HandleCallback(context.Background(), "sess1", "tampered", "code")

	assert.ErrorIs(t, err, ErrStateMismatch)
	f.exchanger.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestDiscordAuthService_HandleCallback_MissingState(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("", apperrors.ErrNotFound)

	_, _, err := f.svc.HandleCallback(context.Background(), "sess1", "anything", "code")

	assert.ErrorIs(t, err, ErrStateMismatch)
	f.exchanger.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestDiscordAuthService_HandleCallback_ExistingLinkage(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("st", nil)
	f.exchanger.On("ExchangeCode", mock.Anything, "code").
		Return(&discord.TokenPair{AccessToken: "fresh-at", RefreshToken: "fresh-rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-1", Username: "someone"}, nil)

	existing := &entity.User{ID: 9, Login: "someone", DiscordID: "disc-1", DiscordAccessToken: "stale"}
	f.userRepo.On("GetByDiscordID", "disc-1").Return(existing, nil)
	f.userRepo.On("UpdateProfile", uint(9), mockUpdateWith("discord_access_token", "fresh-at")).Return(nil)

	user, identity, err := f.svc.HandleCallback(context.Background(), "sess1", "st", "code")

	require.NoError(t, err)
	assert.Equal(t, uint(9), user.ID)
	assert.Equal(t, "disc-1", identity.ID)
	assert.Equal(t, "fresh-at", user.DiscordAccessToken)
	assert.Len(t, f.audit.byEvent("discord login"), 1)
	f.userRepo.AssertExpectations(t)
}

func TestDiscordAuthService_HandleCallback_EmailFallbackRequiresVerified(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("st", nil)
	f.exchanger.On("ExchangeCode", mock.Anything, "code").
		Return(&discord.TokenPair{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-2", Email: "victim@example.com", Verified: false}, nil)

	f.userRepo.On("GetByDiscordID", "disc-2").Return(nil, apperrors.ErrNotFound)
	f.stateRepo.On("SaveStagedTokens", mock.Anything, "sess1",
		repository.StagedTokens{AccessToken: "at", RefreshToken: "rt"}, stagedTTL).Return(nil)

	_, identity, err := f.svc.HandleCallback(context.Background(), "sess1", "st", "code")

	// no takeover through an unverified email: registration instead
	assert.ErrorIs(t, err, ErrRegistrationRequired)
	assert.Equal(t, "disc-2", identity.ID)
	f.userRepo.AssertNotCalled(t, "GetByEmail", mock.Anything)
}

func TestDiscordAuthService_HandleCallback_EmailFallbackVerified(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("st", nil)
	f.exchanger.On("ExchangeCode", mock.Anything, "code").
		Return(&discord.TokenPair{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-3", Email: "owner@example.com", Verified: true}, nil)

	existing := &entity.User{ID: 4, Login: "owner", Email: "owner@example.com"}
	f.userRepo.On("GetByDiscordID", "disc-3").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("GetByEmail", "owner@example.com").Return(existing, nil)
	f.userRepo.On("UpdateProfile", uint(4), mockUpdateWith("discord_id", "disc-3")).Return(nil)

	user, _, err := f.svc.HandleCallback(context.Background(), "sess1", "st", "code")

	require.NoError(t, err)
	assert.Equal(t, "disc-3", user.DiscordID)
}

func TestDiscordAuthService_HandleCallback_EmailFallbackCaseInsensitive(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("st", nil)
	f.exchanger.On("ExchangeCode", mock.Anything, "code").
		Return(&discord.TokenPair{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-3", Email: "Owner@Example.COM", Verified: true}, nil)

	// accounts store emails lowercased, the lookup must match anyway
	existing := &entity.User{ID: 4, Login: "owner", Email: "owner@example.com"}
	f.userRepo.On("GetByDiscordID", "disc-3").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("GetByEmail", "owner@example.com").Return(existing, nil)
	f.userRepo.On("UpdateProfile", uint(4), mockUpdateWith("discord_id", "disc-3")).Return(nil)

	user, _, err := f.svc.HandleCallback(context.Background(), "sess1", "st", "code")

	require.NoError(t, err)
	assert.Equal(t, uint(4), user.ID)
	f.userRepo.AssertExpectations(t)
}

func TestDiscordAuthService_HandleCallback_UnknownIdentityStagesTokens(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("ConsumeState", mock.Anything, "sess1").Return("st", nil)
	f.exchanger.On("ExchangeCode", mock.Anything, "code").
		Return(&discord.TokenPair{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-9", Username: "fresh"}, nil)

	f.userRepo.On("GetByDiscordID", "disc-9").Return(nil, apperrors.ErrNotFound)
	f.stateRepo.On("SaveStagedTokens", mock.Anything, "sess1",
		repository.StagedTokens{AccessToken: "at", RefreshToken: "rt"}, stagedTTL).Return(nil)

	user, identity, err := f.svc.HandleCallback(context.Background(), "sess1", "st", "code")

	assert.ErrorIs(t, err, ErrRegistrationRequired)
	assert.Nil(t, user)
	assert.Equal(t, "fresh", identity.Username)
	f.stateRepo.AssertExpectations(t)
}

func TestDiscordAuthService_CompleteRegistration(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("GetStagedTokens", mock.Anything, "sess1").
		Return(&repository.StagedTokens{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-9", Username: "fresh", GlobalName: "Fresh One", Avatar: "abc"}, nil)
	f.userRepo.On("GetByLogin", "freshone").Return(nil, apperrors.ErrNotFound)

	var created *entity.User
	f.userRepo.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) { created = args.Get(0).(*entity.User) }).
		Return(nil)
	f.stateRepo.On("DeleteStagedTokens", mock.Anything, "sess1").Return(nil)

	user, err := f.svc.CompleteRegistration(context.Background(), "sess1", "freshone", true)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "freshone", user.Login)
	assert.Equal(t, "Fresh One", user.DisplayName)
	assert.Equal(t, "disc-9", user.DiscordID)
	assert.Equal(t, "at", user.DiscordAccessToken)
	assert.Equal(t, entity.AvatarDiscord, user.AvatarSource)
	// the configured CDN size is stored, so the next avatar sweep sees
	// the URL as already current
	assert.Equal(t, "https://cdn.discordapp.com/avatars/disc-9/abc.webp?size=256", user.Image)
}

func TestDiscordAuthService_CompleteRegistration_NormalizesDiscordEmail(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("GetStagedTokens", mock.Anything, "sess1").
		Return(&repository.StagedTokens{AccessToken: "at", RefreshToken: "rt"}, nil)
	f.api.On("CurrentUser", mock.Anything).
		Return(&discord.User{ID: "disc-9", Username: "fresh", Email: "Fresh@Example.COM", Verified: true}, nil)
	f.userRepo.On("GetByLogin", "freshone").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Create", mock.AnythingOfType("*entity.User")).Return(nil)
	f.stateRepo.On("DeleteStagedTokens", mock.Anything, "sess1").Return(nil)

	user, err := f.svc.CompleteRegistration(context.Background(), "sess1", "freshone", false)

	require.NoError(t, err)
	assert.Equal(t, "fresh@example.com", user.Email)
	assert.NotNil(t, user.EmailVerifiedAt)
}

func TestDiscordAuthService_CompleteRegistration_NoStagedTokens(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.stateRepo.On("GetStagedTokens", mock.Anything, "sess1").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.CompleteRegistration(context.Background(), "sess1", "freshone", false)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestDiscordAuthService_Unlink_RequiresPassword(t *testing.T) {
	f := newDiscordAuthFixture(t)

	user := &entity.User{ID: 5, Login: "linked", DiscordID: "disc-5", DiscordAccessToken: "at"}
	err := f.svc.Unlink(user)

	assert.ErrorIs(t, err, ErrPasswordRequired)
	assert.Equal(t, "disc-5", user.DiscordID, "linkage must survive a refused unlink")
	f.userRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestDiscordAuthService_Unlink_ResetsDiscordAvatar(t *testing.T) {
	f := newDiscordAuthFixture(t)
	f.userRepo.On("UpdateProfile", uint(6), mockUpdateWith("discord_id", "")).Return(nil).Once()
	f.userRepo.On("UpdateProfile", uint(6), mockUpdateWith("avatar_source", entity.AvatarNone)).Return(nil).Once()

	user := &entity.User{
		ID: 6, Login: "linked", Password: "$2a$10$hash",
		DiscordID: "disc-6", DiscordAccessToken: "at",
		AvatarSource: entity.AvatarDiscord, Image: "https://cdn.discordapp.com/avatars/disc-6/x.webp?size=80",
	}
	require.NoError(t, f.svc.Unlink(user))

	assert.Empty(t, user.DiscordID)
	assert.Equal(t, entity.AvatarNone, user.AvatarSource)
	assert.Empty(t, user.Image)
	assert.Len(t, f.audit.byEvent("discord unlinked"), 1)
	f.userRepo.AssertExpectations(t)
}

func TestDiscordAuthService_Unlink_NotLinkedIsNoop(t *testing.T) {
	f := newDiscordAuthFixture(t)

	require.NoError(t, f.svc.Unlink(&entity.User{ID: 7, Login: "plain", Password: "$2a$10$hash"}))
	f.userRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}
