package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	"github.com/ShenYT0/msn-web/pkg/discord"
)

// ============================================================================
// Mocks shared by the service tests
// ============================================================================

// MockUserRepository implements repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByLogin(login string) (*entity.User, error) {
	args := m.Called(login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByDiscordID(discordID string) (*entity.User, error) {
	args := m.Called(discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateProfile(userID uint, updates map[string]interface{}) error {
	args := m.Called(userID, updates)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

func (m *MockUserRepository) ClearPassword(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUserRepository) List(limit, offset int) ([]entity.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) ListLinked(login string) ([]entity.User, error) {
	args := m.Called(login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) ListByAvatarSource(source entity.AvatarSource, login string) ([]entity.User, error) {
	args := m.Called(source, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

// MockGameRepository implements repository.GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) GetBySlug(slug string) (*entity.Game, error) {
	args := m.Called(slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Game), args.Error(1)
}

func (m *MockGameRepository) List() ([]entity.Game, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}

func (m *MockGameRepository) AddMember(userID, gameID uint) error {
	args := m.Called(userID, gameID)
	return args.Error(0)
}

func (m *MockGameRepository) RemoveMember(userID, gameID uint) error {
	args := m.Called(userID, gameID)
	return args.Error(0)
}

func (m *MockGameRepository) ListMemberships(userID uint) ([]entity.UserGame, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.UserGame), args.Error(1)
}

func (m *MockGameRepository) ListMemberGames(userID uint) ([]entity.Game, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Game), args.Error(1)
}

// MockOAuthStateRepository implements repository.OAuthStateRepository
type MockOAuthStateRepository struct {
	mock.Mock
}

func (m *MockOAuthStateRepository) SaveState(ctx context.Context, sessionID, state string, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, state, ttl)
	return args.Error(0)
}

func (m *MockOAuthStateRepository) ConsumeState(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthStateRepository) SaveStagedTokens(ctx context.Context, sessionID string, tokens repository.StagedTokens, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, tokens, ttl)
	return args.Error(0)
}

func (m *MockOAuthStateRepository) GetStagedTokens(ctx context.Context, sessionID string) (*repository.StagedTokens, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.StagedTokens), args.Error(1)
}

func (m *MockOAuthStateRepository) DeleteStagedTokens(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockVerificationCodeRepository implements repository.VerificationCodeRepository
type MockVerificationCodeRepository struct {
	mock.Mock
}

func (m *MockVerificationCodeRepository) Save(ctx context.Context, userID uint, code repository.VerificationCode, ttl time.Duration) error {
	args := m.Called(ctx, userID, code, ttl)
	return args.Error(0)
}

func (m *MockVerificationCodeRepository) Get(ctx context.Context, userID uint) (*repository.VerificationCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.VerificationCode), args.Error(1)
}

func (m *MockVerificationCodeRepository) Delete(ctx context.Context, userID uint) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockProviderAPI implements ProviderAPI
type MockProviderAPI struct {
	mock.Mock
}

func (m *MockProviderAPI) CurrentUser(ctx context.Context) (*discord.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discord.User), args.Error(1)
}

func (m *MockProviderAPI) Guild(ctx context.Context, guildID string) (*discord.Guild, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discord.Guild), args.Error(1)
}

func (m *MockProviderAPI) GuildMembers(ctx context.Context, guildID string) ([]discord.Member, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]discord.Member), args.Error(1)
}

func (m *MockProviderAPI) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockProviderAPI) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

// MockTokenExchanger implements TokenExchanger
type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) AuthorizationURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockTokenExchanger) ExchangeCode(ctx context.Context, code string) (*discord.TokenPair, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discord.TokenPair), args.Error(1)
}

func (m *MockTokenExchanger) Refresh(ctx context.Context, refreshToken string) (*discord.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discord.TokenPair), args.Error(1)
}

// MockEmailService implements EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, code, idempotencyKey)
	return args.Error(0)
}

// capturedEvent is one audit event recorded during a test.
type capturedEvent struct {
	Event  string
	Fields map[string]interface{}
}

// captureAudit implements audit.Logger and records events in memory.
type captureAudit struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (a *captureAudit) Log(event string, fields map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, capturedEvent{Event: event, Fields: fields})
}

func (a *captureAudit) byEvent(event string) []capturedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []capturedEvent
	for _, e := range a.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func timeNowPtr() *time.Time {
	now := time.Now()
	return &now
}

// mockUpdateWith matches an UpdateProfile field map containing the given
// key and value.
func mockUpdateWith(key string, value interface{}) interface{} {
	return mock.MatchedBy(func(fields map[string]interface{}) bool {
		got, ok := fields[key]
		return ok && got == value
	})
}

// fixedFactory returns the same ProviderAPI regardless of token, while
// recording which tokens and kinds were requested.
type fixedFactory struct {
	mu    sync.Mutex
	api   ProviderAPI
	calls []discord.TokenKind
}

func (f *fixedFactory) factory(token string, kind discord.TokenKind) (ProviderAPI, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	return f.api, nil
}
