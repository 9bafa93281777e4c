package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	apperrors "github.com/ShenYT0/msn-web/internal/pkg/errors"
)

type verificationFixture struct {
	userRepo *MockUserRepository
	codes    *MockVerificationCodeRepository
	email    *MockEmailService
	audit    *captureAudit
	svc      *EmailVerificationService
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	f := &verificationFixture{
		userRepo: new(MockUserRepository),
		codes:    new(MockVerificationCodeRepository),
		email:    new(MockEmailService),
		audit:    &captureAudit{},
	}
	var err error
	f.svc, err = NewEmailVerificationService(f.userRepo, f.codes, f.email, f.audit)
	require.NoError(t, err)
	return f
}

func TestEmailVerificationService_SendCode(t *testing.T) {
	f := newVerificationFixture(t)
	f.codes.On("Get", mock.Anything, uint(1)).Return(nil, apperrors.ErrNotFound)

	var sentCode string
	var stored repository.VerificationCode
	f.codes.On("Save", mock.Anything, uint(1), mock.AnythingOfType("repository.VerificationCode"), 15*time.Minute).
		Run(func(args mock.Arguments) { stored = args.Get(2).(repository.VerificationCode) }).
		Return(nil)
	f.email.On("SendVerificationCode", mock.Anything, "a@b.c", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sentCode = args.String(2) }).
		Return(nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	require.NoError(t, f.svc.SendCode(context.Background(), user))

	require.Len(t, sentCode, 6)
	assert.NotEqual(t, sentCode, stored.CodeHash, "stored challenge must not contain the plain code")
	assert.Equal(t, hashVerificationCode(sentCode, stored.CodeSalt), stored.CodeHash)
	assert.Equal(t, 5, stored.MaxAttempts)
}

func TestEmailVerificationService_SendCode_Cooldown(t *testing.T) {
	f := newVerificationFixture(t)
	f.codes.On("Get", mock.Anything, uint(1)).Return(&repository.VerificationCode{
		Email:  "a@b.c",
		SentAt: time.Now().Add(-10 * time.Second),
	}, nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	err := f.svc.SendCode(context.Background(), user)
	assert.ErrorIs(t, err, ErrVerificationCooldown)
	f.email.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailVerificationService_SendCode_AlreadyVerified(t *testing.T) {
	f := newVerificationFixture(t)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c", EmailVerifiedAt: timeNowPtr()}
	require.NoError(t, f.svc.SendCode(context.Background(), user))
	f.email.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func activeChallenge(email, code, salt string) *repository.VerificationCode {
	return &repository.VerificationCode{
		Email:       email,
		CodeHash:    hashVerificationCode(code, salt),
		CodeSalt:    salt,
		SentAt:      time.Now().Add(-2 * time.Minute),
		ExpiresAt:   time.Now().Add(13 * time.Minute),
		MaxAttempts: 5,
	}
}

func TestEmailVerificationService_ConfirmCode_Success(t *testing.T) {
	f := newVerificationFixture(t)
	f.codes.On("Get", mock.Anything, uint(1)).Return(activeChallenge("a@b.c", "123456", "salt"), nil)
	f.codes.On("Delete", mock.Anything, uint(1)).Return(nil)
	f.userRepo.On("UpdateProfile", uint(1), mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, ok := fields["email_verified_at"]
		return ok
	})).Return(nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	require.NoError(t, f.svc.ConfirmCode(context.Background(), user, "123456"))
	assert.True(t, user.EmailVerified())
	assert.Len(t, f.audit.byEvent("email verified"), 1)
}

func TestEmailVerificationService_ConfirmCode_WrongCodeCountsAttempt(t *testing.T) {
	f := newVerificationFixture(t)
	f.codes.On("Get", mock.Anything, uint(1)).Return(activeChallenge("a@b.c", "123456", "salt"), nil)
	f.codes.On("Save", mock.Anything, uint(1), mock.MatchedBy(func(code repository.VerificationCode) bool {
		return code.Attempts == 1
	}), time.Duration(0)).Return(nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	err := f.svc.ConfirmCode(context.Background(), user, "654321")
	assert.ErrorIs(t, err, ErrInvalidVerificationCode)
	assert.False(t, user.EmailVerified())
	f.codes.AssertExpectations(t)
}

func TestEmailVerificationService_ConfirmCode_Expired(t *testing.T) {
	f := newVerificationFixture(t)
	challenge := activeChallenge("a@b.c", "123456", "salt")
	challenge.ExpiresAt = time.Now().Add(-time.Minute)
	f.codes.On("Get", mock.Anything, uint(1)).Return(challenge, nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	err := f.svc.ConfirmCode(context.Background(), user, "123456")
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

func TestEmailVerificationService_ConfirmCode_EmailChangedInvalidates(t *testing.T) {
	f := newVerificationFixture(t)
	f.codes.On("Get", mock.Anything, uint(1)).Return(activeChallenge("old@b.c", "123456", "salt"), nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "new@b.c"}
	err := f.svc.ConfirmCode(context.Background(), user, "123456")
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

func TestEmailVerificationService_ConfirmCode_AttemptsExceeded(t *testing.T) {
	f := newVerificationFixture(t)
	challenge := activeChallenge("a@b.c", "123456", "salt")
	challenge.Attempts = 5
	f.codes.On("Get", mock.Anything, uint(1)).Return(challenge, nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	err := f.svc.ConfirmCode(context.Background(), user, "123456")
	assert.ErrorIs(t, err, ErrVerificationAttempts)
}

func TestEmailVerificationService_Status_Cooldown(t *testing.T) {
	f := newVerificationFixture(t)
	challenge := activeChallenge("a@b.c", "123456", "salt")
	challenge.SentAt = time.Now().Add(-5 * time.Second)
	challenge.Attempts = 2
	f.codes.On("Get", mock.Anything, uint(1)).Return(challenge, nil)

	user := &entity.User{ID: 1, Login: "someone", Email: "a@b.c"}
	status, err := f.svc.Status(context.Background(), user)
	require.NoError(t, err)

	assert.False(t, status.EmailVerified)
	assert.False(t, status.CanSendCode)
	assert.Greater(t, status.CooldownRemainingSec, 0)
	assert.Equal(t, 3, status.AttemptsLeft)
}
