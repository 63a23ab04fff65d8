package auth_test

import (
	"chatroom/backend/internal/models"
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of auth.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveAccount(account *models.UserAccount) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockRepository) UpdateAccount(account *models.UserAccount) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockRepository) FindAccountByEmail(email string) (*models.UserAccount, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAccount), args.Error(1)
}

func (m *MockRepository) FindAccountByID(id string) (*models.UserAccount, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAccount), args.Error(1)
}

func (m *MockRepository) DeleteAccount(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepository) RevokeToken(jti string, ttl time.Duration) error {
	args := m.Called(jti, ttl)
	return args.Error(0)
}

func (m *MockRepository) IsTokenRevoked(jti string) (bool, error) {
	args := m.Called(jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) SaveResetToken(token, accountID string, ttl time.Duration) error {
	args := m.Called(token, accountID, ttl)
	return args.Error(0)
}

func (m *MockRepository) ConsumeResetToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

// MockProfiles is a testify mock of auth.Profiles.
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) Create(ctx context.Context, uid, username, email string) error {
	args := m.Called(ctx, uid, username, email)
	return args.Error(0)
}

func (m *MockProfiles) MarkVerified(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockProfiles) Profile(ctx context.Context, uid string) (models.UserProfile, bool, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(models.UserProfile), args.Bool(1), args.Error(2)
}

func (m *MockProfiles) Delete(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

// MockMailer is a testify mock of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerification(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}
