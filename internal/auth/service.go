package auth

import (
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/models"
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is the slice of storage.Storage the identity provider needs.
type Repository interface {
	SaveAccount(account *models.UserAccount) error
	UpdateAccount(account *models.UserAccount) error
	FindAccountByEmail(email string) (*models.UserAccount, error)
	FindAccountByID(id string) (*models.UserAccount, error)
	DeleteAccount(id string) error
	RevokeToken(jti string, ttl time.Duration) error
	IsTokenRevoked(jti string) (bool, error)
	SaveResetToken(token, accountID string, ttl time.Duration) error
	ConsumeResetToken(token string) (string, error)
}

// Profiles writes and reads the users/{uid} document.
type Profiles interface {
	Create(ctx context.Context, uid, username, email string) error
	MarkVerified(ctx context.Context, uid string) error
	Profile(ctx context.Context, uid string) (models.UserProfile, bool, error)
	Delete(ctx context.Context, uid string) error
}

// Mailer delivers verification and password reset tokens.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes tokens to the process log. Used when no mail transport is configured.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, email, token string) error {
	log.Printf("INFO: verification token for %s: %s", email, token)
	return nil
}

func (LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	log.Printf("INFO: password reset token for %s: %s", email, token)
	return nil
}

// Service is the authenticated identity provider.
type Service struct {
	repo     Repository
	profiles Profiles
	mailer   Mailer
	tokens   *TokenManager
	hasher   *PasswordHasher
}

func NewService(repo Repository, profiles Profiles, mailer Mailer, tokens *TokenManager, hasher *PasswordHasher) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{repo: repo, profiles: profiles, mailer: mailer, tokens: tokens, hasher: hasher}
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.CurrentUser `json:"user"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fail(InvalidEmail, err)
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < config.MinPasswordLen {
		return fail(WeakPassword, nil)
	}
	return nil
}

func currentUser(a *models.UserAccount) models.CurrentUser {
	return models.CurrentUser{UID: a.ID, DisplayName: a.DisplayName, IsEmailVerified: a.IsEmailVerified}
}

// Register creates an unverified account and its profile document, then sends
// a verification token.
func (s *Service) Register(ctx context.Context, email, password, username string) (models.CurrentUser, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.CurrentUser{}, err
	}
	if err := checkPassword(password); err != nil {
		return models.CurrentUser{}, err
	}
	username = strings.TrimSpace(username)

	existing, err := s.repo.FindAccountByEmail(email)
	if err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}
	if existing != nil {
		return models.CurrentUser{}, fail(EmailInUse, nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.CurrentUser{}, fail(Other, err)
	}
	account := &models.UserAccount{Email: email, PasswordHash: hash, DisplayName: username}
	if err := s.repo.SaveAccount(account); err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}

	if err := s.profiles.Create(ctx, account.ID, username, email); err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}

	token, _, err := s.tokens.Issue(account.ID, email, TokenVerify)
	if err != nil {
		return models.CurrentUser{}, fail(Other, err)
	}
	if err := s.mailer.SendVerification(ctx, email, token); err != nil {
		// Акаунт створено; лист можна надіслати повторно.
		log.Printf("WARNING: failed to send verification to %s: %v", email, err)
	}

	log.Printf("INFO: registered account %s", account.ID)
	return currentUser(account), nil
}

// SignIn checks credentials and issues an access token. Unverified accounts are refused.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	account, err := s.repo.FindAccountByEmail(email)
	if err != nil {
		return Session{}, fail(NetworkError, err)
	}
	if account == nil {
		return Session{}, fail(UserNotFound, nil)
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return Session{}, fail(WrongPassword, nil)
	}
	if !account.IsEmailVerified {
		return Session{}, fail(EmailNotVerified, nil)
	}

	if account.DisplayName == "" {
		s.fillDisplayName(ctx, account)
	}

	token, claims, err := s.tokens.Issue(account.ID, account.Email, TokenAccess)
	if err != nil {
		return Session{}, fail(Other, err)
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: currentUser(account)}, nil
}

// fillDisplayName copies the profile username onto the account. Best effort.
func (s *Service) fillDisplayName(ctx context.Context, account *models.UserAccount) {
	p, ok, err := s.profiles.Profile(ctx, account.ID)
	if err != nil {
		log.Printf("WARNING: profile lookup for %s failed: %v", account.ID, err)
		return
	}
	if !ok || p.Username == "" {
		return
	}
	account.DisplayName = p.Username
	if err := s.repo.UpdateAccount(account); err != nil {
		log.Printf("WARNING: failed to store display name for %s: %v", account.ID, err)
	}
}

// Authenticate validates an access token and returns its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	claims, err := s.tokens.Validate(token, TokenAccess)
	if err != nil {
		return nil, fail(InvalidToken, err)
	}
	revoked, err := s.repo.IsTokenRevoked(claims.ID)
	if err != nil {
		return nil, fail(NetworkError, err)
	}
	if revoked {
		return nil, fail(InvalidToken, errors.New("token revoked"))
	}
	return claims, nil
}

// CurrentUser resolves the account behind an access token.
func (s *Service) CurrentUser(ctx context.Context, token string) (models.CurrentUser, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return models.CurrentUser{}, err
	}
	account, err := s.repo.FindAccountByID(claims.UserID)
	if err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}
	if account == nil {
		return models.CurrentUser{}, fail(UserNotFound, nil)
	}
	return currentUser(account), nil
}

// SignOut revokes the access token for the rest of its lifetime.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token, TokenAccess)
	if err != nil {
		return fail(InvalidToken, err)
	}
	ttl := s.tokens.Remaining(claims)
	if ttl == 0 {
		return nil
	}
	if err := s.repo.RevokeToken(claims.ID, ttl); err != nil {
		return fail(NetworkError, err)
	}
	return nil
}

// ResetPassword sends a one-time reset token to the account's address.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	account, err := s.repo.FindAccountByEmail(email)
	if err != nil {
		return fail(NetworkError, err)
	}
	if account == nil {
		return fail(UserNotFound, nil)
	}

	token := uuid.New().String()
	if err := s.repo.SaveResetToken(token, account.ID, config.ResetTokenTTL); err != nil {
		return fail(NetworkError, err)
	}
	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		return fail(NetworkError, err)
	}
	return nil
}

// ConfirmPasswordReset applies a new password using a reset token. Tokens are single use.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	id, err := s.repo.ConsumeResetToken(token)
	if err != nil {
		return fail(NetworkError, err)
	}
	if id == "" {
		return fail(InvalidToken, nil)
	}
	account, err := s.repo.FindAccountByID(id)
	if err != nil {
		return fail(NetworkError, err)
	}
	if account == nil {
		return fail(UserNotFound, nil)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fail(Other, err)
	}
	account.PasswordHash = hash
	if err := s.repo.UpdateAccount(account); err != nil {
		return fail(NetworkError, err)
	}
	return nil
}

// VerifyEmail marks the account behind a verification token as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (models.CurrentUser, error) {
	claims, err := s.tokens.Validate(token, TokenVerify)
	if err != nil {
		return models.CurrentUser{}, fail(InvalidToken, err)
	}
	account, err := s.repo.FindAccountByID(claims.UserID)
	if err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}
	if account == nil {
		return models.CurrentUser{}, fail(UserNotFound, nil)
	}
	if account.IsEmailVerified {
		return currentUser(account), nil
	}

	account.IsEmailVerified = true
	if err := s.repo.UpdateAccount(account); err != nil {
		return models.CurrentUser{}, fail(NetworkError, err)
	}
	if err := s.profiles.MarkVerified(ctx, account.ID); err != nil {
		log.Printf("WARNING: failed to mark profile %s verified: %v", account.ID, err)
	}
	return currentUser(account), nil
}

// DeleteAccount removes the profile document and the account behind an access
// token, then revokes the token.
func (s *Service) DeleteAccount(ctx context.Context, token string) error {
	claims, err := s.Authenticate(token)
	if err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, claims.UserID); err != nil {
		return fail(NetworkError, err)
	}
	if err := s.repo.DeleteAccount(claims.UserID); err != nil {
		return fail(NetworkError, err)
	}
	if ttl := s.tokens.Remaining(claims); ttl > 0 {
		if err := s.repo.RevokeToken(claims.ID, ttl); err != nil {
			// Акаунт уже видалено, тож токен більше нічого не відкриває.
			log.Printf("WARNING: failed to revoke token of deleted account %s: %v", claims.UserID, err)
		}
	}
	log.Printf("INFO: deleted account %s", claims.UserID)
	return nil
}
