package handler_test

import (
	"bytes"
	"chatroom/backend/internal/api/handler"
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/directory"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/profile"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) Register(ctx context.Context, email, password, username string) (models.CurrentUser, error) {
	args := m.Called(email, password, username)
	return args.Get(0).(models.CurrentUser), args.Error(1)
}

func (m *MockAuth) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	args := m.Called(email, password)
	return args.Get(0).(auth.Session), args.Error(1)
}

func (m *MockAuth) CurrentUser(ctx context.Context, token string) (models.CurrentUser, error) {
	args := m.Called(token)
	return args.Get(0).(models.CurrentUser), args.Error(1)
}

func (m *MockAuth) SignOut(ctx context.Context, token string) error {
	return m.Called(token).Error(0)
}

func (m *MockAuth) ResetPassword(ctx context.Context, email string) error {
	return m.Called(email).Error(0)
}

func (m *MockAuth) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return m.Called(token, newPassword).Error(0)
}

func (m *MockAuth) VerifyEmail(ctx context.Context, token string) (models.CurrentUser, error) {
	args := m.Called(token)
	return args.Get(0).(models.CurrentUser), args.Error(1)
}

func (m *MockAuth) DeleteAccount(ctx context.Context, token string) error {
	return m.Called(token).Error(0)
}

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) LoadSettings(ctx context.Context, uid string) (profile.Settings, error) {
	args := m.Called(uid)
	return args.Get(0).(profile.Settings), args.Error(1)
}

func (m *MockProfiles) UpdateSettings(ctx context.Context, uid, username, bio string) error {
	return m.Called(uid, username, bio).Error(0)
}

func (m *MockProfiles) UploadProfileImage(ctx context.Context, uid string, jpeg []byte) (string, error) {
	args := m.Called(uid, jpeg)
	return args.String(0), args.Error(1)
}

func (m *MockProfiles) LoadProfileImage(ctx context.Context, uid string) ([]byte, error) {
	args := m.Called(uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type staticRooms directory.View

func (s staticRooms) Directory(context.Context) (directory.View, error) {
	return directory.View(s), nil
}

var alice = models.CurrentUser{UID: "u1", DisplayName: "alice", IsEmailVerified: true}

func setupRouter(t *testing.T) (*gin.Engine, *MockAuth, *MockProfiles) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)

	authn := new(MockAuth)
	profiles := new(MockProfiles)
	h := handler.NewHandler(nil, authn, profiles, loc)
	h.Rooms = staticRooms{Status: directory.Ready, Rooms: []models.RoomSummary{{RoomID: "general", DisplayName: "general"}}}

	r := gin.New()
	h.Register(r)
	authn.On("CurrentUser", "good-token").Return(alice, nil)
	authn.On("CurrentUser", "bad-token").Return(models.CurrentUser{}, &auth.Error{Kind: auth.InvalidToken})
	return r, authn, profiles
}

func do(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantMsg    string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "wrong password", err: &auth.Error{Kind: auth.WrongPassword}, wantStatus: http.StatusUnauthorized, wantError: "wrong_password", wantMsg: "Incorrect password."},
		{name: "not verified", err: &auth.Error{Kind: auth.EmailNotVerified}, wantStatus: http.StatusForbidden, wantError: "email_not_verified"},
		{name: "network", err: &auth.Error{Kind: auth.NetworkError}, wantStatus: http.StatusServiceUnavailable, wantError: "network_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			r, authn, _ := setupRouter(t)
			authn.On("SignIn", "alice@example.com", "secret123").Return(auth.Session{Token: "jwt", User: alice}, tt.err)
			body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "secret123"})

			// Act
			w := do(r, http.MethodPost, "/auth/sign-in", "", body)

			// Assert
			assert.Equal(t, tt.wantStatus, w.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.err == nil {
				assert.Equal(t, "jwt", resp["token"])
				return
			}
			assert.Equal(t, tt.wantError, resp["error"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp["message"])
			}
		})
	}
}

func TestSignIn_RejectsMalformedBody(t *testing.T) {
	r, authn, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/auth/sign-in", "", []byte(`{"email":""}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	authn.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything)
}

func TestRequireAuth(t *testing.T) {
	r, _, _ := setupRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/auth/me", "bad-token", nil).Code)

	w := do(r, http.MethodGet, "/auth/me", "good-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.CurrentUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, alice, got)

	// The WebSocket handshake passes the token as a query parameter.
	req := httptest.NewRequest(http.MethodGet, "/auth/me?token=good-token", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignOut(t *testing.T) {
	r, authn, _ := setupRouter(t)
	authn.On("SignOut", "good-token").Return(nil)

	w := do(r, http.MethodPost, "/auth/sign-out", "good-token", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	authn.AssertExpectations(t)
}

func TestDeleteAccount(t *testing.T) {
	r, authn, _ := setupRouter(t)
	authn.On("DeleteAccount", "good-token").Return(nil)

	unauthorized := do(r, http.MethodDelete, "/profile", "", nil)
	w := do(r, http.MethodDelete, "/profile", "good-token", nil)

	assert.Equal(t, http.StatusUnauthorized, unauthorized.Code)
	assert.Equal(t, http.StatusNoContent, w.Code)
	authn.AssertExpectations(t)
}

func TestListRooms(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/rooms", "good-token", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","rooms":[{"room_id":"general","display_name":"general","last_message":"","last_message_at":"0001-01-01T00:00:00Z","has_messages":false}]}`, w.Body.String())
}

func TestSettings(t *testing.T) {
	r, _, profiles := setupRouter(t)
	profiles.On("LoadSettings", "u1").Return(profile.Settings{Username: "alice", Email: "alice@example.com", Bio: "hi"}, nil)
	profiles.On("UpdateSettings", "u1", "", "bio").Return(apperr.ErrMissingFields)

	get := do(r, http.MethodGet, "/profile/settings", "good-token", nil)
	put := do(r, http.MethodPut, "/profile/settings", "good-token", []byte(`{"username":"","bio":"bio"}`))

	require.Equal(t, http.StatusOK, get.Code)
	assert.Contains(t, get.Body.String(), `"bio":"hi"`)
	assert.Equal(t, http.StatusBadRequest, put.Code)
}

func TestProfileImage(t *testing.T) {
	r, _, profiles := setupRouter(t)
	jpeg := []byte{0xff, 0xd8, 0xff}
	profiles.On("UploadProfileImage", "u1", jpeg).Return("mem://blob/chatroom/profile_images/u1.jpg", nil)
	profiles.On("LoadProfileImage", "u1").Return(nil, profile.ErrNoProfileImage).Once()
	profiles.On("LoadProfileImage", "u1").Return(jpeg, nil)

	missing := do(r, http.MethodGet, "/profile/image", "good-token", nil)
	up := do(r, http.MethodPut, "/profile/image", "good-token", jpeg)
	down := do(r, http.MethodGet, "/profile/image", "good-token", nil)

	assert.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, http.StatusOK, up.Code)
	assert.Contains(t, up.Body.String(), "profile_images/u1.jpg")
	require.Equal(t, http.StatusOK, down.Code)
	assert.Equal(t, "image/jpeg", down.Header().Get("Content-Type"))
	assert.Equal(t, jpeg, down.Body.Bytes())
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
