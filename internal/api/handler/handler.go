package handler

import (
	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/directory"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/metrics"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/profile"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authenticator is the identity provider used by the HTTP surface.
type Authenticator interface {
	Register(ctx context.Context, email, password, username string) (models.CurrentUser, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	CurrentUser(ctx context.Context, token string) (models.CurrentUser, error)
	SignOut(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) (models.CurrentUser, error)
	DeleteAccount(ctx context.Context, token string) error
}

// Profiles serves the settings screen and profile images.
type Profiles interface {
	LoadSettings(ctx context.Context, uid string) (profile.Settings, error)
	UpdateSettings(ctx context.Context, uid, username, bio string) error
	UploadProfileImage(ctx context.Context, uid string, jpeg []byte) (string, error)
	LoadProfileImage(ctx context.Context, uid string) ([]byte, error)
}

// Rooms exposes the room directory.
type Rooms interface {
	Directory(ctx context.Context) (directory.View, error)
}

// Handler містить посилання на ChatHub та сервіси
type Handler struct {
	Hub       *chathub.Hub
	Rooms     Rooms
	Auth      Authenticator
	Profiles  Profiles
	Localizer *localization.Localizer
}

func NewHandler(hub *chathub.Hub, authn Authenticator, profiles Profiles, loc *localization.Localizer) *Handler {
	h := &Handler{Hub: hub, Auth: authn, Profiles: profiles, Localizer: loc}
	if hub != nil {
		h.Rooms = hub
	}
	return h
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.SignUp)
	authGroup.POST("/sign-in", h.SignIn)
	authGroup.POST("/reset", h.ResetPassword)
	authGroup.POST("/reset/confirm", h.ConfirmPasswordReset)
	authGroup.POST("/verify", h.VerifyEmail)

	protected := r.Group("/", h.RequireAuth)
	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/sign-out", h.SignOut)
	protected.GET("/rooms", h.ListRooms)
	protected.GET("/ws", h.ServeWebSocket)
	protected.GET("/profile/settings", h.GetSettings)
	protected.PUT("/profile/settings", h.UpdateSettings)
	protected.PUT("/profile/image", h.UploadImage)
	protected.GET("/profile/image", h.DownloadImage)
	protected.DELETE("/profile", h.DeleteAccount)
}

// lang picks the notice language from ?lang= or Accept-Language.
func lang(c *gin.Context) string {
	if l := c.Query("lang"); l != "" {
		return l
	}
	al := c.GetHeader("Accept-Language")
	if len(al) >= 2 {
		return strings.ToLower(al[:2])
	}
	return config.DefaultLanguage
}

func (h *Handler) text(c *gin.Context, key string) string {
	if h.Localizer == nil {
		return key
	}
	return h.Localizer.GetString(lang(c), key)
}
