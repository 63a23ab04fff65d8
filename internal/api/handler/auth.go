package handler

import (
	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/models"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUser  = "user"
	ctxToken = "token"
)

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type tokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password"`
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a WebSocket handshake, so ?token= is accepted as well.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return strings.TrimSpace(authHeader[7:])
	}
	return c.Query("token")
}

// RequireAuth resolves the signed-in user or aborts with 401.
func (h *Handler) RequireAuth(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	user, err := h.Auth.CurrentUser(c.Request.Context(), token)
	if err != nil {
		h.abortAuth(c, err)
		return
	}
	c.Set(ctxUser, user)
	c.Set(ctxToken, token)
	c.Next()
}

func currentUser(c *gin.Context) models.CurrentUser {
	user, _ := c.MustGet(ctxUser).(models.CurrentUser)
	return user
}

func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.InvalidEmail, auth.WeakPassword:
		return http.StatusBadRequest
	case auth.WrongPassword, auth.InvalidToken:
		return http.StatusUnauthorized
	case auth.EmailNotVerified:
		return http.StatusForbidden
	case auth.UserNotFound:
		return http.StatusNotFound
	case auth.EmailInUse:
		return http.StatusConflict
	case auth.NetworkError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortAuth maps an auth failure to a status and a localized message.
func (h *Handler) abortAuth(c *gin.Context, err error) {
	kind := auth.Other
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		kind = authErr.Kind
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{
		"error":   kind.String(),
		"message": h.text(c, kind.MessageKey()),
	})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.abortAuth(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.abortAuth(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.Auth.SignOut(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.abortAuth(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAccount removes the signed-in user's account and profile.
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.Auth.DeleteAccount(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.abortAuth(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Auth.ResetPassword(c.Request.Context(), req.Email); err != nil {
		h.abortAuth(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		h.abortAuth(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.Auth.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.abortAuth(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
