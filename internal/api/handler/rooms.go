package handler

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/profile"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxImageSize bounds profile image uploads.
const maxImageSize = 5 << 20

func (h *Handler) ListRooms(c *gin.Context) {
	view, err := h.Rooms.Directory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": h.text(c, localization.KeyRoomUnavailable)})
		return
	}
	c.JSON(http.StatusOK, view)
}

// remoteFailure writes the response for profile errors.
func (h *Handler) remoteFailure(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, profile.ErrNoProfileImage):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: profile request failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.Profiles.LoadSettings(c.Request.Context(), currentUser(c).UID)
	if err != nil {
		h.remoteFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type settingsRequest struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Profiles.UpdateSettings(c.Request.Context(), currentUser(c).UID, req.Username, req.Bio); err != nil {
		h.remoteFailure(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage takes the raw JPEG as the request body.
func (h *Handler) UploadImage(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	url, err := h.Profiles.UploadProfileImage(c.Request.Context(), currentUser(c).UID, data)
	if err != nil {
		h.remoteFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_image_url": url})
}

func (h *Handler) DownloadImage(c *gin.Context) {
	data, err := h.Profiles.LoadProfileImage(c.Request.Context(), currentUser(c).UID)
	if err != nil {
		h.remoteFailure(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
