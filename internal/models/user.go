package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

// UserAccount is the credential record behind the identity provider.
// Public profile data lives in the users/{uid} document, not here.
type UserAccount struct {
	ID              string         `gorm:"primaryKey" json:"id"` // uid
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string         `gorm:"not null" json:"-"`
	DisplayName     string         `json:"display_name"`
	IsEmailVerified bool           `json:"is_email_verified"`
	Rooms           pq.StringArray `gorm:"type:text[]" json:"rooms"` // rooms the user has entered
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// BeforeCreate це хук GORM, який викликається перед створенням запису.
// It assigns a fresh uid when ID is not set yet.
func (u *UserAccount) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// CurrentUser is what the identity provider exposes about the signed-in user.
type CurrentUser struct {
	UID             string `json:"uid"`
	DisplayName     string `json:"display_name,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
}

// UserProfile is the decoded users/{uid} document.
type UserProfile struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Bio             string `json:"bio"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	IsVerified      bool   `json:"is_verified"`
}
