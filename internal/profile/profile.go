// Package profile reads and writes users/{uid} documents and their profile images.
package profile

import (
	"chatroom/backend/internal/apperr"
	"chatroom/backend/internal/blob"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/messagelog"
	"chatroom/backend/internal/models"
	"chatroom/backend/internal/storage"
	"context"
	"errors"
	"log"

	"golang.org/x/sync/singleflight"
)

// ErrNoProfileImage is returned when the user has not uploaded an image.
var ErrNoProfileImage = errors.New("profile: no profile image")

// Settings is what the settings screen shows.
type Settings struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Bio             string `json:"bio"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

type Service struct {
	store storage.DocumentStore
	blobs blob.Store
	dec   *decoder.Decoder
	// lookups collapses concurrent reads of one profile, e.g. several sends
	// from the same user while the first lookup is still in flight.
	lookups singleflight.Group
}

func NewService(store storage.DocumentStore, blobs blob.Store, dec *decoder.Decoder) *Service {
	return &Service{store: store, blobs: blobs, dec: dec}
}

// Profile reads users/{uid}. It reports false when the document does not exist.
func (s *Service) Profile(ctx context.Context, uid string) (models.UserProfile, bool, error) {
	v, err, _ := s.lookups.Do(uid, func() (any, error) {
		snap, err := s.store.GetDocument(ctx, config.UserPath(uid))
		if err != nil {
			return nil, apperr.Read("get profile", err)
		}
		return snap, nil
	})
	if err != nil {
		return models.UserProfile{}, false, err
	}
	snap := v.(models.DocumentSnapshot)
	if !snap.Exists {
		return models.UserProfile{UserID: uid}, false, nil
	}
	p, err := s.dec.Profile(snap)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	return p, true, nil
}

// ResolveAuthor returns the display identity stamped on sent messages.
// A user without a profile document, or without a username, is "Unknown".
func (s *Service) ResolveAuthor(ctx context.Context, uid string) (messagelog.Author, error) {
	p, _, err := s.Profile(ctx, uid)
	if err != nil {
		return messagelog.Author{}, err
	}
	name := p.Username
	if name == "" {
		name = config.UnknownUsername
	}
	return messagelog.Author{Name: name, AvatarURL: p.ProfileImageURL}, nil
}

// Create writes the profile document of a freshly registered user, replacing any previous one.
func (s *Service) Create(ctx context.Context, uid, username, email string) error {
	err := s.store.SetData(ctx, config.UserPath(uid), models.Document{
		"username":           username,
		"email":              email,
		"isVerified":         false,
		"verificationSentAt": storage.ServerTimestamp,
	}, false)
	if err != nil {
		log.Printf("ERROR: Failed to create profile for %s: %v", uid, err)
		return apperr.Write("create profile", err)
	}
	return nil
}

// MarkVerified records a confirmed email address on the profile.
func (s *Service) MarkVerified(ctx context.Context, uid string) error {
	err := s.store.SetData(ctx, config.UserPath(uid), models.Document{"isVerified": true}, true)
	return apperr.Write("mark verified", err)
}

// LoadSettings returns the settings view. A missing profile yields "Unknown" and an empty bio.
func (s *Service) LoadSettings(ctx context.Context, uid string) (Settings, error) {
	p, _, err := s.Profile(ctx, uid)
	if err != nil {
		return Settings{}, err
	}
	st := Settings{
		Username:        p.Username,
		Email:           p.Email,
		Bio:             p.Bio,
		ProfileImageURL: p.ProfileImageURL,
	}
	if st.Username == "" {
		st.Username = config.UnknownUsername
	}
	return st, nil
}

// UpdateSettings merge-writes the editable profile fields.
func (s *Service) UpdateSettings(ctx context.Context, uid, username, bio string) error {
	if username == "" {
		return apperr.ErrMissingFields
	}
	err := s.store.SetData(ctx, config.UserPath(uid), models.Document{
		"username": username,
		"bio":      bio,
	}, true)
	return apperr.Write("update settings", err)
}

// ImageKey is the blob key of a user's profile image.
func ImageKey(uid string) string {
	return config.ProfileImagesPrefix + uid + ".jpg"
}

// UploadProfileImage stores a JPEG image and records its URL on the profile.
func (s *Service) UploadProfileImage(ctx context.Context, uid string, jpeg []byte) (string, error) {
	if len(jpeg) == 0 {
		return "", apperr.ErrEmptyImage
	}
	url, err := s.blobs.Put(ctx, ImageKey(uid), jpeg, "image/jpeg")
	if err != nil {
		return "", apperr.Write("upload profile image", err)
	}
	if err := s.store.SetData(ctx, config.UserPath(uid), models.Document{"profileImageURL": url}, true); err != nil {
		log.Printf("ERROR: Uploaded image for %s but failed to record it: %v", uid, err)
		return "", apperr.Write("record profile image", err)
	}
	return url, nil
}

// LoadProfileImage downloads the current profile image of uid.
func (s *Service) LoadProfileImage(ctx context.Context, uid string) ([]byte, error) {
	p, _, err := s.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p.ProfileImageURL == "" {
		return nil, ErrNoProfileImage
	}
	data, err := s.blobs.Get(ctx, p.ProfileImageURL)
	if err != nil {
		return nil, apperr.Read("load profile image", err)
	}
	return data, nil
}

// Delete removes the profile document and the profile image of uid.
// The image is removed best effort; a leftover object is only logged.
func (s *Service) Delete(ctx context.Context, uid string) error {
	if err := s.store.DeleteDocument(ctx, config.UserPath(uid)); err != nil {
		return apperr.Write("delete profile", err)
	}
	if err := s.blobs.Delete(ctx, ImageKey(uid)); err != nil {
		log.Printf("WARNING: Failed to delete profile image of %s: %v", uid, err)
	}
	return nil
}
