package storage

import (
	"chatroom/backend/internal/models"
	"errors"
	"log"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNoRedis is returned by token methods when no Redis client is configured.
var ErrNoRedis = errors.New("storage: redis unavailable")

// SaveAccount створює обліковий запис у PostgreSQL
func (s *Service) SaveAccount(account *models.UserAccount) error {
	if err := s.DB.Create(account).Error; err != nil {
		log.Printf("ERROR: Failed to save account %s: %v", account.Email, err)
		return err
	}
	log.Printf("INFO: New account %s created.", account.ID)
	return nil
}

func (s *Service) UpdateAccount(account *models.UserAccount) error {
	return s.DB.Save(account).Error
}

// FindAccountByEmail повертає nil без помилки, якщо запис не знайдено.
func (s *Service) FindAccountByEmail(email string) (*models.UserAccount, error) {
	var account models.UserAccount
	err := s.DB.Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find account by email: %v", err)
		return nil, err
	}
	return &account, nil
}

func (s *Service) FindAccountByID(id string) (*models.UserAccount, error) {
	var account models.UserAccount
	err := s.DB.Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find account %s: %v", id, err)
		return nil, err
	}
	return &account, nil
}

// DeleteAccount removes the account row. A missing account is not an error.
func (s *Service) DeleteAccount(id string) error {
	if err := s.DB.Where("id = ?", id).Delete(&models.UserAccount{}).Error; err != nil {
		log.Printf("ERROR: Failed to delete account %s: %v", id, err)
		return err
	}
	log.Printf("INFO: Account %s deleted.", id)
	return nil
}

// AddAccountRoom records that the account has entered roomID.
func (s *Service) AddAccountRoom(accountID, roomID string) error {
	account, err := s.FindAccountByID(accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return gorm.ErrRecordNotFound
	}
	if slices.Contains(account.Rooms, roomID) {
		return nil
	}
	account.Rooms = append(account.Rooms, roomID)
	return s.DB.Model(account).Update("rooms", account.Rooms).Error
}

// RevokeToken marks a token id as revoked until its natural expiry.
func (s *Service) RevokeToken(jti string, ttl time.Duration) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	return s.Redis.Set(s.Ctx, "revoked:"+jti, "1", ttl).Err()
}

func (s *Service) IsTokenRevoked(jti string) (bool, error) {
	if s.Redis == nil {
		return false, nil
	}
	_, err := s.Redis.Get(s.Ctx, "revoked:"+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) SaveResetToken(token, accountID string, ttl time.Duration) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	ok, err := s.Redis.SetNX(s.Ctx, "reset:"+token, accountID, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("storage: reset token collision")
	}
	return nil
}

// ConsumeResetToken returns the account id bound to token and deletes it.
// An unknown or expired token yields an empty id and no error.
func (s *Service) ConsumeResetToken(token string) (string, error) {
	if s.Redis == nil {
		return "", ErrNoRedis
	}
	id, err := s.Redis.GetDel(s.Ctx, "reset:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

var _ Storage = (*Service)(nil)
