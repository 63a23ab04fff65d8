package storage

import (
	"chatroom/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is everything the service needs from persistence: the document
// store plus the credential records behind the identity provider.
type Storage interface {
	DocumentStore

	SaveAccount(account *models.UserAccount) error
	UpdateAccount(account *models.UserAccount) error
	FindAccountByEmail(email string) (*models.UserAccount, error)
	FindAccountByID(id string) (*models.UserAccount, error)
	DeleteAccount(id string) error
	AddAccountRoom(accountID, roomID string) error

	RevokeToken(jti string, ttl time.Duration) error
	IsTokenRevoked(jti string) (bool, error)
	SaveResetToken(token, accountID string, ttl time.Duration) error
	ConsumeResetToken(token string) (string, error)
}

// DocumentRecord is one stored document. Body is the JSON encoding of the fields.
type DocumentRecord struct {
	Path       string    `gorm:"primaryKey"`
	Collection string    `gorm:"index;not null"`
	DocID      string    `gorm:"not null"`
	Body       string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (DocumentRecord) TableName() string { return "documents" }

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate creates the documents table. Accounts are migrated separately
// because their text[] column needs PostgreSQL.
func (s *Service) Migrate(withAccounts bool) error {
	if err := s.DB.AutoMigrate(&DocumentRecord{}); err != nil {
		return err
	}
	if withAccounts {
		return s.DB.AutoMigrate(&models.UserAccount{})
	}
	return nil
}

func docChannel(path string) string       { return "doc:" + path }
func collectionChannel(name string) string { return "col:" + name }

func (s *Service) GetDocument(ctx context.Context, path string) (models.DocumentSnapshot, error) {
	var rec DocumentRecord
	err := s.DB.WithContext(ctx).Where("path = ?", path).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, id := SplitPath(path)
		return models.DocumentSnapshot{Path: path, ID: id}, nil
	}
	if err != nil {
		return models.DocumentSnapshot{}, err
	}
	return rec.snapshot()
}

// SetData applies the write inside a transaction, then announces the change
// on Redis so every listener on this document or its collection re-reads it.
func (s *Service) SetData(ctx context.Context, path string, fields models.Document, merge bool) error {
	now, err := s.ServerTime(ctx)
	if err != nil {
		return err
	}
	collection, id := SplitPath(path)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; its writes are serialized anyway.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rec DocumentRecord
		var current models.Document
		err := q.Where("path = ?", path).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if current, err = decodeBody(rec.Body); err != nil {
				return err
			}
		}

		body, err := json.Marshal(applyWrite(current, fields, merge, now))
		if err != nil {
			return err
		}
		rec = DocumentRecord{Path: path, Collection: collection, DocID: id, Body: string(body), UpdatedAt: now}
		return tx.Save(&rec).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to write document %s: %v", path, err)
		return err
	}

	s.publishChange(ctx, path, collection)
	return nil
}

// DeleteDocument removes the document row and announces the change like SetData.
func (s *Service) DeleteDocument(ctx context.Context, path string) error {
	collection, _ := SplitPath(path)
	if err := s.DB.WithContext(ctx).Where("path = ?", path).Delete(&DocumentRecord{}).Error; err != nil {
		log.Printf("ERROR: Failed to delete document %s: %v", path, err)
		return err
	}
	s.publishChange(ctx, path, collection)
	return nil
}

func (s *Service) publishChange(ctx context.Context, path, collection string) {
	if s.Redis == nil {
		return
	}
	// Listeners re-read on notification, so a lost publish only delays them until the next write.
	if err := s.Redis.Publish(ctx, docChannel(path), path).Err(); err != nil {
		log.Printf("WARNING: Failed to publish change for %s: %v", path, err)
	}
	if err := s.Redis.Publish(ctx, collectionChannel(collection), path).Err(); err != nil {
		log.Printf("WARNING: Failed to publish change for collection %s: %v", collection, err)
	}
}

func (s *Service) Query(ctx context.Context, q Query) ([]models.DocumentSnapshot, error) {
	var recs []DocumentRecord
	if err := s.DB.WithContext(ctx).Where("collection = ?", q.Collection).Order("path asc").Find(&recs).Error; err != nil {
		log.Printf("ERROR: Failed to query collection %s: %v", q.Collection, err)
		return nil, err
	}

	out := make([]models.DocumentSnapshot, 0, len(recs))
	for _, rec := range recs {
		snap, err := rec.snapshot()
		if err != nil {
			log.Printf("WARNING: Skipping undecodable document %s: %v", rec.Path, err)
			continue
		}
		if matches(snap.Data, q.Where) {
			out = append(out, snap)
		}
	}
	return out, nil
}

// ServerTime uses the Redis clock so every process stamps writes from one source.
func (s *Service) ServerTime(ctx context.Context) (time.Time, error) {
	if s.Redis == nil {
		return time.Now().UTC(), nil
	}
	t, err := s.Redis.Time(ctx).Result()
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (r DocumentRecord) snapshot() (models.DocumentSnapshot, error) {
	data, err := decodeBody(r.Body)
	if err != nil {
		return models.DocumentSnapshot{}, err
	}
	return models.DocumentSnapshot{Path: r.Path, ID: r.DocID, Exists: true, Data: data}, nil
}

func decodeBody(body string) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = models.Document{}
	}
	return doc, nil
}
