package blob

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioStore is a Store backed by an S3 compatible bucket.
type MinioStore struct {
	cfg    MinioConfig
	base   *url.URL
	client *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioStore{
		cfg:    cfg,
		base:   &url.URL{Scheme: scheme, Host: endpoint},
		client: cl,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		log.Printf("INFO: Creating bucket %s", s.cfg.Bucket)
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		log.Printf("ERROR: Failed to upload %s: %v", key, err)
		return "", err
	}
	return ObjectURL(s.base, s.cfg.Bucket, key), nil
}

func (s *MinioStore) Get(ctx context.Context, rawURL string) ([]byte, error) {
	key, err := KeyFromURL(rawURL, s.cfg.Bucket)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		log.Printf("ERROR: Failed to delete %s: %v", key, err)
		return err
	}
	return nil
}
