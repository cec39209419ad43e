package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

type bucketClient interface {
	UploadFile(bucketId string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	CreateSignedUrl(bucketId string, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
}

// SupabaseStore stores objects in Supabase Storage buckets.
type SupabaseStore struct {
	client  bucketClient
	baseURL string
}

// NewSupabaseStore connects to the Supabase project at projectURL using the
// service role key.
func NewSupabaseStore(projectURL, serviceKey string) (*SupabaseStore, error) {
	projectURL = strings.TrimRight(projectURL, "/")
	if projectURL == "" || serviceKey == "" {
		return nil, errors.New("storage: supabase url and service key are required")
	}
	client, err := supabase.NewClient(projectURL, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: init supabase client: %w", err)
	}
	return &SupabaseStore{client: client.Storage, baseURL: projectURL + "/storage/v1"}, nil
}

// Upload writes data to bucket/key, overwriting any previous object.
func (s *SupabaseStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBucket(bucket); err != nil {
		return err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	if _, err := s.client.UploadFile(bucket, cleanKey, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("storage: supabase upload %s/%s: %w", bucket, cleanKey, err)
	}
	return nil
}

// SignedReadURL asks Supabase for a signed download URL valid for ttl.
func (s *SupabaseStore) SignedReadURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateBucket(bucket); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	seconds := int(math.Ceil(ttl.Seconds()))
	if seconds <= 0 {
		return "", errors.New("storage: ttl must be positive")
	}
	resp, err := s.client.CreateSignedUrl(bucket, cleanKey, seconds)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("storage: supabase sign %s/%s: %w", bucket, cleanKey, err)
	}
	signed := strings.TrimSpace(resp.SignedURL)
	if signed == "" {
		return "", fmt.Errorf("storage: supabase returned empty signed url for %s/%s", bucket, cleanKey)
	}
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed, nil
	}
	return s.baseURL + "/" + strings.TrimLeft(signed, "/"), nil
}
