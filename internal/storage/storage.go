// Package storage provides object storage for input and output images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"
)

var (
	// ErrObjectNotFound is returned when a stored object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrInvalidSignature is returned when a signed URL fails verification.
	ErrInvalidSignature = errors.New("storage: invalid signature")
	// ErrURLExpired is returned when a signed URL is past its expiry.
	ErrURLExpired = errors.New("storage: signed url expired")
)

// ObjectStore uploads objects and issues short-lived read URLs for them.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	SignedReadURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// OutputKey is the storage key for a generated image.
func OutputKey(userID, projectID, assetID string) string {
	return path.Join(userID, projectID, assetID+".png")
}

// InputKey is the storage key for an uploaded source image.
func InputKey(userID, projectID, assetID, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	return path.Join(userID, projectID, "inputs", assetID+ext)
}

func validateBucket(bucket string) error {
	if bucket == "" || bucket == "." || bucket == ".." || path.Base(bucket) != bucket {
		return fmt.Errorf("storage: invalid bucket %q", bucket)
	}
	return nil
}
