package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"u/p/a.png":     "u/p/a.png",
		"/u/p/a.png":    "u/p/a.png",
		"./u//p/a.png":  "u/p/a.png",
		"u\\p\\a.png":   "u/p/a.png",
		"u/../p/a.png":  "p/a.png",
		"  u/p/x.png  ": "u/p/x.png",
	}
	for in, want := range cases {
		got, err := sanitizeKey(in)
		if err != nil {
			t.Fatalf("sanitizeKey(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "   ", "..", "../etc/passwd", "."} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestOutputKey(t *testing.T) {
	if got := OutputKey("u1", "p1", "a1"); got != "u1/p1/a1.png" {
		t.Fatalf("unexpected output key %q", got)
	}
}

func TestFileStoreSignedURLRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Upload(ctx, "output-images", "u1/p1/a1.png", []byte("png"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	raw, err := store.SignedReadURL(ctx, "output-images", "u1/p1/a1.png", 5*time.Minute)
	if err != nil {
		t.Fatalf("SignedReadURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/v1/storage/output-images/u1/p1/a1.png" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	q := u.Query()
	if err := store.Verify("output-images", "u1/p1/a1.png", q.Get("expires"), q.Get("sig")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := store.Verify("output-images", "u1/p1/other.png", q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for another key, got %v", err)
	}
	if err := store.Verify("input-images", "u1/p1/a1.png", q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for another bucket, got %v", err)
	}

	now = now.Add(6 * time.Minute)
	if err := store.Verify("output-images", "u1/p1/a1.png", q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrURLExpired) {
		t.Fatalf("expected ErrURLExpired, got %v", err)
	}

	data, err := store.Read(ctx, "output-images", "u1/p1/a1.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("Read = %q, %v", data, err)
	}
}

func TestFileStoreMissingObject(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), "http://localhost", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.SignedReadURL(ctx, "b", "missing.png", time.Minute); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := store.Read(ctx, "b", "missing.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if err := store.Upload(ctx, "../b", "k", nil, ""); err == nil {
		t.Fatalf("expected invalid bucket error")
	}
}

type stubBucketClient struct {
	uploads   map[string]string
	options   []storage_go.FileOptions
	signedURL string
	signErr   error
	expiresIn int
}

func (s *stubBucketClient) UploadFile(bucketId string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	body, _ := io.ReadAll(data)
	if s.uploads == nil {
		s.uploads = map[string]string{}
	}
	s.uploads[bucketId+"/"+relativePath] = string(body)
	s.options = append(s.options, fileOptions...)
	return storage_go.FileUploadResponse{}, nil
}

func (s *stubBucketClient) CreateSignedUrl(bucketId string, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error) {
	s.expiresIn = expiresIn
	if s.signErr != nil {
		return storage_go.SignedUrlResponse{}, s.signErr
	}
	return storage_go.SignedUrlResponse{SignedURL: s.signedURL}, nil
}

func TestSupabaseStoreUploadAndSign(t *testing.T) {
	ctx := context.Background()
	client := &stubBucketClient{signedURL: "/object/sign/output-images/u/p/a.png?token=abc"}
	store := &SupabaseStore{client: client, baseURL: "https://proj.supabase.co/storage/v1"}

	if err := store.Upload(ctx, "output-images", "/u/p/a.png", []byte("img"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if client.uploads["output-images/u/p/a.png"] != "img" {
		t.Fatalf("unexpected uploads %#v", client.uploads)
	}
	if len(client.options) != 1 || client.options[0].Upsert == nil || !*client.options[0].Upsert {
		t.Fatalf("expected upsert option, got %#v", client.options)
	}
	if client.options[0].ContentType == nil || *client.options[0].ContentType != "image/png" {
		t.Fatalf("expected content type option")
	}

	signed, err := store.SignedReadURL(ctx, "output-images", "u/p/a.png", 90*time.Second)
	if err != nil {
		t.Fatalf("SignedReadURL: %v", err)
	}
	if signed != "https://proj.supabase.co/storage/v1/object/sign/output-images/u/p/a.png?token=abc" {
		t.Fatalf("unexpected signed url %q", signed)
	}
	if client.expiresIn != 90 {
		t.Fatalf("expected 90 second expiry, got %d", client.expiresIn)
	}

	client.signedURL = "https://cdn.example.com/x?token=1"
	signed, err = store.SignedReadURL(ctx, "output-images", "u/p/a.png", time.Minute)
	if err != nil || !strings.HasPrefix(signed, "https://cdn.example.com/") {
		t.Fatalf("absolute url should pass through, got %q, %v", signed, err)
	}

	client.signErr = errors.New("Object not found")
	if _, err := store.SignedReadURL(ctx, "output-images", "u/p/a.png", time.Minute); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}
