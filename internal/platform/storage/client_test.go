package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestSignedImageURLSuccess(t *testing.T) {
	signer := &fakeSigner{email: "test@example.iam.gserviceaccount.com"}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	client, err := NewClient(signer, "promo-banners", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	res, err := client.SignedImageURL(context.Background(), "/banners/gift-spring.png", nil)
	if err != nil {
		t.Fatalf("SignedImageURL returned error: %v", err)
	}

	expectedExpiry := now.Add(defaultSignedURLExpiry)
	if !res.ExpiresAt.Equal(expectedExpiry) {
		t.Fatalf("expected expiry %v, got %v", expectedExpiry, res.ExpiresAt)
	}

	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("failed to parse signed URL: %v", err)
	}
	if !strings.Contains(parsed.Path, "banners/gift-spring.png") {
		t.Fatalf("expected object in path: %s", parsed.Path)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) == 0 {
		t.Fatal("expected signer to be invoked")
	}
}

func TestSignedImageURLQueryParameters(t *testing.T) {
	signer := &fakeSigner{email: "test@example.iam.gserviceaccount.com"}
	client, err := NewClient(signer, "promo-banners")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	res, err := client.SignedImageURL(context.Background(), "banners/promo.png", map[string]string{
		"response-cache-control": "public, max-age=300",
	})
	if err != nil {
		t.Fatalf("SignedImageURL returned error: %v", err)
	}
	if !strings.Contains(res.URL, "response-cache-control=") {
		t.Fatalf("expected cache control query parameter: %s", res.URL)
	}
}

func TestSignedImageURLValidation(t *testing.T) {
	signer := &fakeSigner{email: "test@example.iam.gserviceaccount.com"}

	if _, err := NewClient(nil, "bucket"); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected signer error, got %v", err)
	}
	if _, err := NewClient(signer, "  "); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected bucket error, got %v", err)
	}
	if _, err := NewClient(signer, "bucket", WithExpiry(2*time.Hour)); !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected expiry error, got %v", err)
	}

	client, err := NewClient(signer, "bucket")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	if _, err := client.SignedImageURL(context.Background(), "   ", nil); !errors.Is(err, errInvalidObject) {
		t.Fatalf("expected object error, got %v", err)
	}
}

func TestSignedImageURLSignerFailure(t *testing.T) {
	signer := &fakeSigner{email: "test@example.iam.gserviceaccount.com", err: errors.New("boom")}
	client, err := NewClient(signer, "bucket")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}

	if _, err := client.SignedImageURL(context.Background(), "banners/x.png", nil); err == nil {
		t.Fatal("expected signing error")
	}
}
