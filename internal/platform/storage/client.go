package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultSignedURLExpiry = 15 * time.Minute
	maxSignedURLExpiry     = time.Hour
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates signed download URLs for promo imagery stored in a bucket.
type Client struct {
	signer Signer
	bucket string
	expiry time.Duration
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithExpiry overrides the signed URL lifetime.
func WithExpiry(expiry time.Duration) ClientOption {
	return func(c *Client) {
		if expiry > 0 {
			c.expiry = expiry
		}
	}
}

// NewClient constructs a signed URL client bound to a single bucket.
func NewClient(signer Signer, bucket string, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}

	client := &Client{
		signer: signer,
		bucket: bucket,
		expiry: defaultSignedURLExpiry,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.expiry > maxSignedURLExpiry {
		return nil, errExpiryTooLong
	}
	return client, nil
}

// SignedURLResult describes the generated signed URL details.
type SignedURLResult struct {
	URL       string
	ExpiresAt time.Time
}

// SignedImageURL creates a GET signed URL for the named object. Optional
// response overrides (cache control, content type) are passed as query
// parameters understood by the storage backend.
func (c *Client) SignedImageURL(ctx context.Context, object string, query map[string]string) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if ctx == nil {
		return SignedURLResult{}, errors.New("storage: context is required")
	}
	object = strings.Trim(strings.TrimSpace(object), "/")
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}

	opts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         c.scheme,
		Method:         "GET",
		Expires:        c.now().Add(c.expiry),
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}
	if len(query) > 0 {
		opts.QueryParameters = mapToURLValues(query)
	}

	signedURL, err := storage.SignedURL(c.bucket, object, &opts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign image url: %w", err)
	}

	return SignedURLResult{URL: signedURL, ExpiresAt: opts.Expires}, nil
}

func mapToURLValues(values map[string]string) url.Values {
	out := make(url.Values, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Add(key, values[key])
	}
	return out
}
