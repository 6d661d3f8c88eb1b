package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer produces signatures for GCS signed URL generation. Banner image
// URLs handed to clients are signed so the bucket can stay private.
type Signer interface {
	// Email is the service account email used as the GoogleAccessID.
	Email() string
	// SignBytes signs the canonical payload with the account private key.
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs payloads with an RSA service account key.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

type serviceAccountCredentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// NewServiceAccountSignerFromJSON parses a raw service account key file.
func NewServiceAccountSignerFromJSON(data []byte) (*ServiceAccountSigner, error) {
	if len(data) == 0 {
		return nil, errors.New("storage: service account JSON is empty")
	}

	var creds serviceAccountCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("storage: decode service account json: %w", err)
	}

	email := strings.TrimSpace(creds.ClientEmail)
	pemKey := strings.TrimSpace(creds.PrivateKey)
	switch {
	case email == "":
		return nil, errors.New("storage: client_email missing in service account JSON")
	case pemKey == "":
		return nil, errors.New("storage: private_key missing in service account JSON")
	}

	rsaKey, err := parseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: rsaKey}, nil
}

// NewServiceAccountSignerFromFile reads the key file from disk.
func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read service account file: %w", err)
	}
	return NewServiceAccountSignerFromJSON(contents)
}

// Email returns the signer service account email.
func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes applies RSA-SHA256 over the payload.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer not initialised")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: payload is empty")
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("storage: sign payload: %w", err)
	}
	return sig, nil
}

// parseRSAPrivateKey accepts PKCS#8 or PKCS#1 encoded keys; Google key files
// ship PKCS#8 but locally generated test keys are often PKCS#1.
func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("storage: failed to decode PEM private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("storage: private key is not RSA")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: parse RSA private key: %w", err)
	}
	return rsaKey, nil
}
