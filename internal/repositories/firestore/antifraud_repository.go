package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/dashmart/promotions/internal/platform/firestore"
	"github.com/dashmart/promotions/internal/repositories"
)

const (
	fingerprintCollection          = "fingerprints"
	userWhitelistCollection        = "antifraudUserWhitelist"
	fingerprintWhitelistCollection = "antifraudFingerprintWhitelist"
)

type fingerprintDocument struct {
	UserIDs   []string  `firestore:"userIds"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type whitelistDocument struct {
	CreatedAt time.Time `firestore:"createdAt"`
}

// AntifraudRepository tracks device fingerprints and the antifraud whitelists
// within Firestore. Each fingerprint document accumulates the distinct users
// seen redeeming with it.
type AntifraudRepository struct {
	fingerprints         *pfirestore.BaseRepository[fingerprintDocument]
	userWhitelist        *pfirestore.BaseRepository[whitelistDocument]
	fingerprintWhitelist *pfirestore.BaseRepository[whitelistDocument]
}

// NewAntifraudRepository constructs a Firestore-backed antifraud repository.
func NewAntifraudRepository(provider *pfirestore.Provider) (*AntifraudRepository, error) {
	if provider == nil {
		return nil, errors.New("antifraud repository requires firestore provider")
	}
	return &AntifraudRepository{
		fingerprints:         pfirestore.NewBaseRepository[fingerprintDocument](provider, fingerprintCollection, nil, nil),
		userWhitelist:        pfirestore.NewBaseRepository[whitelistDocument](provider, userWhitelistCollection, nil, nil),
		fingerprintWhitelist: pfirestore.NewBaseRepository[whitelistDocument](provider, fingerprintWhitelistCollection, nil, nil),
	}, nil
}

// CountUsersByFingerprint counts distinct users other than userID associated
// with the fingerprint. An unknown fingerprint counts as zero.
func (r *AntifraudRepository) CountUsersByFingerprint(ctx context.Context, fingerprint, userID string) (int64, error) {
	if r == nil || r.fingerprints == nil {
		return 0, errors.New("antifraud repository not initialised")
	}
	fp := strings.TrimSpace(fingerprint)
	if fp == "" {
		return 0, errors.New("antifraud repository: fingerprint is required")
	}

	doc, err := r.fingerprints.Get(ctx, fp)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	uid := strings.TrimSpace(userID)
	var count int64
	for _, seen := range doc.Data.UserIDs {
		if seen != uid {
			count++
		}
	}
	return count, nil
}

// IsUserWhitelisted reports whether the user is exempt from fingerprint checks.
func (r *AntifraudRepository) IsUserWhitelisted(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.userWhitelist == nil {
		return false, errors.New("antifraud repository not initialised")
	}
	return r.whitelisted(ctx, r.userWhitelist, userID)
}

// IsFingerprintWhitelisted reports whether the fingerprint is exempt from checks.
func (r *AntifraudRepository) IsFingerprintWhitelisted(ctx context.Context, fingerprint string) (bool, error) {
	if r == nil || r.fingerprintWhitelist == nil {
		return false, errors.New("antifraud repository not initialised")
	}
	return r.whitelisted(ctx, r.fingerprintWhitelist, fingerprint)
}

// RegisterFingerprint associates the fingerprint with the user; repeats are no-ops.
func (r *AntifraudRepository) RegisterFingerprint(ctx context.Context, userID, fingerprint string) error {
	if r == nil || r.fingerprints == nil {
		return errors.New("antifraud repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	fp := strings.TrimSpace(fingerprint)
	if uid == "" || fp == "" {
		return errors.New("antifraud repository: user id and fingerprint are required")
	}

	ref, err := r.fingerprints.DocumentRef(ctx, fp)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"userIds":   firestore.ArrayUnion(uid),
		"updatedAt": time.Now().UTC(),
	}
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		err = tx.Set(ref, payload, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, payload, firestore.MergeAll)
	}
	if err != nil {
		return pfirestore.WrapError("fingerprints.register", err)
	}
	return nil
}

func (r *AntifraudRepository) whitelisted(ctx context.Context, base *pfirestore.BaseRepository[whitelistDocument], id string) (bool, error) {
	key := strings.TrimSpace(id)
	if key == "" {
		return false, nil
	}
	if _, err := base.Get(ctx, key); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return status.Code(err) == codes.NotFound
}

var _ repositories.AntifraudRepository = (*AntifraudRepository)(nil)
