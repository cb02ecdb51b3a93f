package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cds-ils/internal/repositories"
	apperrors "cds-ils/pkg/errors"
)

const lockKey = "sync:ldap:lock"

// Lock keeps two runs from reconciling the same tables at once, also across processes.
type Lock struct {
	cache repositories.CacheRepositoryInterface
	ttl   time.Duration
}

func NewLock(cache repositories.CacheRepositoryInterface, ttl time.Duration) *Lock {
	return &Lock{cache: cache, ttl: ttl}
}

// Acquire takes the lock or fails with apperrors.ErrSyncInProgress.
// The returned release only deletes the key while it still holds our token.
func (l *Lock) Acquire(ctx context.Context) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, lockKey, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrSyncInProgress
	}

	release := func(ctx context.Context) {
		current, err := l.cache.Get(ctx, lockKey)
		if err == nil && current == token {
			_ = l.cache.Del(ctx, lockKey)
		}
	}
	return release, nil
}
