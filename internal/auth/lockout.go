// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"time"

	"github.com/seedlab/seedlab/internal/cache"
)

// Lockout counts failed logins per account in the cache and locks the
// account for window once max failures accumulate within window.
type Lockout struct {
	cache  cache.Cache
	max    int
	window time.Duration
}

func NewLockout(c cache.Cache, max int, window time.Duration) *Lockout {
	return &Lockout{cache: c, max: max, window: window}
}

func failKey(account string) string { return "auth:fail:" + account }
func lockKey(account string) string { return "auth:lock:" + account }

// Locked returns the remaining lock time, or 0.
func (l *Lockout) Locked(ctx context.Context, account string) (time.Duration, error) {
	return l.cache.TTL(ctx, lockKey(account))
}

// Fail records a failure and returns the lock duration when this failure locked the account.
func (l *Lockout) Fail(ctx context.Context, account string) (time.Duration, error) {
	n, err := l.cache.Incr(ctx, failKey(account), l.window)
	if err != nil {
		return 0, err
	}
	if l.max <= 0 || n < int64(l.max) {
		return 0, nil
	}
	if err := l.cache.Set(ctx, lockKey(account), true, l.window); err != nil {
		return 0, err
	}
	return l.window, l.cache.Delete(ctx, failKey(account))
}

// Reset clears failures and any lock.
func (l *Lockout) Reset(ctx context.Context, account string) error {
	return l.cache.Delete(ctx, failKey(account), lockKey(account))
}
