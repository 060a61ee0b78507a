package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mfadel/solarbot/internal/domain"
)

// releaseLua deletes a lock key only if its value matches the caller's
// token, so one holder cannot release another holder's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshLua extends a lock's TTL only if the caller still owns it.
const refreshLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager using Redis SETNX with a TTL
// and Lua-based conditional release and refresh. The mainnet trading loop
// holds a singleton lock so two processes never execute concurrently.
type LockManager struct {
	rdb       *redis.Client
	releaseSc *redis.Script
	refreshSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:       c.Underlying(),
		releaseSc: redis.NewScript(releaseLua),
		refreshSc: redis.NewScript(refreshLua),
	}
}

var _ domain.LockManager = (*LockManager)(nil)

func lockKey(name string) string {
	return "lock:" + name
}

// Acquire takes the named lock, returning an ownership token, or
// domain.ErrLockHeld when another party holds it.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis: acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", domain.ErrLockHeld
	}
	return token, nil
}

// Release frees the lock if token still owns it. Releasing a lock that has
// already expired or changed hands is not an error.
func (lm *LockManager) Release(ctx context.Context, name, token string) error {
	if err := lm.releaseSc.Run(ctx, lm.rdb, []string{lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("redis: release lock %s: %w", name, err)
	}
	return nil
}

// Refresh extends the lock's TTL if token still owns it; it returns
// domain.ErrLockHeld when ownership has been lost.
func (lm *LockManager) Refresh(ctx context.Context, name, token string, ttl time.Duration) error {
	n, err := lm.refreshSc.Run(ctx, lm.rdb, []string{lockKey(name)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: refresh lock %s: %w", name, err)
	}
	if n == 0 {
		return domain.ErrLockHeld
	}
	return nil
}
