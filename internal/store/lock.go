package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockPollInterval = 100 * time.Millisecond

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another event is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLocker returns a Locker backed by SET NX PX.
func NewRedisLocker(client redis.Cmdable, prefix string) Locker {
	return &redisLocker{client: client, prefix: prefix}
}

// Lock waits until the issue lock is free, ctx is done, or ttl elapses.
func (l *redisLocker) Lock(ctx context.Context, issueID int64, ttl time.Duration) (func(), error) {
	key := l.prefix + strconv.FormatInt(issueID, 10)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("issue %d: %w", issueID, ErrLocked)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	unlock := func() {
		// release even when the caller's context was cancelled mid-event
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			slog.WarnContext(ctx, "failed to release issue lock", "key", key, "error", err)
		}
	}
	return unlock, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type noopLocker struct{}

// NewNoopLocker is used when no Redis is configured.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Lock(context.Context, int64, time.Duration) (func(), error) {
	return func() {}, nil
}
