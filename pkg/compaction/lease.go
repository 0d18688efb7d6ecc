package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if this holder still owns it.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Lease is a Redis lock that makes one replica run each tick.
type Lease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	token  string
}

// NewLease creates a lease under prefix+"compaction:lease".
func NewLease(client redis.Cmdable, prefix string, ttl time.Duration) *Lease {
	if prefix == "" {
		prefix = "memvault:"
	}
	return &Lease{
		client: client,
		key:    prefix + "compaction:lease",
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// Acquire reports whether this holder obtained the lease.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire compaction lease: %w", err)
	}
	return ok, nil
}

// Release gives the lease up if still held.
func (l *Lease) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release compaction lease: %w", err)
	}
	return nil
}
