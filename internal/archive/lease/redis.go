package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "github.com/okatech-org/digitalium-archive/pkg/domain"
)

// Redis implements Locker with SET NX PX so leases work across engine
// instances. The key expires with its TTL even when a holder crashes.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "archive:lease:"}
}

func (l *Redis) key(docID id.DocumentID) string {
	return l.prefix + docID.String()
}

func (l *Redis) Acquire(ctx context.Context, docID id.DocumentID, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(docID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (l *Redis) Release(ctx context.Context, docID id.DocumentID) error {
	if err := l.client.Del(ctx, l.key(docID)).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
