package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopchat/internal/domain/entity"
)

// OfflineBuffer is the fast per-recipient backlog: an ordered Redis list per
// identity with a bounded TTL. It is a cache in front of the durable offline
// store, not a second source of truth. Pop-and-remove is split into Peek and
// Trim so the push worker can confirm delivery before removal; a crash in
// between just redelivers, which at-least-once allows.
type OfflineBuffer struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOfflineBuffer(rdb *redis.Client, ttl time.Duration) *OfflineBuffer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &OfflineBuffer{rdb: rdb, ttl: ttl}
}

// Push appends a message to the recipient's backlog in arrival order.
func (b *OfflineBuffer) Push(ctx context.Context, recipientKey string, message *entity.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal offline message: %w", err)
	}

	key := offlineKey(recipientKey)
	if err := b.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push offline message: %w", err)
	}
	// Refresh the backlog TTL on every write.
	return b.rdb.Expire(ctx, key, b.ttl).Err()
}

// Peek returns up to n messages from the head of the backlog in FIFO order
// without removing them.
func (b *OfflineBuffer) Peek(ctx context.Context, recipientKey string, n int64) ([]*entity.Message, error) {
	members, err := b.rdb.LRange(ctx, offlineKey(recipientKey), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("peek offline messages: %w", err)
	}

	var messages []*entity.Message
	for _, member := range members {
		var message entity.Message
		if err := json.Unmarshal([]byte(member), &message); err != nil {
			continue // Skip malformed entries
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

// Trim removes the first n messages, after the push for them was confirmed.
func (b *OfflineBuffer) Trim(ctx context.Context, recipientKey string, n int64) error {
	return b.rdb.LTrim(ctx, offlineKey(recipientKey), n, -1).Err()
}

// Len reports the backlog size for a recipient.
func (b *OfflineBuffer) Len(ctx context.Context, recipientKey string) (int64, error) {
	return b.rdb.LLen(ctx, offlineKey(recipientKey)).Result()
}

// Identities scans for every recipient with a non-empty backlog. Used by the
// periodic sweep to catch identities whose online event was missed.
func (b *OfflineBuffer) Identities(ctx context.Context) ([]string, error) {
	prefix := offlineKey("")

	var keys []string
	iter := b.rdb.Scan(ctx, 0, offlineKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan offline backlogs: %w", err)
	}
	return keys, nil
}
