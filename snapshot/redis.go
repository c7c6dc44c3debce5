package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/assetledger/balance"
)

const defaultKeyPrefix = "assetledger:snapshot:"

// Redis stores snapshots as JSON strings, one key per account.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTTL expires snapshots after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis returns a Redis-backed store. The client lifecycle is managed by the caller.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) key(accountID string) string { return r.prefix + accountID }

// Load implements Store.
func (r *Redis) Load(ctx context.Context, accountID string) (*balance.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("assetledger/redis: load snapshot %s: %w", accountID, err)
	}

	var s balance.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("assetledger/redis: decode snapshot %s: %w", accountID, err)
	}
	return &s, nil
}

// Save implements Store. Concurrent writers may race; the loser's snapshot
// is older but still consistent with the stream.
func (r *Redis) Save(ctx context.Context, s *balance.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("assetledger/redis: encode snapshot %s: %w", s.AccountID, err)
	}
	if err := r.client.Set(ctx, r.key(s.AccountID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("assetledger/redis: save snapshot %s: %w", s.AccountID, err)
	}
	return nil
}
