package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/loopguard/internal/core/domain"
	"github.com/vietddude/loopguard/internal/credential"
)

const (
	recordRetention = credential.RecordRetention
	maxTxRetries    = 10
)

// CooldownStore implements credential.Store on Redis. Updates run in a
// WATCH/MULTI transaction on the credential key only.
type CooldownStore struct {
	rdb    *redis.Client
	prefix string
	pool   string
	now    func() time.Time
}

// NewCooldownStore creates a Redis-backed cooldown store for a credential pool.
func NewCooldownStore(client *Client, pool string) *CooldownStore {
	return &CooldownStore{
		rdb:    client.rdb,
		prefix: client.prefix,
		pool:   pool,
		now:    time.Now,
	}
}

func (s *CooldownStore) key(id string) string {
	return cooldownKey(s.prefix, s.pool, id)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, g stringGetter, key, id string) (domain.CooldownRecord, error) {
	data, err := g.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return domain.CooldownRecord{CredentialID: id}, nil
	}
	if err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("failed to get cooldown record: %w", err)
	}

	var rec domain.CooldownRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("failed to unmarshal cooldown record: %w", err)
	}
	return rec, nil
}

func (s *CooldownStore) ttl(rec domain.CooldownRecord) time.Duration {
	ttl := recordRetention
	if remaining := rec.CooldownUntil.Sub(s.now()); remaining > 0 {
		ttl += remaining
	}
	return ttl
}

// Get retrieves the record for a credential.
func (s *CooldownStore) Get(ctx context.Context, id string) (domain.CooldownRecord, error) {
	return load(ctx, s.rdb, s.key(id), id)
}

// Update applies fn atomically to the record for a credential.
func (s *CooldownStore) Update(
	ctx context.Context,
	id string,
	fn func(rec *domain.CooldownRecord) error,
) (domain.CooldownRecord, error) {
	key := s.key(id)
	var out domain.CooldownRecord

	txf := func(tx *redis.Tx) error {
		rec, err := load(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.CredentialID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal cooldown record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl(rec))
			return nil
		})
		if err == nil {
			out = rec
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Key changed under us, retry
			continue
		}
		return domain.CooldownRecord{}, err
	}

	return domain.CooldownRecord{}, fmt.Errorf("cooldown update for %s: too much contention", id)
}

// Delete removes the record for a credential.
func (s *CooldownStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete cooldown record: %w", err)
	}
	return nil
}
