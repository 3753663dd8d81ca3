package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/majordomo-ai/majordomo/pkg/models"
)

const sessionKeyPrefix = "majordomo:session:"

// RedisStore is the optional persistence hook: the same Store contract
// backed by Redis. Writer serialization uses optimistic concurrency
// (WATCH on the session key); a conflicting append is retried once with a
// fresh snapshot and then surfaced as ErrStateUnavailable.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis using a standard URL
// (redis://host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{rdb: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests with
// miniredis.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisStore) Close() error { return r.rdb.Close() }

func sessionKey(id string) string { return sessionKeyPrefix + id }

// Append commits a turn inside a WATCH transaction so concurrent writers
// to the same session cannot interleave slot updates.
func (r *RedisStore) Append(ctx context.Context, sessionID string, turn *models.Turn, slotUpdates map[string]any) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("append: empty session id")
	}
	key := sessionKey(sessionID)

	var committed *models.Session
	txn := func(tx *redis.Tx) error {
		s, err := r.load(ctx, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if s == nil {
			now := time.Now().UTC()
			s = &models.Session{
				ID:        sessionID,
				Slots:     make(map[string]any),
				CreatedAt: now,
				UpdatedAt: now,
			}
		}

		t := cloneTurn(turn)
		t.SessionID = sessionID
		t.Index = s.NextIndex()
		s.Turns = append(s.Turns, t)
		for k, v := range slotUpdates {
			s.Slots[k] = v
		}
		s.Version++
		s.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed = s
		turn.Index = t.Index
		turn.SessionID = sessionID
		return nil
	}

	// One retry with a fresh snapshot per the write-conflict contract.
	for attempt := 0; attempt < 2; attempt++ {
		err := r.rdb.Watch(ctx, txn, key)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("append session %s: %w", sessionID, err)
		}
		log.Warn().Str("session_id", sessionID).Int("attempt", attempt+1).Msg("session write conflict, retrying with fresh snapshot")
	}
	return nil, fmt.Errorf("append session %s: %w", sessionID, ErrStateUnavailable)
}

// Get returns the stored session, or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := r.load(ctx, r.rdb.Get(ctx, sessionKey(sessionID)))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// Snapshot returns the stored session or a fresh empty one.
func (r *RedisStore) Snapshot(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := r.Get(ctx, sessionID)
	if err == ErrNotFound {
		return &models.Session{ID: sessionID, Slots: make(map[string]any)}, nil
	}
	return s, err
}

// ResetSlots deletes matching slots inside a WATCH transaction.
func (r *RedisStore) ResetSlots(ctx context.Context, sessionID string, match func(key string) bool) error {
	key := sessionKey(sessionID)
	txn := func(tx *redis.Tx) error {
		s, err := r.load(ctx, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if s == nil {
			return ErrNotFound
		}
		for k := range s.Slots {
			if match(k) {
				delete(s.Slots, k)
			}
		}
		s.Version++
		s.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := r.rdb.Watch(ctx, txn, key)
		if err == nil || !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("reset slots %s: %w", sessionID, ErrStateUnavailable)
}

// load decodes a GET result, mapping redis.Nil to a nil session.
func (r *RedisStore) load(_ context.Context, cmd *redis.StringCmd) (*models.Session, error) {
	data, err := cmd.Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Slots == nil {
		s.Slots = make(map[string]any)
	}
	return &s, nil
}
