package session_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/majordomo-ai/majordomo/internal/session"
	"github.com/majordomo-ai/majordomo/pkg/models"
)

func newRedisStore(t *testing.T) *session.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return session.NewRedisStoreFromClient(rdb)
}

func TestRedisAppendAndGet(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	turn := &models.Turn{ID: "t1", Input: "hello", Output: "hi", Status: models.TurnCompleted}
	sess, err := s.Append(ctx, "s1", turn, map[string]any{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, 1, len(sess.Turns))
	require.Equal(t, 0, turn.Index)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Turns[0].Input)
	require.Equal(t, "v", got.Slots["k"])
	require.EqualValues(t, 1, got.Version)
}

func TestRedisIndicesSurviveReload(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "s1", &models.Turn{ID: "t", Input: "m", Status: models.TurnCompleted}, nil)
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Turns, 5)
	for i, turn := range got.Turns {
		require.Equal(t, i, turn.Index)
	}
}

func TestRedisGetNotFound(t *testing.T) {
	s := newRedisStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisSnapshotUnknownSession(t *testing.T) {
	s := newRedisStore(t)
	snap, err := s.Snapshot(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, snap.Turns)
	require.NotNil(t, snap.Slots)
}

func TestRedisResetSlots(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "s1", &models.Turn{ID: "t", Status: models.TurnCompleted}, map[string]any{
		"journal.last_entry": "x",
		"home.lights":        "off",
	})
	require.NoError(t, err)

	err = s.ResetSlots(ctx, "s1", func(key string) bool { return key == "journal.last_entry" })
	require.NoError(t, err)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotContains(t, got.Slots, "journal.last_entry")
	require.Contains(t, got.Slots, "home.lights")
}
