package store

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/mintbox/core"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore().WithClock(func() time.Time { return now })

	addr := "0xAbCdEf0000000000000000000000000000000000"
	require.NoError(t, s.Put(ctx, addr, "r1", time.Hour))
	require.NoError(t, s.Put(ctx, addr, "r2", time.Hour))

	token, found, err := s.Get(ctx, core.NormalizeAddress(addr))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "r2", token)

	now = now.Add(time.Hour)
	_, found, err = s.Get(ctx, addr)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, addr, "r3", time.Hour))
	n, err := s.Delete(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryIdentityStore_RotateNonceRace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdentityStore()

	addr := "0x0000000000000000000000000000000000000003"
	_, err := s.UpsertNonce(ctx, addr, "start")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RotateNonce(ctx, addr, "start", "next")
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestMemoryIdentityStore_UpdateProfileConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdentityStore()

	a, err := s.UpsertNonce(ctx, "0x00000000000000000000000000000000000000a1", "n")
	require.NoError(t, err)
	b, err := s.UpsertNonce(ctx, "0x00000000000000000000000000000000000000b0", "n")
	require.NoError(t, err)

	email := "shared@example.com"
	_, err = s.UpdateProfile(ctx, a.ID, core.ProfileUpdate{Email: &email})
	require.NoError(t, err)

	_, err = s.UpdateProfile(ctx, b.ID, core.ProfileUpdate{Email: &email})
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := s.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestRedisSessionStore(t *testing.T) {
	url := os.Getenv("MINTBOX_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MINTBOX_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	s := NewRedisSessionStore(client)
	addr := "0x00000000000000000000000000000000000000C0"

	require.NoError(t, s.Put(ctx, addr, "token", time.Minute))

	token, found, err := s.Get(ctx, addr)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "token", token)

	ttl, err := client.TTL(ctx, "mintbox:session:"+core.NormalizeAddress(addr)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	n, err := s.Delete(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err = s.Get(ctx, addr)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisSessionStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	s := NewRedisSessionStore(client)
	_, _, err := s.Get(context.Background(), "0x00000000000000000000000000000000000000c0")
	assert.ErrorIs(t, err, core.ErrSessionStore)
}
