package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/pkg/config"
)

type fakeCommands struct {
	data     map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	expireNX int
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expireNX++
	if _, ok := f.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			n++
		}
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.data, key)
	return cmd
}

// Eval understands the two owner-checked scripts and nothing else.
func (f *fakeCommands) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if f.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case deleteIfEqualsScript:
		delete(f.data, keys[0])
		delete(f.ttls, keys[0])
	case expireIfEqualsScript:
		f.ttls[keys[0]] = time.Duration(args[1].(int64)) * time.Millisecond
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %q", script))
	}
	return redis.NewCmdResult(int64(1), nil)
}

func TestFixedWindowAllowExhaustsBudget(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for i := 1; i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "payment-status:order-1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i), count)
	}

	allowed, count, err := client.FixedWindowAllow(ctx, "payment-status:order-1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)

	key := client.RateLimitKey("payment-status:order-1")
	assert.Equal(t, time.Minute, fake.ttls[key])
	assert.Equal(t, 3, fake.expireNX)
}

func TestIncrWithTTLSkipsExpireWithoutTTL(t *testing.T) {
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	count, err := client.IncrWithTTL(context.Background(), "dz:rl:test", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Zero(t, fake.expireNX)
}

func TestGetDelConsumesOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}

	key := client.OAuthStateKey("mercadopago", "state-1")
	require.NoError(t, client.Set(ctx, key, "space-1", 10*time.Minute))

	value, err := client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "space-1", value)

	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDelWithoutKeysIsNoop(t *testing.T) {
	client := &Client{cmd: newFakeCommands()}
	assert.NoError(t, client.Del(context.Background()))
}

func TestUninitializedClientErrors(t *testing.T) {
	ctx := context.Background()
	client := &Client{}

	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.IncrWithTTL(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}

	assert.Equal(t, "dz:idem:webhook:stripe:evt_1", client.IdempotencyKey("webhook:stripe", "evt_1"))
	assert.Equal(t, "dz:rl:payment-status:o1", client.RateLimitKey("payment-status:o1"))
	assert.Equal(t, "dz:session:revoked:jti-1", client.RevokedTokenKey("jti-1"))
	assert.Equal(t, "dz:oauth_state:stripe", client.OAuthStateKey("stripe", ""))
	assert.Equal(t, "dz:lock:cron-worker:prod", client.LockKey("cron-worker", "prod"))
	assert.Equal(t, "dz:lock", client.LockKey())
	assert.Equal(t, "dz:idem:spaced:id", client.IdempotencyKey("  spaced  ", "id"))
}

func TestOptionsFromConfig(t *testing.T) {
	t.Run("url wins and config fills gaps", func(t *testing.T) {
		opts, err := optionsFromConfig(config.RedisConfig{
			URL:         "redis://:secret@cache.internal:6380/3",
			PoolSize:    20,
			DialTimeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
	})

	t.Run("address fallback", func(t *testing.T) {
		opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 1})
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", opts.Addr)
		assert.Equal(t, 1, opts.DB)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := optionsFromConfig(config.RedisConfig{})
		assert.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := optionsFromConfig(config.RedisConfig{URL: "http://nope"})
		assert.Error(t, err)
	})
}

func TestOwnerCheckedMutations(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.LockKey("cron-worker", "prod")
	require.NoError(t, client.Set(ctx, key, "replica-a/1", time.Minute))

	ok, err := client.ExpireIfEquals(ctx, key, "replica-b/2", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, fake.ttls[key])

	ok, err = client.ExpireIfEquals(ctx, key, "replica-a/1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, fake.ttls[key])

	ok, err = client.DeleteIfEquals(ctx, key, "replica-b/2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, fake.data, key)

	ok, err = client.DeleteIfEquals(ctx, key, "replica-a/1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, fake.data, key)
}
