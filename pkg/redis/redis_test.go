package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")
	cfg := APIRateLimit("127.0.0.1", 60)

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 60, remaining)

	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestHeatCache_Disabled(t *testing.T) {
	cache := NewHeatCache(disabledClient(t), "test")
	ctx := context.Background()

	require.NoError(t, cache.SetHeat(ctx, "k", &contracts.HeatTable{Name: "x"}, time.Minute))

	got, found, err := cache.GetHeat(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "heat:monthly_item_heat_value:k5:abc", HeatKey("abc", "monthly_item_heat_value", 5))
	assert.Equal(t, RateLimitConfig{Key: "api:c", Limit: 10, Window: time.Minute}, APIRateLimit("c", 10))
}

func integrationClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() || os.Getenv("REDIS_ENABLED") != "true" {
		t.Skip("REDIS_ENABLED not set, skipping integration test")
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHeatCache_RoundTrip(t *testing.T) {
	client := integrationClient(t)
	cache := NewHeatCache(client, "salescast_test")
	ctx := context.Background()

	want := &contracts.HeatTable{
		Name:     "monthly_item_heat_value",
		Keys:     []contracts.Dimension{contracts.DimMonth, contracts.DimItem},
		Slice:    []contracts.Dimension{contracts.DimMonth},
		Clusters: 5,
		Rows: []contracts.HeatLabel{
			{Key: contracts.NewStatKey().With(contracts.DimMonth, 0).With(contracts.DimItem, 1), Sum: 3, Mean: 1.5, Heat: 1},
		},
	}
	require.NoError(t, cache.SetHeat(ctx, "rt", want, time.Minute))

	got, found, err := cache.GetHeat(ctx, "rt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestRateLimiter_Limit(t *testing.T) {
	client := integrationClient(t)
	limiter := NewRateLimiter(client, "salescast_test")
	cfg := RateLimitConfig{Key: "limit-" + time.Now().Format("150405.000"), Limit: 2, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, remaining, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}
