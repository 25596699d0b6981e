package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink-backend/internal/database"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *PresenceRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := database.NewRedisClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })
	return mr, NewPresenceRepository(client, time.Minute)
}

func TestPresenceRepository_OnlineOffline(t *testing.T) {
	mr, repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetUserOnline(ctx, "alice"))
	require.NoError(t, repo.SetUserOnline(ctx, "bob"))

	assert.True(t, mr.Exists("presence:alice"))
	assert.Equal(t, time.Minute, mr.TTL("presence:alice"))

	members, err := mr.Members("presence:online")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	require.NoError(t, repo.SetUserOffline(ctx, "alice"))
	assert.False(t, mr.Exists("presence:alice"))

	count, err := repo.GetOnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPresenceRepository_TTLExpiry(t *testing.T) {
	mr, repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetUserOnline(ctx, "alice"))
	mr.FastForward(30 * time.Second)
	require.NoError(t, repo.SetUserOnline(ctx, "alice"))
	mr.FastForward(45 * time.Second)

	assert.True(t, mr.Exists("presence:alice"), "setting again extends the TTL")

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("presence:alice"))
}

func TestPresenceRepository_RedisDown(t *testing.T) {
	mr, repo := newTestRepo(t)
	mr.Close()

	err := repo.SetUserOnline(context.Background(), "alice")
	assert.Error(t, err)
}

func TestPresenceRepository_Degraded(t *testing.T) {
	mr, repo := newTestRepo(t)
	mr.Close()
	require.Error(t, repo.client.HealthCheck(context.Background()))

	assert.True(t, repo.IsDegraded())
	_, err := repo.GetOnlineCount(context.Background())
	assert.Error(t, err)
}
