package redis

import (
	"context"
	"fmt"
	"time"

	"voicelink-backend/internal/database"
)

const onlineSetKey = "presence:online"

// PresenceRepository mirrors user online/offline status into Redis for
// dashboards and other readers outside this process
type PresenceRepository struct {
	client *database.RedisClient
	ttl    time.Duration
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient, ttl time.Duration) *PresenceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceRepository{client: client, ttl: ttl}
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetUserOnline marks user as online. Calling it again extends the TTL.
func (r *PresenceRepository) SetUserOnline(ctx context.Context, userID string) error {
	// Auto-expire so a crashed process does not leave users online forever
	if err := r.client.SafeSet(ctx, presenceKey(userID), "online", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}

	if err := r.client.SafeSAdd(ctx, onlineSetKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to add to online set: %w", err)
	}

	return nil
}

// SetUserOffline marks user as offline
func (r *PresenceRepository) SetUserOffline(ctx context.Context, userID string) error {
	if err := r.client.SafeDel(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}

	if err := r.client.SafeSRem(ctx, onlineSetKey, userID).Err(); err != nil {
		return fmt.Errorf("failed to remove from online set: %w", err)
	}

	return nil
}

// GetOnlineCount returns number of mirrored online users
func (r *PresenceRepository) GetOnlineCount(ctx context.Context) (int64, error) {
	count, err := r.client.SafeSCard(ctx, onlineSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return count, nil
}

// IsDegraded returns true if Redis is in degraded mode
func (r *PresenceRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
