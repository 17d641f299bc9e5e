package presence

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisOpTimeout = 2 * time.Second

// delIfOwned removes the presence key only when it still holds the
// given connection id.
var delIfOwned = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisRegistry is a Registry backed by Redis, for deployments that
// want presence to survive a server restart or be visible to other
// tooling. Lookup failures degrade to "offline" and are logged rather
// than propagated; delivery decisions treat an unreachable registry
// the same as an absent user.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry creates a registry using the given client.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: "presence:"}
}

// Connect implements Registry.
func (r *RedisRegistry) Connect(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+userID, connID, 0).Err(); err != nil {
		slog.Error("presence connect failed", "user", userID, "error", err)
	}
}

// Disconnect implements Registry.
func (r *RedisRegistry) Disconnect(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := delIfOwned.Run(ctx, r.client, []string{r.prefix + userID}, connID).Err(); err != nil && err != redis.Nil {
		slog.Error("presence disconnect failed", "user", userID, "error", err)
	}
}

// Handle implements Registry.
func (r *RedisRegistry) Handle(userID string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	connID, err := r.client.Get(ctx, r.prefix+userID).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Error("presence lookup failed", "user", userID, "error", err)
		}
		return "", false
	}
	return connID, true
}

// IsOnline implements Registry.
func (r *RedisRegistry) IsOnline(userID string) bool {
	_, ok := r.Handle(userID)
	return ok
}

// Snapshot implements Registry.
func (r *RedisRegistry) Snapshot() []string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	users := []string{}
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		users = append(users, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		slog.Error("presence snapshot failed", "error", err)
	}
	return users
}
