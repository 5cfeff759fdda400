package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaderboardXPKey = "leaderboard:xp"

// ErrMiss is returned when a member or key is not cached.
var ErrMiss = errors.New("cache miss")

// ScoredUser is one member of the XP ranking.
type ScoredUser struct {
	UserID string
	XP     int64
	Rank   int64
}

// LeaderboardCache keeps the all-time XP ranking in a Redis sorted set.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewClient parses a redis:// URL and checks connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	zap.S().Infof("[Redis] Connected to %s (DB: %d)", opts.Addr, opts.DB)
	return rdb, nil
}

func NewLeaderboardCache(rdb *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: rdb}
}

// incrIfLoaded only touches a ranking that a rebuild has populated. An
// increment on a missing key would seed it with partial totals.
var incrIfLoaded = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
return redis.call("ZINCRBY", KEYS[1], ARGV[1], ARGV[2])
`)

// IncrXP adds delta to a user's cached total. A zero delta adds the user to
// the ranking. It returns ErrMiss when the ranking is not loaded.
func (c *LeaderboardCache) IncrXP(ctx context.Context, userID string, delta int64) error {
	err := incrIfLoaded.Run(ctx, c.rdb, []string{leaderboardXPKey}, delta, userID).Err()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("failed to increment cached xp: %w", err)
	}
	return nil
}

// Remove drops a user from the ranking.
func (c *LeaderboardCache) Remove(ctx context.Context, userID string) error {
	return c.rdb.ZRem(ctx, leaderboardXPKey, userID).Err()
}

// Replace swaps the whole ranking for totals in one transaction.
func (c *LeaderboardCache) Replace(ctx context.Context, totals map[string]int64) error {
	members := make([]redis.Z, 0, len(totals))
	for userID, xp := range totals {
		members = append(members, redis.Z{Score: float64(xp), Member: userID})
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, leaderboardXPKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, leaderboardXPKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild leaderboard cache: %w", err)
	}
	return nil
}

// Top returns the highest totals, best first. Ranks are competition ranks:
// equal totals share a rank.
func (c *LeaderboardCache) Top(ctx context.Context, limit int64) ([]ScoredUser, error) {
	zs, err := c.rdb.ZRevRangeWithScores(ctx, leaderboardXPKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}
	if len(zs) == 0 {
		return nil, ErrMiss
	}

	out := make([]ScoredUser, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		rank := int64(i + 1)
		if i > 0 && int64(z.Score) == out[i-1].XP {
			rank = out[i-1].Rank
		}
		out = append(out, ScoredUser{UserID: member, XP: int64(z.Score), Rank: rank})
	}
	return out, nil
}

// Rank returns the user's competition rank and cached total.
func (c *LeaderboardCache) Rank(ctx context.Context, userID string) (*ScoredUser, error) {
	score, err := c.rdb.ZScore(ctx, leaderboardXPKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached score: %w", err)
	}

	// members with a strictly higher score come first
	higher, err := c.rdb.ZCount(ctx, leaderboardXPKey, fmt.Sprintf("(%f", score), "+inf").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count higher scores: %w", err)
	}
	return &ScoredUser{UserID: userID, XP: int64(score), Rank: higher + 1}, nil
}
