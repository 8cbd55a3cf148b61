package repository

import (
	"context"
	"fmt"

	"demonlist/internal/model"
	"demonlist/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	// Redis Key 定义
	ScoreboardKey = "demonlist:scoreboard"
)

type RedisRepository struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
		logger: logger.NewLogger("redis_repository"),
	}
}

// PublishScore 把玩家总分写入排行榜（Redis Sorted Set）
func (r *RedisRepository) PublishScore(ctx context.Context, playerID string, total float64) error {
	_, err := r.client.ZAdd(ctx, ScoreboardKey, &redis.Z{
		Score:  total,
		Member: playerID,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish score to redis: %w", err)
	}

	r.logger.Debug("Published player score",
		"playerID", playerID,
		"total", total)

	return nil
}

// RemovePlayer 把玩家从排行榜移除（总分归零时使用）
func (r *RedisRepository) RemovePlayer(ctx context.Context, playerID string) error {
	_, err := r.client.ZRem(ctx, ScoreboardKey, playerID).Result()
	if err != nil {
		return fmt.Errorf("failed to remove player from redis: %w", err)
	}
	return nil
}

// TopPlayers 获取前N名玩家
func (r *RedisRepository) TopPlayers(ctx context.Context, n int64) ([]*model.RankInfo, error) {
	result, err := r.client.ZRevRangeWithScores(ctx, ScoreboardKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}

	rankings := make([]*model.RankInfo, 0, len(result))
	for i, z := range result {
		playerID, _ := z.Member.(string)
		rankings = append(rankings, &model.RankInfo{
			PlayerID: playerID,
			Rank:     i + 1,
			Total:    z.Score,
		})
	}

	return rankings, nil
}

// PlayerRank 获取玩家排名（1-based）
func (r *RedisRepository) PlayerRank(ctx context.Context, playerID string) (int64, error) {
	rank, err := r.client.ZRevRank(ctx, ScoreboardKey, playerID).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, ErrPlayerNotFound
		}
		return -1, fmt.Errorf("failed to get player rank: %w", err)
	}

	return rank + 1, nil
}

// BoardSize 排行榜人数
func (r *RedisRepository) BoardSize(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, ScoreboardKey).Result()
}

// HealthCheck 健康检查
func (r *RedisRepository) HealthCheck(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	return err
}

// Close 关闭连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
