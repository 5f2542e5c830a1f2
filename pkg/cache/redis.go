package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"edutest-system/internal/models"
)

const (
	questionSetTTL = 6 * time.Hour
	snapshotTTL    = 24 * time.Hour
	recentResults  = 20
)

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

// SetQuestionSet caches the ordered question list for a test.
func (c *RedisCache) SetQuestionSet(testID uint, questions []models.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("questions:test:%d", testID)
	return c.client.Set(c.ctx, key, data, questionSetTTL).Err()
}

func (c *RedisCache) GetQuestionSet(testID uint) ([]models.Question, error) {
	key := fmt.Sprintf("questions:test:%d", testID)
	data, err := c.client.Get(c.ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	err = json.Unmarshal(data, &questions)
	return questions, err
}

func (c *RedisCache) InvalidateQuestionSet(testID uint) error {
	key := fmt.Sprintf("questions:test:%d", testID)
	return c.client.Del(c.ctx, key).Err()
}

// SetSessionSnapshot stores the serialized state of a live session so a
// reconnecting client can read where it left off. The value is opaque to
// the cache; the session package owns the format.
func (c *RedisCache) SetSessionSnapshot(sessionID string, snapshot []byte) error {
	key := "session:" + sessionID
	return c.client.Set(c.ctx, key, snapshot, snapshotTTL).Err()
}

func (c *RedisCache) GetSessionSnapshot(sessionID string) ([]byte, error) {
	key := "session:" + sessionID
	return c.client.Get(c.ctx, key).Bytes()
}

func (c *RedisCache) DeleteSessionSnapshot(sessionID string) error {
	key := "session:" + sessionID
	return c.client.Del(c.ctx, key).Err()
}

// PushRecentResult records a finished session in the user's result history,
// scored by finish time so the newest entries sort first. The list is
// trimmed so only the most recent results are kept.
func (c *RedisCache) PushRecentResult(userID uint, result *models.TestResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("results:user:%d", userID)
	pipe := c.client.Pipeline()
	pipe.ZAdd(c.ctx, key, &redis.Z{
		Score:  float64(result.FinishedAt.UnixMilli()),
		Member: data,
	})
	pipe.ZRemRangeByRank(c.ctx, key, 0, int64(-recentResults-1))
	pipe.Expire(c.ctx, key, snapshotTTL)
	_, err = pipe.Exec(c.ctx)
	return err
}

func (c *RedisCache) GetRecentResults(userID uint) ([]models.TestResult, error) {
	key := fmt.Sprintf("results:user:%d", userID)
	raw, err := c.client.ZRevRange(c.ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	results := make([]models.TestResult, 0, len(raw))
	for _, entry := range raw {
		var result models.TestResult
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
