// Package cache keeps game question banks in Redis in front of the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wordgames/internal/config"
	"wordgames/internal/models"
	"wordgames/internal/observability"
	"wordgames/internal/store"
	contextutils "wordgames/internal/utils"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// Client is the subset of the Redis API the cache uses
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "redis ping %s: %v", cfg.RedisAddr, err)
	}
	return rdb, nil
}

// QuestionCache decorates a QuestionStore, caching each kind's full question bank.
// Exclusion and word filtering happen in memory on the cached bank.
type QuestionCache struct {
	next   store.QuestionStore
	rdb    Client
	ttl    time.Duration
	prefix string
	logger *observability.Logger
}

// NewQuestionCache wraps next with a Redis cache
func NewQuestionCache(next store.QuestionStore, rdb Client, cfg config.CacheConfig, logger *observability.Logger) *QuestionCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = config.DefaultCacheKeyPrefix
	}
	return &QuestionCache{next: next, rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

// Speaker and scribe share a bank, so the key is the question table rather than the kind.
func (c *QuestionCache) key(kind models.GameKind) (string, bool) {
	spec, ok := kind.Spec()
	if !ok || !spec.Playable() {
		return "", false
	}
	return c.prefix + ":questions:" + spec.QuestionTable, true
}

// ListQuestions implements store.QuestionStore
func (c *QuestionCache) ListQuestions(ctx context.Context, kind models.GameKind, excluded []int, words []string) (result0 []models.Question, err error) {
	ctx, span := observability.TraceCacheFunction(ctx, "list_questions", observability.AttributeGameKind(kind.String()))
	defer observability.FinishSpan(span, &err)

	key, ok := c.key(kind)
	if !ok {
		return c.next.ListQuestions(ctx, kind, excluded, words)
	}

	bank, hit, err := c.load(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "Question cache unavailable, reading from store", map[string]interface{}{"key": key, "error": err.Error()})
		return c.next.ListQuestions(ctx, kind, excluded, words)
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))

	if !hit {
		bank, err = c.next.ListQuestions(ctx, kind, nil, nil)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, bank)
	}

	return filterQuestions(bank, excluded, words), nil
}

func (c *QuestionCache) load(ctx context.Context, key string) ([]models.Question, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var bank []models.Question
	if err := json.Unmarshal(raw, &bank); err != nil {
		c.logger.Warn(ctx, "Discarding undecodable cached question bank", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false, nil
	}
	return bank, true, nil
}

func (c *QuestionCache) store(ctx context.Context, key string, bank []models.Question) {
	raw, err := json.Marshal(bank)
	if err != nil {
		c.logger.Warn(ctx, "Failed to encode question bank for cache", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "Failed to cache question bank", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func filterQuestions(bank []models.Question, excluded []int, words []string) []models.Question {
	skip := make(map[int]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	var out []models.Question
	for _, q := range bank {
		if skip[q.ID] || !store.MatchesWords(q.SourceText, words) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// GetQuestion implements store.QuestionStore
func (c *QuestionCache) GetQuestion(ctx context.Context, kind models.GameKind, id int) (*models.Question, error) {
	return c.next.GetQuestion(ctx, kind, id)
}

// SaveQuestion implements store.QuestionStore and drops the kind's cached bank
func (c *QuestionCache) SaveQuestion(ctx context.Context, kind models.GameKind, q *models.Question) (err error) {
	ctx, span := observability.TraceCacheFunction(ctx, "save_question", observability.AttributeGameKind(kind.String()))
	defer observability.FinishSpan(span, &err)

	if err = c.next.SaveQuestion(ctx, kind, q); err != nil {
		return err
	}
	if key, ok := c.key(kind); ok {
		if delErr := c.rdb.Del(ctx, key).Err(); delErr != nil {
			c.logger.Warn(ctx, "Failed to invalidate cached question bank", map[string]interface{}{"key": key, "error": delErr.Error()})
		}
	}
	return nil
}
