package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tarefas-api/domain"
)

type backend interface {
	InsertTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasksByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error)
	DeleteTask(ctx context.Context, id, ownerEmail string) error
	InsertComment(ctx context.Context, c domain.Comment) error
	GetComment(ctx context.Context, taskID, commentID string) (domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	DeleteComment(ctx context.Context, taskID, commentID string) error
}

// Cache wraps a Storage instance with Redis-backed caching of owner task
// lists. Task writes evict the owner's cached list so the next read (and the
// stream's next snapshot) observes the mutation. Comment reads stay
// point-in-time and are never cached.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.OwnerEmail)
	return nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) ListTasksByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, ownerEmail); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasksByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	c.store(ctx, ownerEmail, tasks)
	return tasks, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id, ownerEmail string) error {
	if err := c.base.DeleteTask(ctx, id, ownerEmail); err != nil {
		return err
	}
	c.evict(ctx, ownerEmail)
	return nil
}

func (c *Cache) InsertComment(ctx context.Context, cm domain.Comment) error {
	return c.base.InsertComment(ctx, cm)
}

func (c *Cache) GetComment(ctx context.Context, taskID, commentID string) (domain.Comment, error) {
	return c.base.GetComment(ctx, taskID, commentID)
}

func (c *Cache) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	return c.base.ListComments(ctx, taskID)
}

func (c *Cache) DeleteComment(ctx context.Context, taskID, commentID string) error {
	return c.base.DeleteComment(ctx, taskID, commentID)
}

func (c *Cache) loadFromCache(ctx context.Context, ownerEmail string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(ownerEmail)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(ownerEmail)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(ownerEmail)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, ownerEmail string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(ownerEmail), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, ownerEmail string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(ownerEmail)).Result()
}

func tasksCacheKey(ownerEmail string) string {
	return "tasks:" + ownerEmail
}
