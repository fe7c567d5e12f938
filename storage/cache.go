package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskdesk-api/domain"
)

type backend interface {
	User(ctx context.Context, id string) (domain.User, error)
	UsersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error)
	UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	Board(ctx context.Context, id string) (domain.Board, error)
	BoardByKey(ctx context.Context, key string) (domain.Board, error)
	InsertBoard(ctx context.Context, board domain.Board) error
	UpdateBoard(ctx context.Context, board domain.Board) error
	DeleteBoard(ctx context.Context, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching for the hot
// directory reads: users by role, users by department and board-by-key
// snapshots. Writes evict; Redis errors fall back to the backing storage.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) UsersByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	key := usersDeptCacheKey(departmentID)
	if users, ok := c.loadUsers(ctx, key); ok {
		return users, nil
	}

	users, err := c.base.UsersByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	c.storeJSON(ctx, key, users)
	return users, nil
}

func (c *Cache) UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	key := usersRoleCacheKey(role)
	if users, ok := c.loadUsers(ctx, key); ok {
		return users, nil
	}

	users, err := c.base.UsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}

	c.storeJSON(ctx, key, users)
	return users, nil
}

func (c *Cache) DeleteUser(ctx context.Context, id string) error {
	u, lookupErr := c.base.User(ctx, id)
	if err := c.base.DeleteUser(ctx, id); err != nil {
		return err
	}
	if lookupErr == nil {
		keys := []string{usersDeptCacheKey(u.PrimaryDepartmentID)}
		for _, ref := range u.Roles {
			keys = append(keys, usersRoleCacheKey(ref.Role))
			if ref.DepartmentID != "" {
				keys = append(keys, usersDeptCacheKey(ref.DepartmentID))
			}
		}
		c.evict(ctx, keys...)
	}
	return nil
}

func (c *Cache) BoardByKey(ctx context.Context, key string) (domain.Board, error) {
	cacheKey := boardCacheKey(key)
	if board, ok := c.loadBoard(ctx, cacheKey); ok {
		return board, nil
	}

	board, err := c.base.BoardByKey(ctx, key)
	if err != nil {
		return domain.Board{}, err
	}

	c.storeJSON(ctx, cacheKey, board)
	return board, nil
}

func (c *Cache) InsertBoard(ctx context.Context, board domain.Board) error {
	if err := c.base.InsertBoard(ctx, board); err != nil {
		return err
	}
	c.evict(ctx, boardCacheKey(board.Key))
	return nil
}

func (c *Cache) UpdateBoard(ctx context.Context, board domain.Board) error {
	if err := c.base.UpdateBoard(ctx, board); err != nil {
		return err
	}
	c.evict(ctx, boardCacheKey(board.Key))
	return nil
}

func (c *Cache) DeleteBoard(ctx context.Context, id string) error {
	board, lookupErr := c.base.Board(ctx, id)
	if err := c.base.DeleteBoard(ctx, id); err != nil {
		return err
	}
	if lookupErr == nil {
		c.evict(ctx, boardCacheKey(board.Key))
	}
	return nil
}

func (c *Cache) loadUsers(ctx context.Context, key string) ([]domain.User, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var users []domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return users, true
}

func (c *Cache) loadBoard(ctx context.Context, key string) (domain.Board, bool) {
	if c.redis == nil {
		return domain.Board{}, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return domain.Board{}, false
	}
	var board domain.Board
	if err := json.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.Board{}, false
	}
	return board, true
}

func (c *Cache) storeJSON(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil || len(keys) == 0 {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func usersDeptCacheKey(departmentID string) string {
	return "users:dept:" + departmentID
}

func usersRoleCacheKey(role domain.Role) string {
	return "users:role:" + string(role)
}

func boardCacheKey(key string) string {
	return "board:key:" + key
}
