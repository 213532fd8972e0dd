// Package cache keeps the global meal list in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
)

const mealsKey = "meals:all"

type MealCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMealCache stores entries for ttl; zero keeps them until invalidated.
func NewMealCache(rdb *redis.Client, ttl time.Duration) *MealCache {
	return &MealCache{rdb: rdb, ttl: ttl}
}

func (c *MealCache) Get(ctx context.Context) ([]entity.Meal, bool, error) {
	raw, err := c.rdb.Get(ctx, mealsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	meals := []entity.Meal{}
	if err := json.Unmarshal(raw, &meals); err != nil {
		// A corrupt entry counts as a miss and is overwritten on the next fill.
		return nil, false, nil
	}
	return meals, true, nil
}

func (c *MealCache) Set(ctx context.Context, meals []entity.Meal) error {
	raw, err := json.Marshal(meals)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, mealsKey, raw, c.ttl).Err()
}

func (c *MealCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, mealsKey).Err()
}
