package testutil

import (
	"context"
	"sync"

	"github.com/duffymelancholic/diabetes-management-app/internal/entity"
	"github.com/duffymelancholic/diabetes-management-app/internal/events"
)

// Recorder captures published event keys in order.
type Recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *Recorder) Publish(_ context.Context, name, action string, id int64, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, events.Key(name, action, id))
}

func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

// MealCache is an in-process meal cache that counts hits.
type MealCache struct {
	mu    sync.Mutex
	meals []entity.Meal
	valid bool
	Hits  int
	Err   error
}

func (c *MealCache) Get(context.Context) ([]entity.Meal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, false, c.Err
	}
	if !c.valid {
		return nil, false, nil
	}
	c.Hits++
	return append([]entity.Meal{}, c.meals...), true, nil
}

func (c *MealCache) Set(_ context.Context, meals []entity.Meal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.meals = append([]entity.Meal(nil), meals...)
	c.valid = true
	return nil
}

func (c *MealCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meals, c.valid = nil, false
	return c.Err
}
