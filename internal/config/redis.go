package config

import "github.com/go-redis/redis/v8"

// NewRedisClient returns nil when addr is empty, which disables caching.
func NewRedisClient(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}
