package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/murmur/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns a singleton Redis client based on loaded config, or nil
// when Redis was unreachable at first use. Callers fall back to in-memory or
// uncached paths on nil.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		addr := net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort))
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			if Sugar != nil {
				Sugar.Warnf("redis unavailable at %s, caching disabled: %v", addr, err)
			}
			_ = client.Close()
			return
		}
		redisClient = client
	})
	return redisClient
}
