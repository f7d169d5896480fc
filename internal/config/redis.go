package config

import (
	"os"
	"sync"
	"time"
)

// RedisConfig is optional; an empty Addr keeps locking in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

var (
	redisConfig *RedisConfig
	redisOnce   sync.Once
)

func LoadRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		redisConfig = &RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
			LockTTL:  envDuration("REDIS_LOCK_TTL", 5*time.Minute),
		}
	})
	return redisConfig
}
