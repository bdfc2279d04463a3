package cache

import (
	"time"

	"github.com/go-redis/redis"

	"github.com/pgsleuth/pgsleuth/util"
)

// Cache - Key/value cache for analysis results. Backed by Redis when a URL
// is configured and reachable; otherwise (or after Redis errors) values go
// to an in-process TTL map so callers never see the difference.
type Cache struct {
	logger *util.Logger
	client *redis.Client
	memory *TTLMap
	ttl    time.Duration
}

func New(logger *util.Logger, redisURL string, ttlSecs int) *Cache {
	c := &Cache{
		logger: logger,
		memory: NewTTLMap(int64(ttlSecs), 60),
		ttl:    time.Duration(ttlSecs) * time.Second,
	}

	if redisURL == "" {
		logger.PrintVerbose("No Redis URL configured, using in-memory cache")
		return c
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.PrintWarning("Invalid Redis URL, falling back to in-memory cache: %s", err)
		return c
	}
	client := redis.NewClient(options)
	if err := client.Ping().Err(); err != nil {
		logger.PrintWarning("Redis unreachable, falling back to in-memory cache: %s", err)
		client.Close()
		return c
	}
	c.client = client
	return c
}

func (c *Cache) Get(key string) (string, bool) {
	if c.client != nil {
		value, err := c.client.Get(key).Result()
		if err == nil {
			return value, true
		}
		if err != redis.Nil {
			c.logger.PrintWarning("Redis GET failed, trying in-memory cache: %s", err)
		} else {
			return "", false
		}
	}
	return c.memory.Get(key)
}

func (c *Cache) Put(key string, value string) {
	if c.client != nil {
		err := c.client.Set(key, value, c.ttl).Err()
		if err == nil {
			return
		}
		c.logger.PrintWarning("Redis SET failed, writing to in-memory cache: %s", err)
	}
	c.memory.Put(key, value)
}
