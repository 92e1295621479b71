package redis

import "github.com/redis/go-redis/v9"

func redisClientFor(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: 15})
}
