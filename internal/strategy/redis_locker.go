package strategy

import (
	"context"
	"fmt"
	"time"

	"novaflow/pkg/logger"
	"novaflow/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "novaflow:lock:"

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 多实例部署时使用，ttl 防止进程崩溃后锁不释放
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, poll: 100 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockPrefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if err := utils.Sleep(ctx, l.poll); err != nil {
			return nil, ErrLockTimeout
		}
	}

	return func() {
		// 加锁的 ctx 可能已经结束，解锁单独给一个超时
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			logger.Warn("release symbol lock failed",
				logger.Pair("key", key),
				logger.Pair("error", err.Error()))
		}
	}, nil
}
