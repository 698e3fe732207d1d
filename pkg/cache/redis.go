package cache

import (
	"context"
	"fmt"
	"time"

	"novaflow/conf"
	"novaflow/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

const defaultPingDelay = 500 * time.Millisecond

var (
	pingAttempts = 3
	pingDelay    = defaultPingDelay
)

// InitRedis 初始化redisClient
func InitRedis(redisCfg conf.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		DB:              redisCfg.Db,
		Addr:            redisCfg.Addr,
		Password:        redisCfg.Password,
		PoolSize:        redisCfg.PoolSize,
		MinIdleConns:    redisCfg.MinIdleConns,
		ConnMaxIdleTime: 5 * time.Minute,
	})
	// 部署时 redis 可能比服务晚就绪，启动阶段重试几次
	err := utils.Retry(context.Background(), pingAttempts, pingDelay, true, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", redisCfg.Addr, err)
	}
	redisClient = client
	return client, nil
}

// 关闭redis client
func CloseRedis() {
	if nil != redisClient {
		_ = redisClient.Close()
		redisClient = nil
	}
}
