package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresence 多實例共用的 Presence
//
// 鍵值設計：
//
//	presence:conn:{connID}     → playerID
//	presence:player:{playerID} → connID
//
// 兩個鍵都帶 TTL，實例當機時殘留的綁定會自動過期。
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// unbindScript 只有玩家仍指向這條連線時才刪除玩家鍵
var unbindScript = redis.NewScript(`
local player = redis.call("GET", KEYS[1])
if not player then
	return 0
end
redis.call("DEL", KEYS[1])
local key = ARGV[2] .. player
if redis.call("GET", key) == ARGV[1] then
	redis.call("DEL", key)
end
return 1
`)

// touchScript 連線鍵存在才延長；玩家鍵只在仍指向這條連線時延長
var touchScript = redis.NewScript(`
if redis.call("PEXPIRE", KEYS[1], ARGV[2]) == 0 then
	return 0
end
if redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`)

const (
	presenceConnPrefix   = "presence:conn:"
	presencePlayerPrefix = "presence:player:"
)

// NewRedisPresence 創建 Redis 版 Presence
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, ttl: ttl}
}

// NewRedisClient 依配置建立連線並確認可用
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Bind 綁定連線與玩家，回傳被取代的舊連線
func (p *RedisPresence) Bind(ctx context.Context, connID, playerID string) (string, error) {
	previous, err := p.client.SetArgs(ctx, presencePlayerPrefix+playerID, connID, redis.SetArgs{
		Get: true,
		TTL: p.ttl,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("bind player %s: %w", playerID, err)
	}

	if err := p.client.Set(ctx, presenceConnPrefix+connID, playerID, p.ttl).Err(); err != nil {
		return "", fmt.Errorf("bind connection %s: %w", connID, err)
	}

	if previous == connID {
		previous = ""
	}
	return previous, nil
}

// PlayerOf 連線對應的玩家
func (p *RedisPresence) PlayerOf(ctx context.Context, connID string) (string, error) {
	playerID, err := p.client.Get(ctx, presenceConnPrefix+connID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("lookup connection %s: %w", connID, err)
	}
	return playerID, nil
}

// ConnectionOf 玩家目前的連線
func (p *RedisPresence) ConnectionOf(ctx context.Context, playerID string) (string, error) {
	connID, err := p.client.Get(ctx, presencePlayerPrefix+playerID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("lookup player %s: %w", playerID, err)
	}
	return connID, nil
}

// Unbind 解除綁定
func (p *RedisPresence) Unbind(ctx context.Context, connID string) error {
	err := unbindScript.Run(ctx, p.client,
		[]string{presenceConnPrefix + connID},
		connID, presencePlayerPrefix,
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("unbind connection %s: %w", connID, err)
	}
	return nil
}

// Touch 延長兩個鍵的 TTL；玩家鍵已指向新連線時不動它
func (p *RedisPresence) Touch(ctx context.Context, connID, playerID string) error {
	refreshed, err := touchScript.Run(ctx, p.client,
		[]string{presenceConnPrefix + connID, presencePlayerPrefix + playerID},
		connID, p.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("touch connection %s: %w", connID, err)
	}
	if refreshed == 0 {
		return ErrNotAuthenticated
	}
	return nil
}
