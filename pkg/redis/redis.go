package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campusconnect/backend/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单、接口限流与登录失败锁定
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromClient 包装已有的 go-redis 客户端（测试时可接入 miniredis 等实现）
func NewFromClient(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 滑动窗口限流 ──

// CheckRateLimit 基于有序集合的滑动窗口计数
// 返回 true 表示本次请求在限额内
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(limit), nil
}

// ── 登录失败锁定 ──

const (
	loginFailPrefix = "login:fail:"
	loginLockPrefix = "login:lock:"
)

// RecordLoginFailure 记录一次登录失败
// 窗口内失败次数达到 maxAttempts 时锁定 lockout 时长，返回是否已被锁定
func (c *Client) RecordLoginFailure(ctx context.Context, subject string, maxAttempts int, lockout time.Duration) (bool, error) {
	failKey := loginFailPrefix + subject

	n, err := c.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.rdb.Expire(ctx, failKey, lockout)
	}

	if n < int64(maxAttempts) {
		return false, nil
	}

	if err := c.rdb.Set(ctx, loginLockPrefix+subject, "1", lockout).Err(); err != nil {
		return false, err
	}
	c.rdb.Del(ctx, failKey)
	c.logger.Warn("登录失败次数过多，已锁定", zap.String("subject", subject))
	return true, nil
}

// IsLoginLocked 检查登录主体是否处于锁定期
func (c *Client) IsLoginLocked(ctx context.Context, subject string) (bool, error) {
	n, err := c.rdb.Exists(ctx, loginLockPrefix+subject).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearLoginFailures 登录成功后清除失败计数
func (c *Client) ClearLoginFailures(ctx context.Context, subject string) error {
	return c.rdb.Del(ctx, loginFailPrefix+subject).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
