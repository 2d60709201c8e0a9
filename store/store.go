// Package store 提供 core.Store 的实现：MemoryStore（测试/开发）与 RedisStore（生产），
// 以及基于 Store 持久化的按天布隆过滤器 BloomChecker。
//
// 接口定义在 core 包：
//
//	var s core.Store = store.NewMemoryStore()
//	s, err := store.New(ctx, store.Config{Backend: "redis", Redis: store.RedisConfig{Addr: "localhost:6379"}})
package store

import (
	"context"
	"fmt"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// Config 是存储后端配置。
type Config struct {
	// Backend: memory / redis
	Backend string      `koanf:"backend" validate:"required,oneof=memory redis"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig 是 Redis 连接配置，Backend 为 redis 时 Addr 必填。
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// New 按配置创建存储后端。
func New(ctx context.Context, cfg Config) (core.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("store: redis addr is required: %w", core.ErrInvalidArgument)
		}
		return NewRedisStoreWithOptions(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("store: unknown backend %q: %w", cfg.Backend, core.ErrInvalidArgument)
	}
}
