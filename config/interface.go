// Package config 为 ledger 提供统一的配置加载，基于 Viper。
//
// 配置来源优先级（高到低）：
//
//	命令行参数 > 环境变量 > .env 文件 > config.<env>.yaml > config.yaml > 默认值
//
// 环境变量使用 LEDGER_ 前缀，key 中的 "." 替换为 "_"，例如 LEDGER_DB_DRIVER。
// LEDGER_ENV=prod 时额外合并 config.prod.yaml。
//
// 基本使用：
//
//	loader, err := config.New(&config.Config{Paths: []string{"./config"}},
//		config.WithDefaults(config.AppDefaults()),
//		config.WithFlags(flagSet))
//	if err != nil {
//		return err
//	}
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var app config.AppConfig
//	if err := loader.Unmarshal(&app); err != nil {
//		return err
//	}
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch {
//		if level, err := clog.ParseLevel(fmt.Sprint(ev.Value)); err == nil {
//			_ = logger.SetLevel(level)
//		}
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，配置文件存在时开启热更新
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听 key 的变化，ctx 结束时关闭通道
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
