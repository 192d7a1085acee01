// Package connector 管理 ledger 的数据库连接。
//
// 连接器负责底层连接的生命周期，db 等组件只借用 GetClient() 返回的客户端，不负责关闭。
// 当前支持 SQLite（测试与嵌入式部署）和 MySQL（生产）。
//
// 基本使用：
//
//	conn, err := connector.NewSQLite(&connector.SQLiteConfig{Path: "ledger.db"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	gormDB := conn.GetClient()
package connector

import (
	"context"

	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 通过 ping 检查连接，并更新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的结果
	IsHealthy() bool

	// Name 连接实例名称，用于日志
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后返回 nil
	GetClient() T
}

// SQLConnector 基于 GORM 的关系型数据库连接器
type SQLConnector interface {
	TypedConnector[*gorm.DB]

	// Driver 返回驱动名称："sqlite" 或 "mysql"
	Driver() string
}
