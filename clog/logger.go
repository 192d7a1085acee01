// Package clog 为 ledger 提供基于 slog 的结构化日志组件。
//
// 各组件通过 WithLogger 选项接收 Logger，并用 WithNamespace 标出来源，
// 例如执行器的日志带 namespace="ledgerctl.txexec"。*Context 方法会从 ctx 提取
// WithContextField 注册的字段，启用 WithTraceContext 时还会带上 trace_id/span_id。
// 日志级别可在运行时通过 SetLevel 调整。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger.Info("account locked", clog.String("account", "acct-1"))
//
// 创建子 Logger：
//
//	lockLogger := logger.WithNamespace("acctlock")
package clog

import "context"

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// 带 Context 的版本会按 WithContextField 配置自动提取字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，"ledger" + "acctlock" => "ledger.acctlock"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对所有派生 Logger 生效
	SetLevel(level Level) error
}
